package services

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/storage"
)

const archiveTempPattern = "share-archive-*.zip"

// DownloadStream is content ready to be written to a client. Size is -1 when
// unknown. Closing the reader releases every resource behind it.
type DownloadStream struct {
	Reader      io.ReadCloser
	FileName    string
	ContentType string
	Size        int64
}

type downloadRecorder interface {
	RecordDownload(ctx context.Context, share models.PublicShare) error
}

type ArchiveOptions struct {
	Enabled       bool
	MaxTotalBytes int64
	TempDir       string
}

type ArchiveService struct {
	hierarchy *HierarchyService
	blobs     storage.Backend
	recorder  downloadRecorder
	opts      ArchiveOptions
}

func NewArchiveService(hierarchy *HierarchyService, blobs storage.Backend, recorder downloadRecorder, opts ArchiveOptions) *ArchiveService {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &ArchiveService{hierarchy: hierarchy, blobs: blobs, recorder: recorder, opts: opts}
}

// Stream downloads the shared node: file content as is, folders as a zip.
func (s *ArchiveService) Stream(ctx context.Context, item SharedItem) (DownloadStream, error) {
	if item.Node.IsFolder {
		return s.StreamFolderAsArchive(ctx, item.Share, item.Node)
	}
	return s.StreamFile(ctx, item.Share, item.Node)
}

// StreamFile opens the blob before consuming a download so a missing blob
// never uses up a one-time link.
func (s *ArchiveService) StreamFile(ctx context.Context, share models.PublicShare, node models.FileNode) (DownloadStream, error) {
	if node.IsFolder {
		return DownloadStream{}, newAppError(KindValidation, "item is a folder", nil)
	}
	rc, err := s.blobs.Fetch(ctx, node.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return DownloadStream{}, newAppError(KindNotFound, "file content is missing", err)
		}
		return DownloadStream{}, newAppError(KindUpstream, "failed to read file content", err)
	}
	if err := s.recorder.RecordDownload(ctx, share); err != nil {
		_ = rc.Close()
		return DownloadStream{}, err
	}
	return fileStream(rc, node), nil
}

func fileStream(rc io.ReadCloser, node models.FileNode) DownloadStream {
	size := int64(-1)
	if node.SizeBytes != nil {
		size = *node.SizeBytes
	}
	contentType := node.MimeType
	if contentType == "" {
		contentType = getMimeType(node.Name)
	}
	return DownloadStream{Reader: rc, FileName: node.Name, ContentType: contentType, Size: size}
}

// StreamFolderAsArchive zips every retrievable file below folder into a temp
// file and charges the share one download for the whole archive. Files
// that cannot be fetched are skipped.
func (s *ArchiveService) StreamFolderAsArchive(ctx context.Context, share models.PublicShare, folder models.FileNode) (DownloadStream, error) {
	descendants, err := s.hierarchy.GetDescendants(ctx, folder)
	if err != nil {
		return DownloadStream{}, err
	}
	var files []models.FileNode
	var total int64
	for _, node := range descendants {
		if node.IsFolder {
			continue
		}
		files = append(files, node)
		if node.SizeBytes != nil {
			total += *node.SizeBytes
		}
	}
	if len(files) == 0 {
		if !s.opts.Enabled {
			return DownloadStream{}, newAppError(KindUnsupportedOperation, "archive downloads are unavailable and the folder has no files", nil)
		}
		return DownloadStream{}, newAppError(KindNotFound, "folder is empty", nil)
	}
	if s.opts.MaxTotalBytes > 0 && total > s.opts.MaxTotalBytes {
		return DownloadStream{}, newAppErrorWithData(KindTooLarge, "folder is too large to download as an archive",
			errorData{"total_bytes": total, "limit_bytes": s.opts.MaxTotalBytes}, nil)
	}
	if !s.opts.Enabled {
		return s.streamFirstAvailable(ctx, share, files)
	}
	return s.buildArchive(ctx, share, folder, descendants)
}

func (s *ArchiveService) streamFirstAvailable(ctx context.Context, share models.PublicShare, files []models.FileNode) (DownloadStream, error) {
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	for _, node := range files {
		rc, err := s.blobs.Fetch(ctx, node.StoragePath)
		if err != nil {
			logger.Warnf("archive fallback: skip node %d: %v", node.ID, err)
			continue
		}
		if err := s.recorder.RecordDownload(ctx, share); err != nil {
			_ = rc.Close()
			return DownloadStream{}, err
		}
		return fileStream(rc, node), nil
	}
	return DownloadStream{}, newAppError(KindUpstream, "none of the folder's files could be retrieved", nil)
}

func (s *ArchiveService) buildArchive(ctx context.Context, share models.PublicShare, folder models.FileNode, descendants []models.FileNode) (DownloadStream, error) {
	if err := os.MkdirAll(s.opts.TempDir, 0o755); err != nil {
		return DownloadStream{}, internalError("failed to prepare archive directory", err)
	}
	tmp, err := os.CreateTemp(s.opts.TempDir, archiveTempPattern)
	if err != nil {
		return DownloadStream{}, internalError("failed to create archive", err)
	}
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	rootName := sanitizeFilename(folder.Name)
	paths := archivePaths(folder, descendants)
	sort.Slice(descendants, func(i, j int) bool { return paths[descendants[i].ID] < paths[descendants[j].ID] })

	zw := zip.NewWriter(tmp)
	added := 0
	for _, node := range descendants {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			discard()
			return DownloadStream{}, newAppError(KindUpstream, "archive request cancelled", err)
		}
		entry := rootName + "/" + paths[node.ID]
		if node.IsFolder {
			if _, err := zw.CreateHeader(&zip.FileHeader{Name: entry + "/", Method: zip.Store, Modified: node.UpdatedAt}); err != nil {
				_ = zw.Close()
				discard()
				return DownloadStream{}, internalError("failed to write archive", err)
			}
			continue
		}

		rc, err := s.blobs.Fetch(ctx, node.StoragePath)
		if err != nil {
			logger.Warnf("archive for share %d: skip node %d: %v", share.ID, node.ID, err)
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: node.UpdatedAt})
		if err == nil {
			_, err = io.Copy(w, storage.NewContextReader(ctx, rc))
		}
		_ = rc.Close()
		if err != nil {
			_ = zw.Close()
			discard()
			if ctx.Err() != nil {
				return DownloadStream{}, newAppError(KindUpstream, "archive request cancelled", ctx.Err())
			}
			return DownloadStream{}, newAppError(KindUpstream, "failed to read file content", err)
		}
		added++
	}

	if added == 0 {
		_ = zw.Close()
		discard()
		return DownloadStream{}, newAppError(KindUpstream, "none of the folder's files could be retrieved", nil)
	}
	if err := zw.Close(); err != nil {
		discard()
		return DownloadStream{}, internalError("failed to finish archive", err)
	}
	if err := s.recorder.RecordDownload(ctx, share); err != nil {
		discard()
		return DownloadStream{}, err
	}

	info, err := tmp.Stat()
	if err != nil {
		discard()
		return DownloadStream{}, internalError("failed to read archive", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		discard()
		return DownloadStream{}, internalError("failed to read archive", err)
	}
	return DownloadStream{
		Reader:      &tempFileStream{File: tmp},
		FileName:    rootName + ".zip",
		ContentType: "application/zip",
		Size:        info.Size(),
	}, nil
}

// tempFileStream deletes its file on Close.
type tempFileStream struct {
	*os.File
	once sync.Once
	err  error
}

func (t *tempFileStream) Close() error {
	t.once.Do(func() {
		t.err = t.File.Close()
		if err := os.Remove(t.File.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove archive %s: %v", t.File.Name(), err)
		}
	})
	return t.err
}

// archivePaths maps every node to its path relative to root, following
// parent links. Nodes whose chain does not reach root sit at the top level.
// Clashing entries get a COPY(n) suffix.
func archivePaths(root models.FileNode, nodes []models.FileNode) map[uint]string {
	byID := make(map[uint]models.FileNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	paths := make(map[uint]string, len(nodes))
	used := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		parts := []string{sanitizeFilename(node.Name)}
		current := node
		reached := false
		for hop := 0; hop <= len(nodes); hop++ {
			if current.ParentID == nil {
				break
			}
			if *current.ParentID == root.ID {
				reached = true
				break
			}
			parent, ok := byID[*current.ParentID]
			if !ok {
				break
			}
			parts = append(parts, sanitizeFilename(parent.Name))
			current = parent
		}
		if !reached {
			parts = parts[:1]
		}
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}

		candidate := strings.Join(parts, "/")
		unique, err := Disambiguate(candidate, len(nodes), func(name string) (bool, error) {
			_, taken := used[name]
			return taken, nil
		})
		if err != nil {
			unique = candidate
		}
		used[unique] = struct{}{}
		paths[node.ID] = unique
	}
	return paths
}
