package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/repositories"
	"securedocs/storage"

	"github.com/disintegration/imaging"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext]
}

type PreviewOptions struct {
	Width    int
	Height   int
	Quality  int
	CacheTTL time.Duration
}

// PreviewService renders JPEG thumbnails for shared images. Rendering a
// preview never counts as a download.
type PreviewService struct {
	blobs storage.Backend
	cache repositories.ThumbnailCache
	opts  PreviewOptions
}

func NewPreviewService(blobs storage.Backend, cache repositories.ThumbnailCache, opts PreviewOptions) *PreviewService {
	if opts.Width <= 0 {
		opts.Width = 320
	}
	if opts.Height <= 0 {
		opts.Height = 320
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if cache == nil {
		cache = repositories.NoopThumbnailCache{}
	}
	return &PreviewService{blobs: blobs, cache: cache, opts: opts}
}

func (s *PreviewService) Thumbnail(ctx context.Context, node models.FileNode) ([]byte, error) {
	if node.IsFolder || !(isImageNode(node) || IsImageFile(node.Name)) {
		return nil, newAppError(KindValidation, "previews are only available for images", nil)
	}

	key := s.cacheKey(node)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		logger.Warnf("thumbnail cache get %s: %v", key, err)
	} else if ok {
		return data, nil
	}

	rc, err := s.blobs.Fetch(ctx, node.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, newAppError(KindNotFound, "file content is missing", err)
		}
		return nil, newAppError(KindUpstream, "failed to read file content", err)
	}
	defer rc.Close()

	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, newAppError(KindValidation, "image could not be decoded", err)
	}
	thumb := imaging.Fit(img, s.opts.Width, s.opts.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(s.opts.Quality)); err != nil {
		return nil, internalError("failed to encode thumbnail", err)
	}
	data := buf.Bytes()
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		logger.Warnf("thumbnail cache set %s: %v", key, err)
	}
	return data, nil
}

func (s *PreviewService) cacheKey(node models.FileNode) string {
	source := node.ContentHash
	if source == "" {
		source = node.StoragePath
	}
	return fmt.Sprintf("%s:%dx%d:q%d", source, s.opts.Width, s.opts.Height, s.opts.Quality)
}
