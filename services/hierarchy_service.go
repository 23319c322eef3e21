package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/repositories"
	"securedocs/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const trashPurgeBatch = 100

type HierarchyOptions struct {
	MaxNameLength     int
	MaxDepth          int
	DisambiguateLimit int
	DefaultPageSize   int
	MaxPageSize       int
	MaxFileSize       int64
}

// FileAttributes describes stored content for a file node. StoragePath is
// the blob key and never changes after creation.
type FileAttributes struct {
	StoragePath        string
	SizeBytes          int64
	MimeType           string
	ContentHash        string
	IsBlockchainStored bool
	IsPermanentStored  bool
	BlockchainProvider string
	ProviderMetadata   string
}

type CreateNodeInput struct {
	OwnerID  uint
	Name     string
	ParentID *uint
	IsFolder bool
	File     *FileAttributes
}

type UploadFileInput struct {
	OwnerID  uint
	ParentID *uint
	Name     string
	MimeType string
	Content  io.Reader
}

type ListChildrenQuery struct {
	OwnerID  uint
	ParentID *uint
	Search   string
	Page     int
	PageSize int
}

type NodePage struct {
	Items    []models.FileNode
	Total    int64
	Page     int
	PageSize int
}

type HierarchyService struct {
	txManager TxManager
	nodes     repositories.NodeRepository
	shares    repositories.ShareRepository
	copies    repositories.SharedCopyRepository
	blobs     storage.Backend
	notifier  Notifier
	opts      HierarchyOptions
	now       func() time.Time
}

func NewHierarchyService(
	txManager TxManager,
	nodes repositories.NodeRepository,
	shares repositories.ShareRepository,
	copies repositories.SharedCopyRepository,
	blobs storage.Backend,
	notifier Notifier,
	opts HierarchyOptions,
) *HierarchyService {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = 255
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 20
	}
	if opts.DisambiguateLimit <= 0 {
		opts.DisambiguateLimit = 10000
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &HierarchyService{
		txManager: txManager,
		nodes:     nodes,
		shares:    shares,
		copies:    copies,
		blobs:     blobs,
		notifier:  notifier,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateNode inserts a file or folder under parentID with a name that is
// unique among its live siblings. Losing a race on the sibling index retries
// the whole transaction.
func (s *HierarchyService) CreateNode(ctx context.Context, in CreateNodeInput) (models.FileNode, error) {
	name, err := ValidateNodeName(in.Name, s.opts.MaxNameLength)
	if err != nil {
		return models.FileNode{}, err
	}
	if !in.IsFolder && (in.File == nil || strings.TrimSpace(in.File.StoragePath) == "") {
		return models.FileNode{}, newAppError(KindValidation, "file content reference is required", nil)
	}

	var node models.FileNode
	for attempt := 1; ; attempt++ {
		node, err = s.createNodeOnce(ctx, in, name)
		if err == nil {
			break
		}
		if !repositories.IsUniqueViolation(err) {
			var appErr *AppError
			if errors.As(err, &appErr) {
				return models.FileNode{}, err
			}
			return models.FileNode{}, internalError("failed to create node", err)
		}
		if attempt >= s.uniqueNameAttempts() {
			return models.FileNode{}, newAppError(KindConflict, "could not reserve a unique name", err)
		}
		logger.Debugf("create node %q: sibling name taken concurrently, retry %d", name, attempt)
	}

	if !node.IsFolder {
		s.notifier.Notify(ctx, EventFileCreated, nodeEventPayload(node))
	}
	return node, nil
}

// uniqueNameAttempts bounds retries after losing a sibling-name race. Every
// lost race consumes one suffix, so the bound matches the suffix search.
func (s *HierarchyService) uniqueNameAttempts() int {
	return s.opts.DisambiguateLimit
}

func (s *HierarchyService) createNodeOnce(ctx context.Context, in CreateNodeInput, name string) (models.FileNode, error) {
	var node models.FileNode
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var parent *models.FileNode
		var parentID *uint
		if in.ParentID != nil {
			loaded, err := s.loadParentFolder(ctx, tx, in.OwnerID, *in.ParentID)
			if err != nil {
				return err
			}
			parent = &loaded
			id := loaded.ID
			parentID = &id
		}

		resolved, err := s.resolveName(ctx, tx, in.OwnerID, parentID, name, 0)
		if err != nil {
			return err
		}

		node = models.FileNode{
			OwnerID:  in.OwnerID,
			Name:     resolved,
			ParentID: parentID,
			IsFolder: in.IsFolder,
		}
		if in.IsFolder {
			node.StoragePath = folderPath(in.OwnerID, parent, resolved)
			node.MimeType = models.FolderMimeType
		} else {
			applyFileAttributes(&node, *in.File)
		}
		return s.nodes.Create(ctx, tx, &node)
	})
	return node, err
}

// UploadFile stores content in the blob backend under a fresh key and then
// creates the file node. The blob is removed again if the node is not
// created.
func (s *HierarchyService) UploadFile(ctx context.Context, in UploadFileInput) (models.FileNode, error) {
	name, err := ValidateNodeName(in.Name, s.opts.MaxNameLength)
	if err != nil {
		return models.FileNode{}, err
	}
	if in.Content == nil {
		return models.FileNode{}, newAppError(KindValidation, "file content is required", nil)
	}

	id := uuid.NewString()
	key := fmt.Sprintf("blobs/%s/%s", id[:2], id)
	hasher := sha256.New()
	var reader io.Reader = io.TeeReader(in.Content, hasher)
	if s.opts.MaxFileSize > 0 {
		reader = io.LimitReader(reader, s.opts.MaxFileSize+1)
	}

	written, err := s.blobs.Put(ctx, key, reader)
	if err != nil {
		s.discardBlob(ctx, key)
		return models.FileNode{}, newAppError(KindUpstream, "failed to store file content", err)
	}
	if s.opts.MaxFileSize > 0 && written > s.opts.MaxFileSize {
		s.discardBlob(ctx, key)
		return models.FileNode{}, newAppError(KindTooLarge, "file exceeds the upload size limit", nil)
	}

	mimeType := strings.TrimSpace(in.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = getMimeType(name)
	}
	node, err := s.CreateNode(ctx, CreateNodeInput{
		OwnerID:  in.OwnerID,
		Name:     name,
		ParentID: in.ParentID,
		File: &FileAttributes{
			StoragePath: key,
			SizeBytes:   written,
			MimeType:    mimeType,
			ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		},
	})
	if err != nil {
		s.discardBlob(ctx, key)
		return models.FileNode{}, err
	}
	return node, nil
}

func (s *HierarchyService) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
		logger.Warnf("discard blob %s: %v", key, err)
	}
}

func (s *HierarchyService) GetNode(ctx context.Context, ownerID uint, nodeID uint) (models.FileNode, error) {
	node, err := s.nodes.GetByIDAndOwner(ctx, nil, nodeID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileNode{}, newAppError(KindNotFound, "file or folder not found", nil)
		}
		return models.FileNode{}, internalError("failed to load node", err)
	}
	return node, nil
}

// ListChildren pages through the live children of parentID, or of the
// owner's root level when parentID is nil.
func (s *HierarchyService) ListChildren(ctx context.Context, q ListChildrenQuery) (NodePage, error) {
	if q.ParentID != nil {
		if _, err := s.loadParentFolder(ctx, nil, q.OwnerID, *q.ParentID); err != nil {
			return NodePage{}, err
		}
	}
	page, pageSize := normalizePage(q.Page, q.PageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	in := repositories.ListChildrenInput{
		OwnerID:  q.OwnerID,
		ParentID: q.ParentID,
		Search:   q.Search,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
	total, err := s.nodes.CountChildren(ctx, nil, in)
	if err != nil {
		return NodePage{}, internalError("failed to count children", err)
	}
	items, err := s.nodes.ListChildren(ctx, nil, in)
	if err != nil {
		return NodePage{}, internalError("failed to list children", err)
	}
	return NodePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetDescendants returns every live node below root, found either through
// parent links or through a storage path under root's path.
func (s *HierarchyService) GetDescendants(ctx context.Context, root models.FileNode) ([]models.FileNode, error) {
	nodes, err := s.collectSubtree(ctx, nil, root, false)
	if err != nil {
		return nil, internalError("failed to list descendants", err)
	}
	return nodes, nil
}

// collectSubtree walks parent links breadth first. Live lookups also union
// in nodes matched by path prefix; unscoped lookups follow parent links only
// so a trashed subtree never picks up a live namesake.
func (s *HierarchyService) collectSubtree(ctx context.Context, tx *gorm.DB, root models.FileNode, unscoped bool) ([]models.FileNode, error) {
	if !root.IsFolder {
		return nil, nil
	}
	seen := map[uint]struct{}{root.ID: {}}
	var result []models.FileNode

	frontier := []uint{root.ID}
	for len(frontier) > 0 {
		children, err := s.nodes.ListByParentIDs(ctx, tx, root.OwnerID, frontier, unscoped)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(children))
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			result = append(result, child)
			if child.IsFolder {
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	if unscoped {
		return result, nil
	}
	byPath, err := s.nodes.ListByPathPrefix(ctx, tx, root.OwnerID, root.StoragePath, false)
	if err != nil {
		return nil, err
	}
	for _, node := range byPath {
		if _, ok := seen[node.ID]; ok {
			continue
		}
		seen[node.ID] = struct{}{}
		result = append(result, node)
	}
	return result, nil
}

// IsDescendantOf walks candidate's parent chain for at most MaxDepth hops.
// A cycle, a missing link or a foreign owner yields false.
func (s *HierarchyService) IsDescendantOf(ctx context.Context, candidate models.FileNode, root models.FileNode) (bool, error) {
	ok, err := s.isDescendant(ctx, nil, candidate, root)
	if err != nil {
		return false, internalError("failed to check folder membership", err)
	}
	return ok, nil
}

func (s *HierarchyService) isDescendant(ctx context.Context, tx *gorm.DB, candidate models.FileNode, root models.FileNode) (bool, error) {
	if candidate.ID == root.ID || candidate.OwnerID != root.OwnerID {
		return false, nil
	}
	visited := map[uint]struct{}{candidate.ID: {}}
	current := candidate
	for hop := 0; hop < s.opts.MaxDepth; hop++ {
		if current.ParentID == nil {
			return false, nil
		}
		parentID := *current.ParentID
		if parentID == root.ID {
			return true, nil
		}
		if _, ok := visited[parentID]; ok {
			logger.Warnf("parent cycle detected at node %d while checking membership of %d", parentID, candidate.ID)
			return false, nil
		}
		visited[parentID] = struct{}{}

		parent, err := s.nodes.GetByID(ctx, tx, parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if parent.OwnerID != root.OwnerID {
			return false, nil
		}
		current = parent
	}
	return false, nil
}

func (s *HierarchyService) Rename(ctx context.Context, ownerID uint, nodeID uint, newName string) (models.FileNode, error) {
	name, err := ValidateNodeName(newName, s.opts.MaxNameLength)
	if err != nil {
		return models.FileNode{}, err
	}

	var renamed models.FileNode
	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		node, err := s.loadOwnedNode(ctx, tx, ownerID, nodeID)
		if err != nil {
			return err
		}
		if node.Name == name {
			renamed = node
			return nil
		}
		taken, err := s.nodes.ExistsLiveName(ctx, tx, ownerID, node.ParentID, name, node.ID)
		if err != nil {
			return internalError("failed to check sibling names", err)
		}
		if taken {
			return newAppError(KindConflict, "a sibling with this name already exists", nil)
		}

		updates := map[string]interface{}{"name": name}
		var subtree []models.FileNode
		newPath := node.StoragePath
		if node.IsFolder {
			subtree, err = s.collectSubtree(ctx, tx, node, false)
			if err != nil {
				return internalError("failed to list descendants", err)
			}
			newPath = siblingPath(node.StoragePath, name)
			updates["storage_path"] = newPath
		}
		if err := s.nodes.UpdateByID(ctx, tx, node.ID, updates); err != nil {
			return err
		}
		if err := s.rewriteSubtreePaths(ctx, tx, subtree, node.StoragePath, newPath); err != nil {
			return err
		}
		renamed, err = s.nodes.GetByID(ctx, tx, node.ID)
		return err
	})
	if err != nil {
		return models.FileNode{}, s.mutationError("failed to rename node", err)
	}
	return renamed, nil
}

// Move reparents a node. A nil newParentID moves it to the root level.
func (s *HierarchyService) Move(ctx context.Context, ownerID uint, nodeID uint, newParentID *uint) (models.FileNode, error) {
	var moved models.FileNode
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		node, err := s.loadOwnedNode(ctx, tx, ownerID, nodeID)
		if err != nil {
			return err
		}

		// Membership uses the downward walk, which is not bounded by MaxDepth.
		var subtree []models.FileNode
		if node.IsFolder {
			subtree, err = s.collectSubtree(ctx, tx, node, false)
			if err != nil {
				return internalError("failed to list descendants", err)
			}
		}

		var parent *models.FileNode
		var parentID *uint
		if newParentID != nil {
			if *newParentID == node.ID {
				return newAppError(KindValidation, "a folder cannot be moved into itself", nil)
			}
			for _, member := range subtree {
				if member.ID == *newParentID {
					return newAppError(KindValidation, "a folder cannot be moved into its own subtree", nil)
				}
			}
			loaded, err := s.loadParentFolder(ctx, tx, ownerID, *newParentID)
			if err != nil {
				return err
			}
			parent = &loaded
			id := loaded.ID
			parentID = &id
		}

		if models.ParentKeyOf(parentID) == models.ParentKeyOf(node.ParentID) {
			moved = node
			return nil
		}
		taken, err := s.nodes.ExistsLiveName(ctx, tx, ownerID, parentID, node.Name, node.ID)
		if err != nil {
			return internalError("failed to check sibling names", err)
		}
		if taken {
			return newAppError(KindConflict, "the destination already contains an item with this name", nil)
		}

		updates := map[string]interface{}{
			"parent_id":  parentID,
			"parent_key": models.ParentKeyOf(parentID),
		}
		newPath := node.StoragePath
		if node.IsFolder {
			newPath = folderPath(ownerID, parent, node.Name)
			updates["storage_path"] = newPath
		}
		if err := s.nodes.UpdateByID(ctx, tx, node.ID, updates); err != nil {
			return err
		}
		if err := s.rewriteSubtreePaths(ctx, tx, subtree, node.StoragePath, newPath); err != nil {
			return err
		}
		moved, err = s.nodes.GetByID(ctx, tx, node.ID)
		return err
	})
	if err != nil {
		return models.FileNode{}, s.mutationError("failed to move node", err)
	}
	return moved, nil
}

// SoftDelete trashes the node together with its live subtree. The node
// becomes the trash root every member points back to.
func (s *HierarchyService) SoftDelete(ctx context.Context, ownerID uint, nodeID uint) error {
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		node, err := s.loadOwnedNode(ctx, tx, ownerID, nodeID)
		if err != nil {
			return err
		}
		subtree, err := s.collectSubtree(ctx, tx, node, false)
		if err != nil {
			return internalError("failed to list descendants", err)
		}
		ids := append([]uint{node.ID}, nodeIDs(subtree)...)
		return s.nodes.SoftDeleteByIDs(ctx, tx, ids, node.ID, s.now())
	})
	if err != nil {
		return s.mutationError("failed to move node to trash", err)
	}
	return nil
}

func (s *HierarchyService) ListTrash(ctx context.Context, ownerID uint) ([]models.FileNode, error) {
	roots, err := s.nodes.ListTrashRoots(ctx, nil, ownerID)
	if err != nil {
		return nil, internalError("failed to list trash", err)
	}
	return roots, nil
}

// Restore brings a trashed subtree back. A missing parent sends it to the
// root level and the name is disambiguated against live siblings.
func (s *HierarchyService) Restore(ctx context.Context, ownerID uint, nodeID uint) (models.FileNode, error) {
	var restored models.FileNode
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		node, err := s.nodes.GetByIDAndOwnerUnscoped(ctx, tx, nodeID, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newAppError(KindNotFound, "trashed item not found", nil)
			}
			return internalError("failed to load trashed item", err)
		}
		if !node.DeletedAt.Valid {
			return newAppError(KindNotFound, "trashed item not found", nil)
		}
		if node.TrashRootID != node.ID {
			return newAppError(KindValidation, "restore the folder this item was trashed with", nil)
		}

		var parent *models.FileNode
		var parentID *uint
		if node.ParentID != nil {
			loaded, err := s.nodes.GetByIDAndOwner(ctx, tx, *node.ParentID, ownerID)
			switch {
			case err == nil && loaded.IsFolder:
				parent = &loaded
				id := loaded.ID
				parentID = &id
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return internalError("failed to load parent folder", err)
			}
		}

		name, err := s.resolveName(ctx, tx, ownerID, parentID, node.Name, node.ID)
		if err != nil {
			return err
		}
		newPath := node.StoragePath
		if node.IsFolder {
			newPath = folderPath(ownerID, parent, name)
		}

		members, err := s.nodes.ListTrashedByRoot(ctx, tx, ownerID, node.ID)
		if err != nil {
			return internalError("failed to list trashed items", err)
		}
		if err := s.nodes.UpdateByIDUnscoped(ctx, tx, node.ID, map[string]interface{}{
			"name":         name,
			"parent_id":    parentID,
			"parent_key":   models.ParentKeyOf(parentID),
			"storage_path": newPath,
		}); err != nil {
			return err
		}
		if err := s.nodes.RestoreByIDs(ctx, tx, nodeIDs(members)); err != nil {
			return err
		}
		if err := s.rewriteSubtreePaths(ctx, tx, members, node.StoragePath, newPath); err != nil {
			return err
		}
		restored, err = s.nodes.GetByID(ctx, tx, node.ID)
		return err
	})
	if err != nil {
		return models.FileNode{}, s.mutationError("failed to restore node", err)
	}
	return restored, nil
}

// Destroy hard deletes a node and its whole subtree, live or trashed, along
// with shares pointing into it and their copy records. Blobs no other node
// references are removed after commit.
func (s *HierarchyService) Destroy(ctx context.Context, ownerID uint, nodeID uint) error {
	var blobKeys []string
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		node, err := s.nodes.GetByIDAndOwnerUnscoped(ctx, tx, nodeID, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newAppError(KindNotFound, "file or folder not found", nil)
			}
			return internalError("failed to load node", err)
		}
		subtree, err := s.collectSubtree(ctx, tx, node, true)
		if err != nil {
			return internalError("failed to list descendants", err)
		}
		members := append([]models.FileNode{node}, subtree...)
		ids := nodeIDs(members)

		shareIDs, err := s.shares.PluckIDsByFileIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		shareIDs, err = collectShareCascade(ctx, tx, s.shares, shareIDs)
		if err != nil {
			return err
		}
		if err := s.copies.DeleteByShareIDs(ctx, tx, shareIDs); err != nil {
			return err
		}
		if err := s.shares.DeleteByIDs(ctx, tx, shareIDs); err != nil {
			return err
		}
		if err := s.copies.DeleteByCopiedFileIDs(ctx, tx, ids); err != nil {
			return err
		}
		if err := s.nodes.HardDeleteByIDs(ctx, tx, ids); err != nil {
			return err
		}

		seen := make(map[string]struct{})
		for _, member := range members {
			if member.IsFolder || member.StoragePath == "" {
				continue
			}
			if _, ok := seen[member.StoragePath]; ok {
				continue
			}
			seen[member.StoragePath] = struct{}{}
			blobKeys = append(blobKeys, member.StoragePath)
		}
		return nil
	})
	if err != nil {
		return s.mutationError("failed to delete node", err)
	}

	for _, key := range blobKeys {
		refs, err := s.nodes.CountFilesByStoragePath(ctx, nil, key)
		if err != nil {
			logger.Warnf("count references for blob %s: %v", key, err)
			continue
		}
		if refs == 0 {
			s.discardBlob(ctx, key)
		}
	}
	return nil
}

// PurgeTrash destroys trash roots trashed before cutoff and returns how many
// were removed.
func (s *HierarchyService) PurgeTrash(ctx context.Context, cutoff time.Time) (int, error) {
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		roots, err := s.nodes.ListTrashRootsBefore(ctx, nil, cutoff, trashPurgeBatch)
		if err != nil {
			return purged, internalError("failed to list expired trash", err)
		}
		progressed := 0
		for _, root := range roots {
			if err := s.Destroy(ctx, root.OwnerID, root.ID); err != nil {
				logger.Warnf("purge trash root %d: %v", root.ID, err)
				continue
			}
			progressed++
		}
		purged += progressed
		if len(roots) < trashPurgeBatch || progressed == 0 {
			return purged, nil
		}
	}
}

func (s *HierarchyService) loadOwnedNode(ctx context.Context, tx *gorm.DB, ownerID uint, nodeID uint) (models.FileNode, error) {
	node, err := s.nodes.GetByIDAndOwner(ctx, tx, nodeID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileNode{}, newAppError(KindNotFound, "file or folder not found", nil)
		}
		return models.FileNode{}, internalError("failed to load node", err)
	}
	return node, nil
}

func (s *HierarchyService) loadParentFolder(ctx context.Context, tx *gorm.DB, ownerID uint, parentID uint) (models.FileNode, error) {
	parent, err := s.nodes.GetByIDAndOwner(ctx, tx, parentID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileNode{}, newAppError(KindNotFound, "parent folder not found", nil)
		}
		return models.FileNode{}, internalError("failed to load parent folder", err)
	}
	if !parent.IsFolder {
		return models.FileNode{}, newAppError(KindValidation, "parent is not a folder", nil)
	}
	return parent, nil
}

func (s *HierarchyService) resolveName(ctx context.Context, tx *gorm.DB, ownerID uint, parentID *uint, base string, excludeID uint) (string, error) {
	resolved, err := Disambiguate(base, s.opts.DisambiguateLimit, func(candidate string) (bool, error) {
		return s.nodes.ExistsLiveName(ctx, tx, ownerID, parentID, candidate, excludeID)
	})
	if err != nil {
		if errors.Is(err, ErrDisambiguationExhausted) {
			return "", newAppError(KindConflict, "too many items with this name", err)
		}
		return "", internalError("failed to check sibling names", err)
	}
	if len(resolved) > s.opts.MaxNameLength {
		return "", newAppError(KindValidation, "name is too long", nil)
	}
	return resolved, nil
}

func (s *HierarchyService) rewriteSubtreePaths(ctx context.Context, tx *gorm.DB, subtree []models.FileNode, oldPrefix string, newPrefix string) error {
	if oldPrefix == "" || oldPrefix == newPrefix {
		return nil
	}
	for _, node := range subtree {
		if !node.IsFolder || !strings.HasPrefix(node.StoragePath, oldPrefix+"/") {
			continue
		}
		updated := newPrefix + strings.TrimPrefix(node.StoragePath, oldPrefix)
		if err := s.nodes.UpdateByIDUnscoped(ctx, tx, node.ID, map[string]interface{}{"storage_path": updated}); err != nil {
			return err
		}
	}
	return nil
}

// mutationError keeps AppErrors and maps a late unique violation to a
// conflict.
func (s *HierarchyService) mutationError(message string, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	if repositories.IsUniqueViolation(err) {
		return newAppError(KindConflict, "a sibling with this name already exists", err)
	}
	return internalError(message, err)
}

func folderPath(ownerID uint, parent *models.FileNode, name string) string {
	if parent == nil || strings.Trim(parent.StoragePath, "/") == "" {
		return fmt.Sprintf("user_%d/%s", ownerID, name)
	}
	return strings.TrimRight(parent.StoragePath, "/") + "/" + name
}

func siblingPath(current string, name string) string {
	idx := strings.LastIndex(current, "/")
	if idx < 0 {
		return name
	}
	return current[:idx+1] + name
}

func applyFileAttributes(node *models.FileNode, attrs FileAttributes) {
	size := attrs.SizeBytes
	node.StoragePath = attrs.StoragePath
	node.SizeBytes = &size
	node.MimeType = attrs.MimeType
	if node.MimeType == "" {
		node.MimeType = getMimeType(node.Name)
	}
	node.ContentHash = attrs.ContentHash
	node.IsBlockchainStored = attrs.IsBlockchainStored
	node.IsPermanentStored = attrs.IsPermanentStored
	node.BlockchainProvider = attrs.BlockchainProvider
	node.ProviderMetadata = attrs.ProviderMetadata
}

func nodeIDs(nodes []models.FileNode) []uint {
	ids := make([]uint, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

func nodeEventPayload(node models.FileNode) map[string]interface{} {
	return map[string]interface{}{
		"id":           node.ID,
		"owner_id":     node.OwnerID,
		"name":         node.Name,
		"parent_id":    node.ParentID,
		"size_bytes":   node.SizeBytes,
		"mime_type":    node.MimeType,
		"storage_path": node.StoragePath,
		"created_at":   node.CreatedAt,
	}
}

func normalizePage(page int, pageSize int, defaultSize int, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
