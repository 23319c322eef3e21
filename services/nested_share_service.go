package services

import (
	"context"
	"errors"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/repositories"

	"gorm.io/gorm"
)

type Breadcrumb struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	IsRoot bool   `json:"is_root"`
}

type FolderView struct {
	Folder      models.FileNode   `json:"folder"`
	ShareToken  string            `json:"share_token"`
	Breadcrumbs []Breadcrumb      `json:"breadcrumbs"`
	Items       []models.FileNode `json:"items"`
	Total       int64             `json:"-"`
	Page        int               `json:"-"`
	PageSize    int               `json:"-"`
}

type NestedFileView struct {
	File       models.FileNode `json:"file"`
	ShareToken string          `json:"share_token"`
	Status     ShareState      `json:"status"`
}

type BrowseQuery struct {
	Search   string
	Page     int
	PageSize int
}

// NestedShareService hands out per-descendant shares below a shared folder.
// A descendant share inherits the folder share's limits when it is first
// materialised and records the folder share as its parent.
type NestedShareService struct {
	nodes     repositories.NodeRepository
	shares    repositories.ShareRepository
	hierarchy *HierarchyService
	registry  *ShareService
	maxDepth  int
}

func NewNestedShareService(
	nodes repositories.NodeRepository,
	shares repositories.ShareRepository,
	hierarchy *HierarchyService,
	registry *ShareService,
	maxDepth int,
) *NestedShareService {
	if maxDepth <= 0 {
		maxDepth = 20
	}
	return &NestedShareService{
		nodes:     nodes,
		shares:    shares,
		hierarchy: hierarchy,
		registry:  registry,
		maxDepth:  maxDepth,
	}
}

// ResolveOrCreateNestedShare returns the share for descendantID inside the
// subtree shared by parentShare. Anything outside that subtree is reported
// as not found.
func (s *NestedShareService) ResolveOrCreateNestedShare(ctx context.Context, parentShare models.PublicShare, descendantID uint) (models.PublicShare, models.FileNode, error) {
	root, err := s.nodes.GetByID(ctx, nil, parentShare.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PublicShare{}, models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
		}
		return models.PublicShare{}, models.FileNode{}, internalError("failed to load shared item", err)
	}
	if root.OwnerID != parentShare.OwnerID {
		return models.PublicShare{}, models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
	}
	if descendantID == root.ID {
		return parentShare, root, nil
	}

	notInShare := newAppError(KindNotFound, "item not found in this share", nil)
	if !root.IsFolder {
		return models.PublicShare{}, models.FileNode{}, notInShare
	}
	node, err := s.nodes.GetByID(ctx, nil, descendantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PublicShare{}, models.FileNode{}, notInShare
		}
		return models.PublicShare{}, models.FileNode{}, internalError("failed to load item", err)
	}
	if node.OwnerID != parentShare.OwnerID {
		return models.PublicShare{}, models.FileNode{}, notInShare
	}
	inside, err := s.hierarchy.IsDescendantOf(ctx, node, root)
	if err != nil {
		return models.PublicShare{}, models.FileNode{}, err
	}
	if !inside {
		return models.PublicShare{}, models.FileNode{}, notInShare
	}

	existing, err := s.shares.FindByFileAndOwner(ctx, nil, node.ID, parentShare.OwnerID)
	if err == nil {
		return existing, node, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PublicShare{}, models.FileNode{}, internalError("failed to look up nested share", err)
	}

	nested := inheritShare(parentShare, node)
	if err := s.registry.insertShareWithToken(ctx, &nested); err != nil {
		return models.PublicShare{}, models.FileNode{}, internalError("failed to create nested share", err)
	}

	// The oldest share for the file wins when two requests raced here.
	winner, err := s.shares.FindByFileAndOwner(ctx, nil, node.ID, parentShare.OwnerID)
	if err != nil {
		return models.PublicShare{}, models.FileNode{}, internalError("failed to look up nested share", err)
	}
	if winner.ID != nested.ID {
		if err := s.shares.DeleteByIDs(ctx, nil, []uint{nested.ID}); err != nil {
			logger.Warnf("drop duplicate nested share %d: %v", nested.ID, err)
		}
		return winner, node, nil
	}
	logger.Debugf("nested share %d created for node %d under share %d", nested.ID, node.ID, parentShare.ID)
	return nested, node, nil
}

func inheritShare(parent models.PublicShare, node models.FileNode) models.PublicShare {
	parentID := parent.ID
	nested := models.PublicShare{
		OwnerID:           parent.OwnerID,
		FileID:            node.ID,
		ParentShareID:     &parentID,
		ShareType:         shareTypeOf(node),
		IsOneTime:         parent.IsOneTime,
		PasswordProtected: parent.PasswordProtected,
	}
	if parent.MaxDownloads != nil {
		limit := *parent.MaxDownloads
		nested.MaxDownloads = &limit
	}
	if parent.ExpiresAt != nil {
		expires := *parent.ExpiresAt
		nested.ExpiresAt = &expires
	}
	if parent.PasswordHash != nil {
		hash := *parent.PasswordHash
		nested.PasswordHash = &hash
	}
	return nested
}

// AuthorizeDescendant authorizes the share behind token, resolves the
// nested share for descendantID and authorizes that one with the same grant.
func (s *NestedShareService) AuthorizeDescendant(ctx context.Context, token string, grant string, descendantID uint) (SharedItem, SharedItem, error) {
	root, err := s.registry.Authorize(ctx, token, grant)
	if err != nil {
		return SharedItem{}, SharedItem{}, err
	}
	nested, _, err := s.ResolveOrCreateNestedShare(ctx, root.Share, descendantID)
	if err != nil {
		return SharedItem{}, SharedItem{}, err
	}
	if nested.ID == root.Share.ID {
		return root, root, nil
	}
	item, err := s.registry.Authorize(ctx, nested.ShareToken, grant)
	if err != nil {
		return SharedItem{}, SharedItem{}, err
	}
	return root, item, nil
}

// BuildBreadcrumbs lists the folders from the shared root down to current.
// Running past the depth cap or into a cycle is an integrity error.
func (s *NestedShareService) BuildBreadcrumbs(ctx context.Context, current models.FileNode, rootShare models.PublicShare) ([]Breadcrumb, error) {
	var crumbs []Breadcrumb
	visited := make(map[uint]struct{})
	node := current
	for hop := 0; ; hop++ {
		if hop > s.maxDepth {
			return nil, newAppError(KindIntegrity, "folder hierarchy exceeds the maximum depth", nil)
		}
		if _, ok := visited[node.ID]; ok {
			return nil, newAppError(KindIntegrity, "folder hierarchy contains a cycle", nil)
		}
		visited[node.ID] = struct{}{}

		isRoot := node.ID == rootShare.FileID
		crumbs = append(crumbs, Breadcrumb{ID: node.ID, Name: node.Name, IsRoot: isRoot})
		if isRoot {
			break
		}
		if node.ParentID == nil {
			return nil, newAppError(KindNotFound, "folder is not part of this share", nil)
		}
		parent, err := s.nodes.GetByID(ctx, nil, *node.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newAppError(KindNotFound, "folder is not part of this share", nil)
			}
			return nil, internalError("failed to load parent folder", err)
		}
		if parent.OwnerID != rootShare.OwnerID {
			return nil, newAppError(KindNotFound, "folder is not part of this share", nil)
		}
		node = parent
	}

	for i, j := 0, len(crumbs)-1; i < j; i, j = i+1, j-1 {
		crumbs[i], crumbs[j] = crumbs[j], crumbs[i]
	}
	return crumbs, nil
}

func (s *NestedShareService) BrowseFolder(ctx context.Context, rootShare models.PublicShare, folderID uint, q BrowseQuery) (FolderView, error) {
	nested, folder, err := s.ResolveOrCreateNestedShare(ctx, rootShare, folderID)
	if err != nil {
		return FolderView{}, err
	}
	if err := s.requireUsable(nested); err != nil {
		return FolderView{}, err
	}
	if !folder.IsFolder {
		return FolderView{}, newAppError(KindValidation, "item is not a folder", nil)
	}
	crumbs, err := s.BuildBreadcrumbs(ctx, folder, rootShare)
	if err != nil {
		return FolderView{}, err
	}
	parentID := folder.ID
	page, err := s.hierarchy.ListChildren(ctx, ListChildrenQuery{
		OwnerID:  folder.OwnerID,
		ParentID: &parentID,
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return FolderView{}, err
	}
	return FolderView{
		Folder:      folder,
		ShareToken:  nested.ShareToken,
		Breadcrumbs: crumbs,
		Items:       page.Items,
		Total:       page.Total,
		Page:        page.Page,
		PageSize:    page.PageSize,
	}, nil
}

func (s *NestedShareService) DescribeFile(ctx context.Context, rootShare models.PublicShare, fileID uint) (NestedFileView, error) {
	nested, node, err := s.ResolveOrCreateNestedShare(ctx, rootShare, fileID)
	if err != nil {
		return NestedFileView{}, err
	}
	if err := s.requireUsable(nested); err != nil {
		return NestedFileView{}, err
	}
	return NestedFileView{
		File:       node,
		ShareToken: nested.ShareToken,
		Status:     ShareActive,
	}, nil
}

// requireUsable rejects a nested share that has expired or been consumed,
// even while its root share is still valid.
func (s *NestedShareService) requireUsable(share models.PublicShare) error {
	if state := CheckValidity(share, s.registry.now()); !state.Valid() {
		return newAppErrorWithData(KindExpiredOrExhausted, "share is no longer available", errorData{"status": state}, nil)
	}
	return nil
}
