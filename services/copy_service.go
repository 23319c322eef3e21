package services

import (
	"context"
	"errors"
	"time"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/repositories"

	"gorm.io/gorm"
)

var errCopyExists = errors.New("share already copied by this user")

// CopyService saves a shared item into a viewer's own root folder. The copy
// points at the same blob as the original.
type CopyService struct {
	txManager TxManager
	nodes     repositories.NodeRepository
	copies    repositories.SharedCopyRepository
	hierarchy *HierarchyService
	notifier  Notifier
	now       func() time.Time
}

func NewCopyService(
	txManager TxManager,
	nodes repositories.NodeRepository,
	copies repositories.SharedCopyRepository,
	hierarchy *HierarchyService,
	notifier Notifier,
) *CopyService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CopyService{
		txManager: txManager,
		nodes:     nodes,
		copies:    copies,
		hierarchy: hierarchy,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *CopyService) CopyToAccount(ctx context.Context, share models.PublicShare, viewerID uint) (models.FileNode, error) {
	if viewerID == 0 {
		return models.FileNode{}, newAppError(KindValidation, "a signed in user is required", nil)
	}
	if state := CheckValidity(share, s.now()); !state.Valid() {
		return models.FileNode{}, newAppErrorWithData(KindExpiredOrExhausted, "share is no longer available", errorData{"status": state}, nil)
	}
	copied, err := s.copies.ExistsForShareAndUser(ctx, nil, share.ID, viewerID)
	if err != nil {
		return models.FileNode{}, internalError("failed to check saved items", err)
	}
	if copied {
		return models.FileNode{}, newAppError(KindConflict, "this item is already saved to your files", nil)
	}

	original, err := s.nodes.GetByID(ctx, nil, share.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
		}
		return models.FileNode{}, internalError("failed to load shared item", err)
	}
	if original.OwnerID != share.OwnerID {
		return models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
	}

	var clone models.FileNode
	for attempt := 1; ; attempt++ {
		clone, err = s.copyOnce(ctx, share, original, viewerID)
		if err == nil {
			break
		}
		if errors.Is(err, errCopyExists) {
			return models.FileNode{}, newAppError(KindConflict, "this item is already saved to your files", nil)
		}
		var appErr *AppError
		if errors.As(err, &appErr) {
			return models.FileNode{}, err
		}
		if !repositories.IsUniqueViolation(err) {
			return models.FileNode{}, internalError("failed to save shared item", err)
		}
		if attempt >= s.hierarchy.uniqueNameAttempts() {
			return models.FileNode{}, newAppError(KindConflict, "could not reserve a unique name", err)
		}
	}

	logger.Debugf("share %d copied by user %d as node %d", share.ID, viewerID, clone.ID)
	if !clone.IsFolder {
		s.notifier.Notify(ctx, EventFileCreated, nodeEventPayload(clone))
	}
	return clone, nil
}

// copyOnce writes the node and its provenance record in one transaction.
func (s *CopyService) copyOnce(ctx context.Context, share models.PublicShare, original models.FileNode, viewerID uint) (models.FileNode, error) {
	var clone models.FileNode
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		taken, err := s.copies.ExistsForShareAndUser(ctx, tx, share.ID, viewerID)
		if err != nil {
			return err
		}
		if taken {
			return errCopyExists
		}
		name, err := s.hierarchy.resolveName(ctx, tx, viewerID, nil, original.Name, 0)
		if err != nil {
			return err
		}

		clone = cloneNode(original, viewerID, name)
		if err := s.nodes.Create(ctx, tx, &clone); err != nil {
			return err
		}
		record := models.SharedFileCopy{
			OriginalShareID: share.ID,
			CopiedByUserID:  viewerID,
			CopiedFileID:    clone.ID,
			CopiedAt:        s.now(),
		}
		if err := s.copies.Create(ctx, tx, &record); err != nil {
			if repositories.IsUniqueViolation(err) {
				return errCopyExists
			}
			return err
		}
		return nil
	})
	return clone, err
}

func cloneNode(original models.FileNode, ownerID uint, name string) models.FileNode {
	clone := models.FileNode{
		OwnerID:            ownerID,
		Name:               name,
		IsFolder:           original.IsFolder,
		StoragePath:        original.StoragePath,
		MimeType:           original.MimeType,
		ContentHash:        original.ContentHash,
		IsBlockchainStored: original.IsBlockchainStored,
		IsPermanentStored:  original.IsPermanentStored,
		BlockchainProvider: original.BlockchainProvider,
		ProviderMetadata:   original.ProviderMetadata,
	}
	if original.SizeBytes != nil {
		size := *original.SizeBytes
		clone.SizeBytes = &size
	}
	if original.IsFolder {
		clone.StoragePath = folderPath(ownerID, nil, name)
	}
	return clone
}
