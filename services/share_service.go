package services

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"securedocs/logger"
	"securedocs/models"
	"securedocs/repositories"
	"securedocs/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type ShareState string

const (
	ShareActive       ShareState = "active"
	ShareExpired      ShareState = "expired"
	ShareUsed         ShareState = "used"
	ShareLimitReached ShareState = "limit_reached"
)

func (st ShareState) Valid() bool {
	return st == ShareActive
}

const (
	shareTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	shareTokenAttempts = 5
	shareGrantAudience = "share-grant"
	shareGrantIssuer   = "securedocs"
	sharePurgeBatch    = 100
	minShareTokenLen   = 32
	maxShareTokenLen   = 64
)

var errShareTokenExhausted = errors.New("could not generate a unique share token")

// CheckValidity evaluates the share at now. Expiry wins over usage so an
// expired one-time link reports expired.
func CheckValidity(share models.PublicShare, now time.Time) ShareState {
	switch {
	case share.ExpiresAt != nil && now.After(*share.ExpiresAt):
		return ShareExpired
	case share.IsOneTime && share.DownloadCount > 0:
		return ShareUsed
	case share.MaxDownloads != nil && share.DownloadCount >= *share.MaxDownloads:
		return ShareLimitReached
	default:
		return ShareActive
	}
}

// CheckPassword is always false for shares without a password.
func CheckPassword(share models.PublicShare, candidate string) bool {
	if !share.PasswordProtected || share.PasswordHash == nil {
		return false
	}
	return utils.CheckPassword(candidate, *share.PasswordHash)
}

type ShareOptions struct {
	TokenLength       int
	GrantSecret       string
	GrantTTL          time.Duration
	MaxExpiresInDays  int
	MinPasswordLength int
	MaxPasswordLength int
	MaxDownloadsLimit int
	MaxDepth          int
	DefaultPageSize   int
	MaxPageSize       int
}

type CreateShareInput struct {
	FileID        uint
	OwnerID       uint
	IsOneTime     bool
	ExpiresInDays *int
	Password      string
	MaxDownloads  *int
}

// SharedItem is a share that passed validity and password checks together
// with the live node it points at.
type SharedItem struct {
	Share models.PublicShare
	Node  models.FileNode
}

type ShareGrant struct {
	Grant     string    `json:"grant"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ShareSummary struct {
	Token            string           `json:"token"`
	ShareType        string           `json:"share_type"`
	Status           ShareState       `json:"status"`
	PasswordRequired bool             `json:"password_required"`
	Authorized       bool             `json:"authorized"`
	IsOneTime        bool             `json:"is_one_time"`
	DownloadCount    int              `json:"download_count"`
	MaxDownloads     *int             `json:"max_downloads"`
	ExpiresAt        *time.Time       `json:"expires_at"`
	File             *models.FileNode `json:"file,omitempty"`
}

type ShareListItem struct {
	models.PublicShare
	Status    ShareState `json:"status"`
	FileName  string     `json:"file_name"`
	IsFolder  bool       `json:"is_folder"`
	Available bool       `json:"available"`
}

type SharePage struct {
	Items    []ShareListItem
	Total    int64
	Page     int
	PageSize int
}

type SharedWithMeItem struct {
	ID              uint             `json:"id"`
	OriginalShareID uint             `json:"original_share_id"`
	ShareToken      string           `json:"share_token,omitempty"`
	OriginalOwnerID uint             `json:"original_owner_id,omitempty"`
	CopiedAt        time.Time        `json:"copied_at"`
	File            *models.FileNode `json:"file,omitempty"`
}

type SharedWithMePage struct {
	Items    []SharedWithMeItem
	Total    int64
	Page     int
	PageSize int
}

type AccessEntry struct {
	Share     models.PublicShare
	FileID    uint
	Action    string
	IPAddress string
	UserAgent string
	Bytes     *int64
}

type ShareService struct {
	txManager  TxManager
	nodes      repositories.NodeRepository
	shares     repositories.ShareRepository
	copies     repositories.SharedCopyRepository
	accessLogs repositories.AccessLogRepository
	gate       ShareGate
	opts       ShareOptions
	now        func() time.Time
}

func NewShareService(
	txManager TxManager,
	nodes repositories.NodeRepository,
	shares repositories.ShareRepository,
	copies repositories.SharedCopyRepository,
	accessLogs repositories.AccessLogRepository,
	gate ShareGate,
	opts ShareOptions,
) *ShareService {
	if opts.TokenLength < minShareTokenLen {
		opts.TokenLength = minShareTokenLen
	}
	if opts.TokenLength > maxShareTokenLen {
		opts.TokenLength = maxShareTokenLen
	}
	if opts.GrantTTL <= 0 {
		opts.GrantTTL = 30 * time.Minute
	}
	if opts.MaxExpiresInDays <= 0 {
		opts.MaxExpiresInDays = 365
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	if opts.MaxPasswordLength <= 0 {
		opts.MaxPasswordLength = 50
	}
	if opts.MaxDownloadsLimit <= 0 {
		opts.MaxDownloadsLimit = 1000
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 20
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	return &ShareService{
		txManager:  txManager,
		nodes:      nodes,
		shares:     shares,
		copies:     copies,
		accessLogs: accessLogs,
		gate:       gate,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *ShareService) CreateShare(ctx context.Context, in CreateShareInput) (models.PublicShare, error) {
	if in.ExpiresInDays != nil && (*in.ExpiresInDays < 1 || *in.ExpiresInDays > s.opts.MaxExpiresInDays) {
		return models.PublicShare{}, newAppError(KindValidation, "expires_in_days is out of range", nil)
	}
	if in.MaxDownloads != nil && (*in.MaxDownloads < 1 || *in.MaxDownloads > s.opts.MaxDownloadsLimit) {
		return models.PublicShare{}, newAppError(KindValidation, "max_downloads is out of range", nil)
	}
	if in.Password != "" && (len(in.Password) < s.opts.MinPasswordLength || len(in.Password) > s.opts.MaxPasswordLength) {
		return models.PublicShare{}, newAppError(KindValidation, "password length is out of range", nil)
	}

	node, err := s.nodes.GetByIDAndOwner(ctx, nil, in.FileID, in.OwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PublicShare{}, newAppError(KindNotFound, "file not found", nil)
		}
		return models.PublicShare{}, internalError("failed to load file", err)
	}

	if s.gate != nil {
		protected, err := s.gate.IsOtpProtected(ctx, node.ID, in.OwnerID)
		if err != nil {
			return models.PublicShare{}, internalError("failed to check OTP protection", err)
		}
		if protected {
			return models.PublicShare{}, newAppError(KindValidation, "OTP protected files cannot be shared publicly", nil)
		}
		if in.Password != "" {
			premium, err := s.gate.IsPremium(ctx, in.OwnerID)
			if err != nil {
				return models.PublicShare{}, internalError("failed to check account plan", err)
			}
			if !premium {
				return models.PublicShare{}, newAppError(KindForbidden, "password protected shares require a premium account", nil)
			}
		}
	}

	share := models.PublicShare{
		OwnerID:      in.OwnerID,
		FileID:       node.ID,
		ShareType:    shareTypeOf(node),
		IsOneTime:    in.IsOneTime,
		MaxDownloads: in.MaxDownloads,
	}
	if in.ExpiresInDays != nil {
		expires := s.now().AddDate(0, 0, *in.ExpiresInDays)
		share.ExpiresAt = &expires
	}
	if in.Password != "" {
		hashed, err := utils.HashPassword(in.Password)
		if err != nil {
			return models.PublicShare{}, internalError("failed to hash password", err)
		}
		share.PasswordProtected = true
		share.PasswordHash = &hashed
	}

	if err := s.insertShareWithToken(ctx, &share); err != nil {
		return models.PublicShare{}, internalError("failed to create share", err)
	}
	logger.Debugf("share %d created for node %d by user %d", share.ID, node.ID, in.OwnerID)
	return share, nil
}

// insertShareWithToken draws a fresh token until one is free. The unique
// index on share_token settles races with concurrent inserts.
func (s *ShareService) insertShareWithToken(ctx context.Context, share *models.PublicShare) error {
	for attempt := 0; attempt < shareTokenAttempts; attempt++ {
		token, err := generateShareToken(s.opts.TokenLength)
		if err != nil {
			return err
		}
		taken, err := s.shares.CountByToken(ctx, nil, token)
		if err != nil {
			return err
		}
		if taken > 0 {
			continue
		}
		share.ID = 0
		share.ShareToken = token
		err = s.shares.Create(ctx, nil, share)
		if err == nil {
			return nil
		}
		if !repositories.IsUniqueViolation(err) {
			return err
		}
	}
	return errShareTokenExhausted
}

func generateShareToken(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 248 is the largest multiple of 62 below 256
			if b >= 248 {
				continue
			}
			out = append(out, shareTokenAlphabet[int(b)%len(shareTokenAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func (s *ShareService) ResolveShare(ctx context.Context, token string) (models.PublicShare, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.PublicShare{}, newAppError(KindNotFound, "share not found", nil)
	}
	share, err := s.shares.GetByToken(ctx, nil, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PublicShare{}, newAppError(KindNotFound, "share not found", nil)
		}
		return models.PublicShare{}, internalError("failed to load share", err)
	}
	return share, nil
}

// Authorize resolves token and checks that the share is valid, that its
// target is still live and that a password share comes with a grant.
func (s *ShareService) Authorize(ctx context.Context, token string, grant string) (SharedItem, error) {
	share, err := s.ResolveShare(ctx, token)
	if err != nil {
		return SharedItem{}, err
	}
	node, err := s.sharedNode(ctx, share)
	if err != nil {
		return SharedItem{}, err
	}
	if state := CheckValidity(share, s.now()); !state.Valid() {
		return SharedItem{}, newAppErrorWithData(KindExpiredOrExhausted, "share is no longer available", errorData{"status": state}, nil)
	}
	if share.PasswordProtected && !s.grantCovers(ctx, share, grant) {
		return SharedItem{}, newAppErrorWithData(KindForbidden, "password required", errorData{"password_required": true}, nil)
	}
	return SharedItem{Share: share, Node: node}, nil
}

func (s *ShareService) sharedNode(ctx context.Context, share models.PublicShare) (models.FileNode, error) {
	node, err := s.nodes.GetByID(ctx, nil, share.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
		}
		return models.FileNode{}, internalError("failed to load shared item", err)
	}
	if node.OwnerID != share.OwnerID {
		return models.FileNode{}, newAppError(KindNotFound, "shared item is no longer available", nil)
	}
	return node, nil
}

// Summarize describes a share for its landing page. File details are only
// included once the caller is authorized and the share is usable.
func (s *ShareService) Summarize(ctx context.Context, token string, grant string) (ShareSummary, error) {
	share, err := s.ResolveShare(ctx, token)
	if err != nil {
		return ShareSummary{}, err
	}
	node, err := s.sharedNode(ctx, share)
	if err != nil {
		return ShareSummary{}, err
	}
	summary := ShareSummary{
		Token:            share.ShareToken,
		ShareType:        share.ShareType,
		Status:           CheckValidity(share, s.now()),
		PasswordRequired: share.PasswordProtected,
		IsOneTime:        share.IsOneTime,
		DownloadCount:    share.DownloadCount,
		MaxDownloads:     share.MaxDownloads,
		ExpiresAt:        share.ExpiresAt,
	}
	summary.Authorized = !share.PasswordProtected || s.grantCovers(ctx, share, grant)
	if summary.Authorized && summary.Status.Valid() {
		summary.File = &node
	}
	return summary, nil
}

// VerifyPassword checks candidate and returns a grant bound to the share
// token.
func (s *ShareService) VerifyPassword(ctx context.Context, token string, candidate string) (ShareGrant, error) {
	share, err := s.ResolveShare(ctx, token)
	if err != nil {
		return ShareGrant{}, err
	}
	if !share.PasswordProtected {
		return ShareGrant{}, newAppError(KindValidation, "share is not password protected", nil)
	}
	if state := CheckValidity(share, s.now()); !state.Valid() {
		return ShareGrant{}, newAppErrorWithData(KindExpiredOrExhausted, "share is no longer available", errorData{"status": state}, nil)
	}
	if !CheckPassword(share, candidate) {
		return ShareGrant{}, newAppError(KindForbidden, "incorrect password", nil)
	}
	grant, err := s.issueGrant(share.ShareToken)
	if err != nil {
		return ShareGrant{}, internalError("failed to issue access grant", err)
	}
	return grant, nil
}

func (s *ShareService) issueGrant(token string) (ShareGrant, error) {
	if s.opts.GrantSecret == "" {
		return ShareGrant{}, errors.New("grant secret is not configured")
	}
	now := s.now()
	expires := now.Add(s.opts.GrantTTL)
	claims := jwt.RegisteredClaims{
		Subject:   token,
		Issuer:    shareGrantIssuer,
		Audience:  jwt.ClaimStrings{shareGrantAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.GrantSecret))
	if err != nil {
		return ShareGrant{}, err
	}
	return ShareGrant{Grant: signed, ExpiresAt: expires}, nil
}

func (s *ShareService) grantSubject(grant string) (string, bool) {
	if grant == "" || s.opts.GrantSecret == "" {
		return "", false
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(grant, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.opts.GrantSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(shareGrantIssuer),
		jwt.WithAudience(shareGrantAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// grantCovers accepts a grant issued for this share or for any share it was
// derived from.
func (s *ShareService) grantCovers(ctx context.Context, share models.PublicShare, grant string) bool {
	subject, ok := s.grantSubject(grant)
	if !ok {
		return false
	}
	visited := map[uint]struct{}{}
	current := share
	for hop := 0; hop <= s.opts.MaxDepth; hop++ {
		if current.ShareToken == subject {
			return true
		}
		if current.ParentShareID == nil {
			return false
		}
		if _, seen := visited[current.ID]; seen {
			return false
		}
		visited[current.ID] = struct{}{}
		parent, err := s.shares.GetByID(ctx, nil, *current.ParentShareID)
		if err != nil {
			return false
		}
		current = parent
	}
	return false
}

// RecordDownload consumes one download with a single conditional update.
// Losing the race against another download surfaces as expired_or_exhausted.
func (s *ShareService) RecordDownload(ctx context.Context, share models.PublicShare) error {
	now := s.now()
	ok, err := s.shares.IncrementDownloadIfValid(ctx, nil, share.ID, now)
	if err != nil {
		return internalError("failed to record download", err)
	}
	if ok {
		return nil
	}
	current, err := s.shares.GetByID(ctx, nil, share.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(KindNotFound, "share not found", nil)
		}
		return internalError("failed to load share", err)
	}
	return newAppErrorWithData(KindExpiredOrExhausted, "share is no longer available", errorData{"status": CheckValidity(current, now)}, nil)
}

// DeleteShare removes the share, every share derived from it and their copy
// records.
func (s *ShareService) DeleteShare(ctx context.Context, ownerID uint, shareID uint) error {
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.shares.GetByIDAndOwner(ctx, tx, shareID, ownerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newAppError(KindNotFound, "share not found", nil)
			}
			return internalError("failed to load share", err)
		}
		ids, err := collectShareCascade(ctx, tx, s.shares, []uint{shareID})
		if err != nil {
			return err
		}
		return s.deleteSharesTx(ctx, tx, ids)
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return err
		}
		return internalError("failed to delete share", err)
	}
	return nil
}

func (s *ShareService) deleteSharesTx(ctx context.Context, tx *gorm.DB, ids []uint) error {
	if err := s.copies.DeleteByShareIDs(ctx, tx, ids); err != nil {
		return err
	}
	return s.shares.DeleteByIDs(ctx, tx, ids)
}

func (s *ShareService) ListMyShares(ctx context.Context, ownerID uint, page int, pageSize int) (SharePage, error) {
	page, pageSize = normalizePage(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	total, err := s.shares.CountByOwner(ctx, nil, ownerID)
	if err != nil {
		return SharePage{}, internalError("failed to count shares", err)
	}
	shares, err := s.shares.ListByOwner(ctx, nil, ownerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return SharePage{}, internalError("failed to list shares", err)
	}

	fileIDs := make([]uint, 0, len(shares))
	for _, share := range shares {
		fileIDs = append(fileIDs, share.FileID)
	}
	nodes, err := s.nodes.ListByIDs(ctx, nil, fileIDs, false)
	if err != nil {
		return SharePage{}, internalError("failed to load shared files", err)
	}
	byID := make(map[uint]models.FileNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	now := s.now()
	items := make([]ShareListItem, 0, len(shares))
	for _, share := range shares {
		item := ShareListItem{PublicShare: share, Status: CheckValidity(share, now)}
		if node, ok := byID[share.FileID]; ok {
			item.FileName = node.Name
			item.IsFolder = node.IsFolder
			item.Available = true
		}
		items = append(items, item)
	}
	return SharePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *ShareService) ListSharedWithMe(ctx context.Context, viewerID uint, page int, pageSize int) (SharedWithMePage, error) {
	page, pageSize = normalizePage(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	total, err := s.copies.CountByUser(ctx, nil, viewerID)
	if err != nil {
		return SharedWithMePage{}, internalError("failed to count saved items", err)
	}
	records, err := s.copies.ListByUser(ctx, nil, viewerID, (page-1)*pageSize, pageSize)
	if err != nil {
		return SharedWithMePage{}, internalError("failed to list saved items", err)
	}

	shareIDs := make([]uint, 0, len(records))
	fileIDs := make([]uint, 0, len(records))
	for _, record := range records {
		shareIDs = append(shareIDs, record.OriginalShareID)
		fileIDs = append(fileIDs, record.CopiedFileID)
	}
	shares, err := s.shares.ListByIDs(ctx, nil, shareIDs)
	if err != nil {
		return SharedWithMePage{}, internalError("failed to load original shares", err)
	}
	nodes, err := s.nodes.ListByIDs(ctx, nil, fileIDs, false)
	if err != nil {
		return SharedWithMePage{}, internalError("failed to load saved files", err)
	}
	sharesByID := make(map[uint]models.PublicShare, len(shares))
	for _, share := range shares {
		sharesByID[share.ID] = share
	}
	nodesByID := make(map[uint]models.FileNode, len(nodes))
	for _, node := range nodes {
		nodesByID[node.ID] = node
	}

	items := make([]SharedWithMeItem, 0, len(records))
	for _, record := range records {
		item := SharedWithMeItem{
			ID:              record.ID,
			OriginalShareID: record.OriginalShareID,
			CopiedAt:        record.CopiedAt,
		}
		if share, ok := sharesByID[record.OriginalShareID]; ok {
			item.ShareToken = share.ShareToken
			item.OriginalOwnerID = share.OwnerID
		}
		if node, ok := nodesByID[record.CopiedFileID]; ok {
			n := node
			item.File = &n
		}
		items = append(items, item)
	}
	return SharedWithMePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// PurgeExpired deletes shares that expired before cutoff, with their derived
// shares and copy records, and returns how many rows went.
func (s *ShareService) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		ids, err := s.shares.PluckExpiredIDs(ctx, nil, cutoff, sharePurgeBatch)
		if err != nil {
			return purged, internalError("failed to list expired shares", err)
		}
		if len(ids) == 0 {
			return purged, nil
		}
		var removed int
		err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
			all, err := collectShareCascade(ctx, tx, s.shares, ids)
			if err != nil {
				return err
			}
			removed = len(all)
			return s.deleteSharesTx(ctx, tx, all)
		})
		if err != nil {
			return purged, internalError("failed to purge expired shares", err)
		}
		purged += removed
	}
}

// LogAccess records a share access. Failures are logged only.
func (s *ShareService) LogAccess(ctx context.Context, entry AccessEntry) {
	if s.accessLogs == nil {
		return
	}
	record := models.ShareAccessLog{
		ShareID:    entry.Share.ID,
		FileID:     entry.FileID,
		Action:     entry.Action,
		IPAddress:  truncate(entry.IPAddress, 45),
		UserAgent:  truncate(entry.UserAgent, 500),
		AccessTime: s.now(),
		Bytes:      entry.Bytes,
	}
	if record.FileID == 0 {
		record.FileID = entry.Share.FileID
	}
	if err := s.accessLogs.Create(context.WithoutCancel(ctx), nil, &record); err != nil {
		logger.Warnf("share %d: record %s access: %v", entry.Share.ID, entry.Action, err)
	}
}

// collectShareCascade expands rootIDs with every share derived from them.
func collectShareCascade(ctx context.Context, tx *gorm.DB, shares repositories.ShareRepository, rootIDs []uint) ([]uint, error) {
	seen := make(map[uint]struct{}, len(rootIDs))
	all := make([]uint, 0, len(rootIDs))
	frontier := make([]uint, 0, len(rootIDs))
	for _, id := range rootIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		all = append(all, id)
		frontier = append(frontier, id)
	}
	for len(frontier) > 0 {
		children, err := shares.PluckIDsByParentShareIDs(ctx, tx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(children))
		for _, id := range children {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
			next = append(next, id)
		}
		frontier = next
	}
	return all, nil
}

func shareTypeOf(node models.FileNode) string {
	if node.IsFolder {
		return models.ShareTypeFolder
	}
	return models.ShareTypeFile
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
