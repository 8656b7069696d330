package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tsbernar/proxy-auth/types"
)

// ObjectStore is the subset of storage.Storage used for exports.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// AccountSnapshot is the exported document. Password hashes are never part of
// it; types.User hides them from JSON.
type AccountSnapshot struct {
	ExportedAt time.Time    `json:"exported_at"`
	Count      int          `json:"count"`
	Users      []types.User `json:"users"`
}

// ExportService writes account snapshots to object storage.
type ExportService struct {
	users   UserRepository
	objects ObjectStore
	now     func() time.Time
}

func NewExportService(users UserRepository, objects ObjectStore) *ExportService {
	return &ExportService{users: users, objects: objects, now: time.Now}
}

// Export uploads a snapshot under key, or under a timestamped key when key is
// empty. It returns the object key written.
func (e *ExportService) Export(ctx context.Context, key string) (string, error) {
	users, err := e.users.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	now := e.now().UTC()
	key = strings.TrimSpace(key)
	if key == "" {
		key = fmt.Sprintf("accounts/%s.json", now.Format("20060102T150405Z"))
	}

	body, err := json.MarshalIndent(AccountSnapshot{
		ExportedAt: now,
		Count:      len(users),
		Users:      users,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := e.objects.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", e.objects.Bucket(), err)
	}
	if err := e.objects.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
