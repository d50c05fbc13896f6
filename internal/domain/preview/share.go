package preview

import (
	"context"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/cache"
	"github.com/google/uuid"
)

// shareRecord is the only thing stored for a share token.
type shareRecord struct {
	PreviewID string `json:"preview_id"`
}

// Shares maps share tokens to sessions through the cache store.
type Shares struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewShares creates a share registry whose tokens live for ttl.
func NewShares(c *cache.Cache, ttl time.Duration) *Shares {
	if ttl <= 0 {
		ttl = c.TTL(cache.KindShare)
	}
	return &Shares{cache: c, ttl: ttl}
}

// Create issues a token for previewID.
func (s *Shares) Create(ctx context.Context, previewID string) (string, time.Time) {
	token := uuid.NewString()
	s.cache.SetJSON(ctx, cache.KindShare, s.cache.ShareKey(token), shareRecord{PreviewID: previewID}, s.ttl)
	return token, time.Now().Add(s.ttl).UTC()
}

// Resolve returns the preview id for token.
func (s *Shares) Resolve(ctx context.Context, token string) (string, bool) {
	if _, err := uuid.Parse(token); err != nil {
		return "", false
	}

	var rec shareRecord
	if !s.cache.GetJSON(ctx, cache.KindShare, s.cache.ShareKey(token), &rec) || rec.PreviewID == "" {
		return "", false
	}
	return rec.PreviewID, true
}
