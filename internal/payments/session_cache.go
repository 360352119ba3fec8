package payments

import (
	"context"
	"time"

	"github.com/modelgate/modelgate/internal/cache"
	"github.com/modelgate/modelgate/internal/models"
)

const (
	sessionKeyPrefix  = "paygate:granted:"
	maxSessionFlagTTL = time.Hour
)

// SessionCache is a best-effort fast path for "already granted" flags.
// It is populated only after a verification success or a confirmed store
// hit, and a miss (or any error) always falls through to the GrantStore:
// the cache can never be the sole reason access is granted or denied.
type SessionCache struct {
	store cache.Store
}

// NewSessionCache wraps a cache store. A nil store yields a nil cache,
// which is safe to call.
func NewSessionCache(store cache.Store) *SessionCache {
	if store == nil {
		return nil
	}
	return &SessionCache{store: store}
}

// Granted reports whether the tuple is known to be granted. False means
// unknown, never "denied".
func (c *SessionCache) Granted(ctx context.Context, subject, resourceType, resourceID string) bool {
	if c == nil {
		return false
	}

	_, found, err := c.store.Get(ctx, sessionKey(subject, resourceType, resourceID))
	if err != nil {
		return false
	}
	return found
}

// MarkGranted records the flag for an active grant. The TTL never outlives
// the grant, so a stale flag cannot extend access past expiry.
func (c *SessionCache) MarkGranted(ctx context.Context, grant *models.Grant) {
	if c == nil || grant == nil {
		return
	}

	ttl := time.Until(grant.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if ttl > maxSessionFlagTTL {
		ttl = maxSessionFlagTTL
	}

	key := sessionKey(grant.Subject, grant.ResourceType, grant.ResourceID)
	_ = c.store.Set(ctx, key, []byte("1"), ttl) // best effort
}

func sessionKey(subject, resourceType, resourceID string) string {
	return sessionKeyPrefix + NormalizeSubject(subject) + ":" + resourceType + ":" + resourceID
}
