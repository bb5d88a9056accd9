// Package authz answers "is this caller an admin" for the on-demand trigger.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/domain"
	lru "github.com/hashicorp/golang-lru"
)

type cachedRole struct {
	admin    bool
	cachedAt time.Time
}

// AdminChecker looks up user roles and caches the answer for a short TTL.
type AdminChecker struct {
	users domain.UserStore
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewAdminChecker creates an AdminChecker with an LRU of size entries.
func NewAdminChecker(users domain.UserStore, size int, ttl time.Duration) (*AdminChecker, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("authz: create cache: %w", err)
	}
	return &AdminChecker{
		users: users,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// IsAuthorizedAdmin reports whether callerID is an existing admin user.
// Unknown users are not admins.
func (a *AdminChecker) IsAuthorizedAdmin(ctx context.Context, callerID string) (bool, error) {
	if cached, ok := a.cache.Get(callerID); ok {
		entry := cached.(cachedRole)
		if a.now().Sub(entry.cachedAt) < a.ttl {
			return entry.admin, nil
		}
	}

	u, err := a.users.GetByID(ctx, callerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.store(callerID, false)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("authz: lookup %s: %w", callerID, err)
	}
	a.store(callerID, u.IsAdmin())
	return u.IsAdmin(), nil
}

// Forget drops a cached answer, e.g. after a role change.
func (a *AdminChecker) Forget(callerID string) {
	a.cache.Remove(callerID)
}

func (a *AdminChecker) store(id string, admin bool) {
	a.cache.Add(id, cachedRole{admin: admin, cachedAt: a.now()})
}
