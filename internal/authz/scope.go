package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// ScopeFilter restricts record lists to the actor's authorized
// projects. The authorized-id set is cached in redis per actor.
type ScopeFilter struct {
	resolver *AccessResolver
	cache    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

// NewScopeFilter constructs the filter. cache may be nil, in which
// case every call resolves from storage.
func NewScopeFilter(resolver *AccessResolver, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *ScopeFilter {
	return &ScopeFilter{resolver: resolver, cache: cache, ttl: ttl, logger: logger}
}

func scopeKey(tenantID, actorID string) string {
	return fmt.Sprintf("scope:%s:%s", tenantID, actorID)
}

// FilterByProjectAccess keeps only records whose projectId belongs to
// the actor's authorized set. company_admin input passes unchanged;
// records lacking a projectId are dropped.
func (f *ScopeFilter) FilterByProjectAccess(ctx context.Context, actorID string, role Role, records []tenant.Document, h *tenant.Handle) []tenant.Document {
	if IsCompanyAdmin(role) {
		return records
	}

	allowed := f.AuthorizedProjectIDs(ctx, actorID, h)
	filtered := make([]tenant.Document, 0, len(records))
	for _, record := range records {
		projectID, ok := record["projectId"].(string)
		if !ok || projectID == "" {
			continue
		}
		if _, ok := allowed[projectID]; ok {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// AuthorizedProjectIDs resolves the actor's project-id set, consulting
// the cache first.
func (f *ScopeFilter) AuthorizedProjectIDs(ctx context.Context, actorID string, h *tenant.Handle) map[string]struct{} {
	key := scopeKey(h.TenantID(), actorID)

	if f.cache != nil {
		ids, err := f.cache.SMembers(ctx, key).Result()
		if err == nil && len(ids) > 0 {
			allowed := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				if id == scopeEmptyMarker {
					continue
				}
				allowed[id] = struct{}{}
			}
			return allowed
		}
		if err != nil {
			f.logger.Warn("scope cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	userProjects := f.resolver.UserProjects(ctx, actorID, h)
	allowed := make(map[string]struct{}, len(userProjects))
	members := make([]any, 0, len(userProjects)+1)
	for _, p := range userProjects {
		allowed[p.ID] = struct{}{}
		members = append(members, p.ID)
	}

	if f.cache != nil {
		// A marker member lets an empty set cache too.
		members = append(members, scopeEmptyMarker)
		pipe := f.cache.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, f.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			f.logger.Warn("scope cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return allowed
}

// InvalidateActor drops the cached set after assignment changes.
func (f *ScopeFilter) InvalidateActor(ctx context.Context, tenantID, actorID string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Del(ctx, scopeKey(tenantID, actorID)).Err(); err != nil {
		f.logger.Warn("scope cache invalidate failed",
			slog.String("tenant", tenantID),
			slog.String("actor", actorID),
			slog.Any("error", err))
	}
}

const scopeEmptyMarker = "__none__"
