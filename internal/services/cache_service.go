package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/utils"
	"sosalert/pkg/cache"
	"sosalert/pkg/logger"
	"sosalert/pkg/metrics"
)

// CacheService keeps authenticated principals and revoked tokens. Reads hit
// the in-process cache first and Redis second; writes go to both. Redis is
// optional and its failures only cost a store round-trip.
type CacheService interface {
	// Principals
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, bool)
	SetUser(ctx context.Context, user *models.User)
	InvalidateUser(ctx context.Context, id primitive.ObjectID)

	// Token revocation
	RevokeToken(ctx context.Context, token string, expiresAt time.Time)
	IsTokenRevoked(ctx context.Context, token string) bool
}

type cacheService struct {
	local   *cache.LocalCache
	redis   *cache.RedisCache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *logger.Logger
}

const (
	cacheRevokedPrefix = "revoked:"
	principalCache     = "principal"
)

// NewCacheService builds the two-tier cache. redis may be nil.
func NewCacheService(local *cache.LocalCache, redis *cache.RedisCache, ttl time.Duration, m *metrics.Metrics, log *logger.Logger) CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &cacheService{
		local:   local,
		redis:   redis,
		ttl:     ttl,
		metrics: m,
		logger:  log,
	}
}

func (s *cacheService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, bool) {
	key := utils.CacheUserPrefix + id.Hex()

	if v, ok := s.local.Get(key); ok {
		if u, ok := v.(*models.User); ok {
			s.metrics.CacheHit(principalCache)
			return u.Clone(), true
		}
	}

	if s.redis != nil {
		var u models.User
		err := s.redis.Get(ctx, key, &u)
		if err == nil {
			s.metrics.CacheHit(principalCache)
			s.local.Set(key, &u)
			return u.Clone(), true
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Debug("Redis principal lookup failed")
		}
	}

	s.metrics.CacheMiss(principalCache)
	return nil, false
}

func (s *cacheService) SetUser(ctx context.Context, user *models.User) {
	key := utils.CacheUserPrefix + user.ID.Hex()
	s.local.Set(key, user.Clone())

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, user, s.ttl); err != nil {
			s.logger.WithError(err).Debug("Redis principal write failed")
		}
	}
}

func (s *cacheService) InvalidateUser(ctx context.Context, id primitive.ObjectID) {
	key := utils.CacheUserPrefix + id.Hex()
	s.local.Delete(key)

	if s.redis != nil {
		if err := s.redis.Delete(ctx, key); err != nil {
			s.logger.WithError(err).Warn("Redis principal invalidation failed")
		}
	}
}

func (s *cacheService) RevokeToken(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	key := revokedKey(token)
	s.local.SetWithTTL(key, true, ttl)

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, true, ttl); err != nil {
			s.logger.WithError(err).Warn("Redis token revocation failed")
		}
	}
}

func (s *cacheService) IsTokenRevoked(ctx context.Context, token string) bool {
	key := revokedKey(token)
	if _, ok := s.local.Get(key); ok {
		return true
	}
	if s.redis == nil {
		return false
	}

	var revoked bool
	if err := s.redis.Get(ctx, key, &revoked); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Debug("Redis revocation lookup failed")
		}
		return false
	}
	return revoked
}

// revokedKey hashes the token so raw credentials never reach the cache.
func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return cacheRevokedPrefix + hex.EncodeToString(sum[:])
}
