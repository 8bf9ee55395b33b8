package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/manarah-platform/manarah/internal/shared"
)

// ErrInvalidToken is returned for malformed, unknown, revoked, or
// expired credentials. The cause is deliberately not distinguished.
var ErrInvalidToken = errors.New("invalid token")

// RepositoryPort describes token storage used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, t Token) (int64, error)
	Get(ctx context.Context, id int64) (Token, error)
	Revoke(ctx context.Context, id int64) error
}

// Service resolves bearer tokens to actors, with a redis read-through
// cache in front of postgres so the bcrypt comparison runs once per TTL.
type Service struct {
	repo     RepositoryPort
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService constructs the auth service. cache may be nil; resolution
// then always hits postgres.
func NewService(repo RepositoryPort, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Issue creates a token for an actor and returns the bearer string. The
// secret is shown once and never stored in clear.
func (s *Service) Issue(ctx context.Context, actorID int64, role string, expiresAt *time.Time) (string, error) {
	if actorID <= 0 {
		return "", shared.FieldFailf("actor_id", "actor is required")
	}
	if strings.TrimSpace(role) == "" {
		return "", shared.FieldFailf("role", "role is required")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	id, err := s.repo.Create(ctx, Token{
		ActorID:    actorID,
		Role:       role,
		SecretHash: string(hash),
		Active:     true,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%s", id, secret), nil
}

// Resolve maps a bearer string to the actor it was issued for.
func (s *Service) Resolve(ctx context.Context, bearer string) (shared.Actor, error) {
	idPart, secret, ok := strings.Cut(bearer, ".")
	if !ok || secret == "" {
		return shared.Actor{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return shared.Actor{}, ErrInvalidToken
	}

	cacheKey := s.key(bearer)
	if actor, ok := s.cached(ctx, cacheKey); ok {
		return actor, nil
	}

	token, err := s.repo.Get(ctx, id)
	if err != nil {
		return shared.Actor{}, ErrInvalidToken
	}
	if !token.Active || token.Expired(time.Now()) {
		return shared.Actor{}, ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)); err != nil {
		return shared.Actor{}, ErrInvalidToken
	}

	actor := shared.Actor{ID: token.ActorID, Role: token.Role}
	s.store(ctx, cacheKey, actor, token.ExpiresAt)
	return actor, nil
}

// Revoke deactivates a token. Cached resolutions lapse with the TTL.
func (s *Service) Revoke(ctx context.Context, id int64) error {
	return s.repo.Revoke(ctx, id)
}

func (s *Service) key(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return "auth:token:" + hex.EncodeToString(sum[:])
}

func (s *Service) cached(ctx context.Context, key string) (shared.Actor, bool) {
	if s.cache == nil {
		return shared.Actor{}, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return shared.Actor{}, false
	}
	var actor shared.Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		return shared.Actor{}, false
	}
	return actor, true
}

func (s *Service) store(ctx context.Context, key string, actor shared.Actor, expiresAt *time.Time) {
	if s.cache == nil {
		return
	}
	ttl := s.cacheTTL
	if expiresAt != nil {
		if until := time.Until(*expiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(actor)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("auth cache set failed", slog.Any("error", err))
	}
}
