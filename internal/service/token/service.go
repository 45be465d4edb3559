package token

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iamasit07/pingline/backend/internal/config"
	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/iamasit07/pingline/backend/internal/repository/postgres"
	"github.com/iamasit07/pingline/backend/pkg/auth"
)

const refreshTokenKeyPrefix = "refresh_token:"

// UserRepository is the slice of user persistence the credential service needs.
type UserRepository interface {
	GetUserByID(userID int64) (*postgres.User, error)
	SetRefreshToken(userID int64, token string) error
	SwapRefreshToken(userID int64, oldToken, newToken string) (bool, error)
	ClearRefreshToken(userID int64) error
}

type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Service issues, verifies and rotates access/refresh token pairs. Exactly one
// refresh token is valid per user at a time: issuing a new pair overwrites the
// stored token, and presenting anything but the stored token on rotation fails
// with ErrSuperseded. That detects replay of an already-rotated token without
// a revocation list.
type Service struct {
	users UserRepository
	cache CacheRepository // Optional, can be nil

	mu     sync.Mutex
	userMu map[int64]*sync.Mutex
}

func NewService(users UserRepository, cache CacheRepository) *Service {
	return &Service{
		users:  users,
		cache:  cache,
		userMu: make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the per-user mutex, creating it on first use. Rotations for
// the same user must be serialized so that exactly one of two concurrent
// calls wins.
func (s *Service) lockFor(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.userMu[userID]
	if !ok {
		m = &sync.Mutex{}
		s.userMu[userID] = m
	}
	return m
}

// IssuePair generates a fresh access/refresh pair for the user and persists
// the refresh token against the user record, overwriting any prior value.
func (s *Service) IssuePair(userID int64) (accessToken, refreshToken string, err error) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load user: %v", err)
	}
	if user == nil {
		return "", "", errs.ErrNotFound
	}

	accessToken, err = auth.GenerateAccessToken(user.ID, user.Username, user.Fullname, user.AvatarURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %v", err)
	}

	refreshToken, err = auth.GenerateRefreshToken(user.ID)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %v", err)
	}

	if err := s.users.SetRefreshToken(user.ID, refreshToken); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %v", err)
	}
	s.cacheRefreshToken(user.ID, refreshToken)

	return accessToken, refreshToken, nil
}

// VerifyAccess validates signature and expiry of an access token and returns
// its claims. Any failure maps to ErrInvalidCredential.
func (s *Service) VerifyAccess(tokenString string) (*auth.Claims, error) {
	claims, err := auth.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidCredential, err)
	}
	return claims, nil
}

// Rotate exchanges a valid refresh token for a new pair. The presented token
// must exactly equal the one currently stored for the user; otherwise the
// token has already been rotated away (concurrent refresh or replay) and the
// call fails with ErrSuperseded.
func (s *Service) Rotate(refreshTokenString string) (newAccessToken, newRefreshToken string, userID int64, err error) {
	claims, err := auth.ValidateRefreshToken(refreshTokenString)
	if err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", errs.ErrInvalidCredential, err)
	}

	lock := s.lockFor(claims.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Cache-first check: a hit on a token that is no longer current rejects
	// the replay without a database round trip. A miss or cache error falls
	// through to the authoritative store.
	if cached, ok := s.cachedRefreshToken(claims.UserID); ok && cached != refreshTokenString {
		return "", "", 0, errs.ErrSuperseded
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to load user: %v", err)
	}
	if user == nil {
		return "", "", 0, errs.ErrInvalidCredential
	}
	if !user.RefreshToken.Valid || user.RefreshToken.String == "" {
		// Revoked (logout) or never issued.
		return "", "", 0, errs.ErrInvalidCredential
	}
	if user.RefreshToken.String != refreshTokenString {
		return "", "", 0, errs.ErrSuperseded
	}

	newAccessToken, err = auth.GenerateAccessToken(user.ID, user.Username, user.Fullname, user.AvatarURL)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate access token: %v", err)
	}
	newRefreshToken, err = auth.GenerateRefreshToken(user.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate refresh token: %v", err)
	}

	// Compare-and-swap in storage: catches a concurrent rotation that slipped
	// past the in-process lock (e.g. a second gateway process).
	swapped, err := s.users.SwapRefreshToken(user.ID, refreshTokenString, newRefreshToken)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to swap refresh token: %v", err)
	}
	if !swapped {
		return "", "", 0, errs.ErrSuperseded
	}
	s.cacheRefreshToken(user.ID, newRefreshToken)

	return newAccessToken, newRefreshToken, user.ID, nil
}

// Revoke clears the stored refresh token, forcing all future Rotate calls for
// this user to fail until a fresh login.
func (s *Service) Revoke(userID int64) error {
	if err := s.users.ClearRefreshToken(userID); err != nil {
		return err
	}
	if s.cache != nil {
		ctx := context.Background()
		if err := s.cache.Del(ctx, refreshTokenKeyPrefix+fmt.Sprint(userID)); err != nil {
			log.Printf("[TOKEN] Warning: Failed to delete refresh token from cache: %v", err)
		}
	}
	return nil
}

func (s *Service) cacheRefreshToken(userID int64, token string) {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	ttl := time.Duration(config.AppConfig.RefreshTokenTTLDays) * 24 * time.Hour
	key := refreshTokenKeyPrefix + fmt.Sprint(userID)
	if err := s.cache.Set(ctx, key, token, ttl); err != nil {
		log.Printf("[TOKEN] Warning: Failed to cache refresh token: %v", err)
		// The cache must never hold a previous generation while the store
		// holds a newer one, or a valid rotation would be rejected.
		if err := s.cache.Del(ctx, key); err != nil {
			log.Printf("[TOKEN] Warning: Failed to evict stale refresh token: %v", err)
		}
	}
}

// cachedRefreshToken returns the cached current refresh token for the user.
// Any cache failure reads as a miss.
func (s *Service) cachedRefreshToken(userID int64) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	val, err := s.cache.Get(context.Background(), refreshTokenKeyPrefix+fmt.Sprint(userID))
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}
