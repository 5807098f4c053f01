package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"

	"github.com/scopegate/scopegate/internal/log"
	"github.com/scopegate/scopegate/internal/storage"
)

// AuthConfig controls session JWTs and auth tokens.
type AuthConfig struct {
	// SecretKey signs session JWTs. Generated at startup when empty.
	SecretKey string `conf:"secret_key" yaml:"secret_key" json:"secret_key"`

	JWTTTL   time.Duration `conf:"jwt_ttl" yaml:"jwt_ttl" json:"jwt_ttl"`
	TokenTTL time.Duration `conf:"token_ttl" yaml:"token_ttl" json:"token_ttl"`

	// UserCacheSize and UserCacheTTL bound the per-token user lookup cache.
	UserCacheSize int           `conf:"user_cache_size" yaml:"user_cache_size" json:"user_cache_size"`
	UserCacheTTL  time.Duration `conf:"user_cache_ttl" yaml:"user_cache_ttl" json:"user_cache_ttl"`
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.JWTTTL == 0 {
		c.JWTTTL = 7 * 24 * time.Hour
	}

	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}

	if c.UserCacheSize == 0 {
		c.UserCacheSize = 1024
	}

	if c.UserCacheTTL == 0 {
		c.UserCacheTTL = time.Minute
	}

	return c
}

type AuthServiceParams struct {
	fx.In

	Store  *storage.Store
	Config AuthConfig
}

func NewAuthService(params AuthServiceParams) (*AuthService, error) {
	cfg := params.Config.withDefaults()

	if cfg.SecretKey == "" {
		key, err := GenerateSecretKey()
		if err != nil {
			return nil, err
		}

		cfg.SecretKey = key
	}

	return &AuthService{
		store:     params.Store,
		cfg:       cfg,
		userCache: lru.NewLRU[int64, *storage.User](cfg.UserCacheSize, nil, cfg.UserCacheTTL),
	}, nil
}

// AuthService authenticates principals: JWT sessions for the admin surface
// and stored tokens for the API surface.
type AuthService struct {
	store     *storage.Store
	cfg       AuthConfig
	userCache *lru.LRU[int64, *storage.User]
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashedPassword), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(hashedPassword, password string) error {
	decodedHashedPassword, err := hex.DecodeString(hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to decode hashed password: %w", err)
	}

	return bcrypt.CompareHashAndPassword(decodedHashedPassword, []byte(password))
}

// GenerateSecretKey generates a random secret key.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// GenerateJWTToken generates a session JWT for a user.
func (s *AuthService) GenerateJWTToken(ctx context.Context, user *storage.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(s.cfg.JWTTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// AuthenticateUser authenticates a user with email and password.
func (s *AuthService) AuthenticateUser(ctx context.Context, email, password string) (*storage.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("invalid email or password: %w", ErrInvalidPassword)
		}

		log.Error(ctx, "failed to get user", log.Cause(err))

		return nil, ErrInternal
	}

	if err := VerifyPassword(user.Password, password); err != nil {
		return nil, fmt.Errorf("invalid email or password: %w", ErrInvalidPassword)
	}

	log.Debug(ctx, "user authenticated", log.Int64("user_id", user.ID))

	return user, nil
}

// AuthenticateJWTToken validates a session JWT and returns the user.
func (s *AuthService) AuthenticateJWTToken(ctx context.Context, tokenString string) (*storage.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v: %w", t.Header["alg"], ErrInvalidJWT)
		}

		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidJWT
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidJWT
	}

	rawUserID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidJWT
	}

	return s.getUser(ctx, int64(rawUserID))
}

// IssueToken creates a new auth token for a user.
func (s *AuthService) IssueToken(ctx context.Context, userID int64) (*storage.Token, error) {
	bytes := make([]byte, 20)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate token value: %w", err)
	}

	return s.store.CreateToken(ctx, userID, hex.EncodeToString(bytes), time.Now().Add(s.cfg.TokenTTL))
}

// AuthenticateToken validates a stored token and returns its user. Unknown
// tokens yield TokenNotFoundError; expired tokens are deleted and yield
// TokenExpiredError. Successful authentication touches the token's
// last-used timestamp.
func (s *AuthService) AuthenticateToken(ctx context.Context, value string) (*storage.User, *storage.Token, error) {
	token, err := s.store.GetToken(ctx, value)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, &TokenNotFoundError{Token: value}
		}

		log.Error(ctx, "failed to get token", log.Cause(err))

		return nil, nil, ErrInternal
	}

	if token.Expired() {
		if err := s.store.DeleteToken(ctx, token.ID); err != nil {
			log.Warn(ctx, "failed to delete expired token", log.Int64("token_id", token.ID), log.Cause(err))
		}

		return nil, nil, &TokenExpiredError{Token: token.Token, ExpiresAt: token.ExpiresAt}
	}

	user, err := s.getUser(ctx, token.UserID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.TouchToken(ctx, token.ID); err != nil {
		log.Warn(ctx, "failed to touch token", log.Int64("token_id", token.ID), log.Cause(err))
	}

	return user, token, nil
}

// GetToken loads a token by id.
func (s *AuthService) GetToken(ctx context.Context, id int64) (*storage.Token, error) {
	return s.store.GetTokenByID(ctx, id)
}

// RevokeToken removes a token.
func (s *AuthService) RevokeToken(ctx context.Context, id int64) error {
	return s.store.DeleteToken(ctx, id)
}

func (s *AuthService) getUser(ctx context.Context, id int64) (*storage.User, error) {
	if user, ok := s.userCache.Get(id); ok {
		return user, nil
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInvalidJWT
		}

		log.Error(ctx, "failed to get user", log.Int64("user_id", id), log.Cause(err))

		return nil, ErrInternal
	}

	s.userCache.Add(id, user)

	return user, nil
}
