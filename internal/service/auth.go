package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"comment-moderation/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// AuthConfig configures the moderator login.
type AuthConfig struct {
	// Password is hashed at startup when PasswordHash is empty.
	Password     string
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// Authenticator issues and checks moderator session tokens. There is a
// single shared moderator password.
type Authenticator struct {
	passwordHash string
	secret       []byte
	ttl          time.Duration
	revoked      *cache.Cache
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthenticator creates a moderator authenticator
func NewAuthenticator(cfg AuthConfig, logger *zap.Logger) (*Authenticator, error) {
	hash := cfg.PasswordHash
	if hash == "" {
		if cfg.Password == "" {
			return nil, errors.New("moderator password or password_hash is required")
		}
		var err error
		if hash, err = HashPassword(cfg.Password); err != nil {
			return nil, fmt.Errorf("failed to hash moderator password: %w", err)
		}
	} else if _, _, err := decodeHash(hash); err != nil {
		return nil, fmt.Errorf("invalid moderator password_hash: %w", err)
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		logger.Warn("No jwt_secret configured, sessions will not survive a restart")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	return &Authenticator{
		passwordHash: hash,
		secret:       secret,
		ttl:          ttl,
		revoked:      cache.New(ttl, 10*time.Minute),
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Login checks the moderator password and returns a signed token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !VerifyPassword(a.passwordHash, password) {
		a.logger.Warn("Moderator login failed")
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expirationTime := now.Add(a.ttl)
	claims := &models.Claims{
		Role: models.ModeratorSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   models.ModeratorSubject,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		a.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	a.logger.Info("Moderator logged in", zap.String("jti", claims.ID))
	return tokenString, expirationTime, nil
}

// Verify parses a token and checks it has not been revoked.
func (a *Authenticator) Verify(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(models.ModeratorSubject),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, found := a.revoked.Get(claims.ID); found {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes a token until it would have expired anyway.
func (a *Authenticator) Logout(tokenString string) error {
	claims, err := a.Verify(tokenString)
	if err != nil {
		return err
	}

	remaining := claims.ExpiresAt.Time.Sub(a.now())
	if remaining <= 0 {
		return nil
	}
	a.revoked.Set(claims.ID, struct{}{}, remaining)

	a.logger.Info("Moderator logged out", zap.String("jti", claims.ID))
	return nil
}

// HashPassword uses Argon2id to hash the password.
// Output format: $argon2id$v=19$m=65536,t=1,p=4$BASE64_SALT$BASE64_HASH
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword compares a plaintext password with an encoded hash.
func VerifyPassword(encoded, password string) bool {
	params, parts, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	comparison := argon2.IDKey([]byte(password), parts.salt, params.time, params.memory, params.threads, uint32(len(parts.hash)))
	return subtle.ConstantTimeCompare(comparison, parts.hash) == 1
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

type argonParts struct {
	salt []byte
	hash []byte
}

func decodeHash(encoded string) (argonParams, argonParts, error) {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", "salt", "hash"]
	sections := strings.Split(encoded, "$")
	if len(sections) != 6 || sections[1] != "argon2id" {
		return argonParams{}, argonParts{}, errors.New("hash is not in argon2id format")
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil {
		return argonParams{}, argonParts{}, fmt.Errorf("bad version: %w", err)
	}
	if version != argon2.Version {
		return argonParams{}, argonParts{}, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var p argonParams
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return argonParams{}, argonParts{}, fmt.Errorf("bad parameters: %w", err)
	}

	var parts argonParts
	var err error
	if parts.salt, err = base64.RawStdEncoding.DecodeString(sections[4]); err != nil {
		return argonParams{}, argonParts{}, fmt.Errorf("bad salt: %w", err)
	}
	if parts.hash, err = base64.RawStdEncoding.DecodeString(sections[5]); err != nil {
		return argonParams{}, argonParts{}, fmt.Errorf("bad hash: %w", err)
	}
	return p, parts, nil
}
