package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/imalykh/bankcards/internal/crypto"
	"github.com/imalykh/bankcards/internal/errs"
	"github.com/imalykh/bankcards/internal/limiter"
	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/repository"
)

// AccessClaims is the JWT payload of an access token: subject is the user id,
// roles travel with the token so the transport layer can authorize without a
// second lookup.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string   `json:"uname"`
	Roles    []string `json:"roles"`
}

// Tokens collects an issued access token and its expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService defines registration and authentication operations.
type AuthService interface {
	// Register creates a new user with secure password hashing and the USER role.
	Register(ctx context.Context, username, password string) (*model.User, error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password, ip string) (Tokens, model.User, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim}
}

// Register creates a new user record with a per-user salt and the USER role.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("empty username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:        uid,
		Username:  username,
		PwdHash:   pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth:  salt,
		Roles:     []string{model.RoleUser},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (Tokens, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return Tokens{}, model.User{}, err
	}
	if !allowed {
		return Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// hide whether the user exists
		return Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	tokens, err := s.issueAccessToken(u)
	if err != nil {
		return Tokens{}, model.User{}, err
	}
	return tokens, *u, nil
}

// issueAccessToken creates a signed HS256 JWT carrying username and roles.
func (s *AuthServiceImpl) issueAccessToken(u *model.User) (Tokens, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: u.Username,
		Roles:    append([]string(nil), u.Roles...),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return Tokens{AccessToken: signed, ExpiresAt: exp}, err
}
