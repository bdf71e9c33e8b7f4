package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens in the typ claim
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ErrPrincipalNotFound is returned by a UserLookup when the user no longer exists
var ErrPrincipalNotFound = errors.New("principal not found")

// Principal is the subset of a user record the token service needs
type Principal struct {
	UserID            int64
	TenantID          *int64
	RoleSlug          string
	SuperAdmin        bool
	Active            bool
	CredentialVersion int64
}

// Identity is the verified content of an access token
type Identity struct {
	UserID            int64
	TenantID          *int64
	RoleSlug          string
	SuperAdmin        bool
	CredentialVersion int64
	TokenID           string
	ExpiresAt         time.Time
}

// HasTenant reports whether the identity is pinned to tenantID
func (i *Identity) HasTenant(tenantID int64) bool {
	return i.TenantID != nil && *i.TenantID == tenantID
}

// UserLookup re-reads the current state of a user during refresh
type UserLookup interface {
	LookupPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// CredentialStore extends UserLookup with credential version bumps
type CredentialStore interface {
	UserLookup
	BumpCredentialVersion(ctx context.Context, userID int64) (int64, error)
}

// TokenPair is returned by Issue and Refresh
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Claims is the JWT payload of both token types
type Claims struct {
	jwt.RegisteredClaims
	TenantID          *int64    `json:"tid,omitempty"`
	Role              string    `json:"role,omitempty"`
	SuperAdmin        bool      `json:"sa,omitempty"`
	CredentialVersion int64     `json:"cv"`
	Type              TokenType `json:"typ"`
}

// TokenConfig configures a TokenService
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now defaults to time.Now
	Now func() time.Time
}

// TokenService issues and verifies HS256 access/refresh token pairs.
// Revocation is a per-user credential version: bumping it invalidates every
// token issued before the bump without keeping a blacklist.
type TokenService struct {
	cfg   TokenConfig
	store CredentialStore
}

// NewTokenService creates a token service
func NewTokenService(cfg TokenConfig, store CredentialStore) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, fmt.Errorf("access and refresh secrets are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{cfg: cfg, store: store}, nil
}

// Issue signs a new pair for p. Inactive principals get UserNotActive.
func (s *TokenService) Issue(ctx context.Context, p *Principal) (*TokenPair, error) {
	if !p.Active {
		return nil, ErrUserNotActive
	}

	now := s.cfg.Now()
	accessExp := now.Add(s.cfg.AccessTTL)
	refreshExp := now.Add(s.cfg.RefreshTTL)

	access, err := s.sign(p, TokenTypeAccess, now, accessExp, s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(p, TokenTypeRefresh, now, refreshExp, s.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.cfg.AccessTTL.Seconds()),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) sign(p *Principal, typ TokenType, now, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:              p.RoleSlug,
		SuperAdmin:        p.SuperAdmin,
		CredentialVersion: p.CredentialVersion,
		Type:              typ,
	}
	if !p.SuperAdmin {
		claims.TenantID = p.TenantID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify checks signature, type and expiry of an access token. It never
// touches the store.
func (s *TokenService) Verify(accessToken string) (*Identity, error) {
	claims, err := s.parse(accessToken, TokenTypeAccess, s.cfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, newAuthError(KindMalformed, fmt.Errorf("invalid subject"))
	}
	if !claims.SuperAdmin && claims.TenantID == nil {
		return nil, newAuthError(KindMalformed, fmt.Errorf("missing tenant"))
	}

	return &Identity{
		UserID:            userID,
		TenantID:          claims.TenantID,
		RoleSlug:          claims.Role,
		SuperAdmin:        claims.SuperAdmin,
		CredentialVersion: claims.CredentialVersion,
		TokenID:           claims.ID,
		ExpiresAt:         claims.ExpiresAt.Time,
	}, nil
}

// VerifyCurrent is Verify plus one read of the user: a token whose credential
// version is behind the stored one yields Invalidated, a suspended user
// UserNotActive. Request authentication goes through here, so a password
// change, RevokeAll or suspension cuts off access tokens immediately.
func (s *TokenService) VerifyCurrent(ctx context.Context, accessToken string) (*Identity, error) {
	identity, err := s.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	p, err := s.store.LookupPrincipal(ctx, identity.UserID)
	if errors.Is(err, ErrPrincipalNotFound) {
		return nil, newAuthError(KindInvalidated, fmt.Errorf("user no longer exists"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !p.Active {
		return nil, newAuthError(KindUserNotActive, fmt.Errorf("user is suspended or inactive"))
	}
	if p.CredentialVersion != identity.CredentialVersion {
		return nil, newAuthError(KindInvalidated, fmt.Errorf("credentials changed"))
	}
	return identity, nil
}

// Refresh exchanges a refresh token for a new pair. The user is re-read:
// a missing or inactive user, or a credential version newer than the
// token's, yields Invalidated.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, TokenTypeRefresh, s.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, newAuthError(KindMalformed, fmt.Errorf("invalid subject"))
	}

	p, err := s.store.LookupPrincipal(ctx, userID)
	if errors.Is(err, ErrPrincipalNotFound) {
		return nil, newAuthError(KindInvalidated, fmt.Errorf("user no longer exists"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !p.Active {
		return nil, newAuthError(KindInvalidated, fmt.Errorf("user is suspended or inactive"))
	}
	if p.CredentialVersion != claims.CredentialVersion {
		return nil, newAuthError(KindInvalidated, fmt.Errorf("credentials changed"))
	}

	return s.Issue(ctx, p)
}

// RevokeAll invalidates every outstanding token of the user
func (s *TokenService) RevokeAll(ctx context.Context, userID int64) error {
	if _, err := s.store.BumpCredentialVersion(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

func (s *TokenService) parse(raw string, want TokenType, secret []byte) (*Claims, error) {
	if raw == "" {
		return nil, newAuthError(KindMalformed, fmt.Errorf("empty token"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.cfg.Now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newAuthError(KindExpired, err)
		}
		return nil, newAuthError(KindMalformed, err)
	}

	if claims.Type != want {
		return nil, newAuthError(KindMalformed, fmt.Errorf("expected %s token", want))
	}
	return claims, nil
}
