// Package auth provides credentials for the backoffice: signed access/refresh
// token pairs, bcrypt password hashing and opaque single-use tokens.
//
// # Token Service
//
// TokenService issues HS256 JWT pairs. Access and refresh tokens use separate
// secrets and carry a typ claim, so neither can stand in for the other:
//
//	svc, err := auth.NewTokenService(auth.TokenConfig{
//		AccessSecret:  []byte(cfg.Auth.AccessSecret),
//		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
//		AccessTTL:     15 * time.Minute,
//		RefreshTTL:    7 * 24 * time.Hour,
//	}, userStore)
//
//	pair, err := svc.Issue(ctx, principal)
//	identity, err := svc.Verify(pair.AccessToken)             // no store access
//	identity, err = svc.VerifyCurrent(ctx, pair.AccessToken)  // also checks cv and active
//	pair, err = svc.Refresh(ctx, pair.RefreshToken) // re-reads the user
//
// Access claims: sub (user id), tid (tenant id, omitted for super-admins),
// role (slug), sa, cv (credential version), typ, iat, exp, jti.
//
// # Revocation
//
// Every user has a monotonically increasing credential version. RevokeAll and
// password changes bump it; Refresh and VerifyCurrent reject any token whose
// cv differs from the stored value with AuthError kind token_invalidated.
//
// # Errors
//
// All failures are *AuthError and map to 401. Kinds: token_expired,
// token_malformed, token_invalidated, user_not_active, invalid_credentials.
//
//	if errors.Is(err, auth.ErrExpired) { ... }
//
// # Opaque Tokens
//
// TokenGenerator produces <prefix><base64url(32 random bytes)> tokens. Only
// HashToken(token), a SHA-256 hex digest, is persisted.
package auth
