package auth

import (
	"strings"
	"testing"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator(InvitationTokenPrefix)

	token, tokenHash, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, InvitationTokenPrefix) {
		t.Errorf("Token should start with %q, got %q", InvitationTokenPrefix, token)
	}

	// SHA256 = 64 hex chars
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}

	if tokenHash != HashToken(token) {
		t.Error("TokenHash should be the hash of the returned token")
	}

	if err := tg.ValidateTokenFormat(token); err != nil {
		t.Errorf("Generated token failed validation: %v", err)
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator(InvitationTokenPrefix)

	tokens := make(map[string]bool)
	hashes := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, tokenHash, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}

		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		if hashes[tokenHash] {
			t.Errorf("Duplicate token hash generated: %s", tokenHash)
		}

		tokens[token] = true
		hashes[tokenHash] = true
	}
}

func TestHashToken(t *testing.T) {
	token := "inv_test123456789"
	hash1 := HashToken(token)
	hash2 := HashToken(token)

	if hash1 != hash2 {
		t.Error("Same token should produce same hash")
	}

	if len(hash1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(hash1))
	}

	if hash1 == HashToken("inv_different") {
		t.Error("Different tokens should produce different hashes")
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator(InvitationTokenPrefix)
	valid, _, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   valid,
			wantErr: false,
		},
		{
			name:    "missing prefix",
			token:   strings.TrimPrefix(valid, InvitationTokenPrefix),
			wantErr: true,
		},
		{
			name:    "wrong prefix",
			token:   "tok_" + strings.TrimPrefix(valid, InvitationTokenPrefix),
			wantErr: true,
		},
		{
			name:    "empty token part",
			token:   "inv_",
			wantErr: true,
		},
		{
			name:    "truncated",
			token:   valid[:len(valid)-4],
			wantErr: true,
		},
		{
			name:    "invalid base64",
			token:   "inv_!!!invalid!!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
