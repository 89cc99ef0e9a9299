package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OAuthToken is the persisted credential state of one source account
type OAuthToken struct {
	Account      string
	RefreshToken string
	AccessToken  string
	TokenType    string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// GetToken returns the stored token for account, or nil when none is stored
func (s *Store) GetToken(ctx context.Context, account string) (*OAuthToken, error) {
	var t OAuthToken
	var access, tokenType sql.NullString
	var expires, updated any

	err := s.queryRow(ctx, `
		SELECT account, refresh_token, access_token, token_type, expires_at, updated_at
		FROM oauth_tokens
		WHERE account = ?
	`, account).Scan(&t.Account, &t.RefreshToken, &access, &tokenType, &expires, &updated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	t.AccessToken = access.String
	t.TokenType = tokenType.String
	if t.ExpiresAt, _, err = parseTime(expires); err != nil {
		return nil, err
	}
	if t.UpdatedAt, _, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveToken inserts or replaces the token for t.Account
func (s *Store) SaveToken(ctx context.Context, t *OAuthToken) error {
	if t.Account == "" || t.RefreshToken == "" {
		return fmt.Errorf("token requires an account and a refresh token")
	}

	var expires any
	if !t.ExpiresAt.IsZero() {
		expires = s.dialect.Timestamp(t.ExpiresAt)
	}

	_, err := s.exec(ctx, `
		INSERT INTO oauth_tokens (account, refresh_token, access_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (account) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, t.Account, t.RefreshToken, nullString(t.AccessToken), nullString(t.TokenType), expires,
		s.dialect.Timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
