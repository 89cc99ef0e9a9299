package spotify

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/franz/playlog/internal/store"
)

// DBTokenStore keeps the token of one account in the oauth_tokens table
type DBTokenStore struct {
	store   *store.Store
	account string
}

// NewTokenStore creates a database-backed token store
func NewTokenStore(s *store.Store, account string) *DBTokenStore {
	return &DBTokenStore{store: s, account: account}
}

// Load returns the stored token, or nil when none was saved yet
func (d *DBTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	saved, err := d.store.GetToken(ctx, d.account)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, nil
	}

	tok := &oauth2.Token{
		RefreshToken: saved.RefreshToken,
		TokenType:    saved.TokenType,
	}
	// A token without a known expiry would be treated as valid forever
	if !saved.ExpiresAt.IsZero() {
		tok.AccessToken = saved.AccessToken
		tok.Expiry = saved.ExpiresAt
	}
	return tok, nil
}

// Save stores tok, replacing the previous token of the account
func (d *DBTokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.RefreshToken == "" {
		return fmt.Errorf("refusing to store a token without refresh token")
	}
	return d.store.SaveToken(ctx, &store.OAuthToken{
		Account:      d.account,
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	})
}
