package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/franz/playlog/internal/util"
)

// TokenURL is the accounts service token endpoint
const TokenURL = "https://accounts.spotify.com/api/token"

// Credentials are the app credentials plus the user's refresh token
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// TokenStore persists the token state between runs, so a refresh token the
// accounts service rotates is not lost
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// Authenticator exchanges the refresh token for access tokens. It is the only
// place credentials are handled; the Client never sees them.
type Authenticator struct {
	src   oauth2.TokenSource
	retry *util.RetryConfig
}

// NewAuthenticator builds a refreshing token source. ctx is used for every
// token request and should live as long as the Authenticator; put an
// *http.Client under oauth2.HTTPClient in it to override the transport.
// store may be nil.
func NewAuthenticator(ctx context.Context, creds Credentials, store TokenStore) (*Authenticator, error) {
	if creds.TokenURL == "" {
		creds.TokenURL = TokenURL
	}

	seed := &oauth2.Token{RefreshToken: creds.RefreshToken}
	if store != nil {
		saved, err := store.Load(ctx)
		if err != nil {
			util.WarnLog("Spotify: could not read stored token, using configured refresh token: %v", err)
		} else if saved != nil && saved.RefreshToken != "" {
			util.DebugLog("Spotify: using stored refresh token")
			seed = saved
		}
	}
	if seed.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token configured", util.ErrAuth)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  creds.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	src := &persistingSource{
		base:  conf.TokenSource(ctx, seed),
		store: store,
		last:  seed,
	}

	return &Authenticator{
		src:   oauth2.ReuseTokenSource(nil, src),
		retry: util.DefaultRetryConfig(),
	}, nil
}

// Authenticate makes sure a valid access token is available. Any failure is
// returned wrapped in util.ErrAuth.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	_, err := util.RetryWithBackoff(ctx, a.retry, func() (*oauth2.Token, error) {
		tok, err := a.src.Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 500 {
				return nil, util.Retryable(err, 0)
			}
			return nil, err
		}
		if !tok.Valid() {
			return nil, errors.New("token endpoint returned an invalid token")
		}
		return tok, nil
	}, "refresh access token")
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrAuth, err)
	}
	return nil
}

// TokenSource exposes the refreshing token source
func (a *Authenticator) TokenSource() oauth2.TokenSource {
	return a.src
}

// HTTPClient returns a client that authorizes every request
func (a *Authenticator) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, a.src)
}

// persistingSource saves every newly issued token
type persistingSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last *oauth2.Token
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last != nil && tok.AccessToken == p.last.AccessToken && tok.RefreshToken == p.last.RefreshToken {
		return tok, nil
	}
	if p.last != nil && tok.RefreshToken != p.last.RefreshToken {
		util.InfoLog("Spotify: refresh token was rotated")
	}
	p.last = tok

	if p.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.store.Save(ctx, tok); err != nil {
			util.WarnLog("Spotify: failed to persist token: %v", err)
		}
	}
	return tok, nil
}
