package spotify

import "context"

// Source pairs the authenticator with a client bound to its tokens
type Source struct {
	*Authenticator
	*Client
}

// NewSource builds an authenticated client for creds. tokens may be nil.
func NewSource(ctx context.Context, creds Credentials, tokens TokenStore, opts Options) (*Source, error) {
	auth, err := NewAuthenticator(ctx, creds, tokens)
	if err != nil {
		return nil, err
	}
	if opts.Retry != nil {
		auth.retry = opts.Retry
	}
	return &Source{Authenticator: auth, Client: NewClient(auth.HTTPClient(ctx), opts)}, nil
}
