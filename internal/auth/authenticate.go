package auth

import (
	"context"
	"errors"
	"strings"
)

// placeholderTokens are literal values some clients send instead of omitting the credential.
var placeholderTokens = map[string]struct{}{
	"undefined": {},
	"null":      {},
	"bearer":    {},
}

// Authenticator resolves access tokens into principals. It never mutates the
// store and never looks at the stored refresh token.
type Authenticator struct {
	tokens *TokenService
	store  Store
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *TokenService, store Store) (*Authenticator, error) {
	if tokens == nil || store == nil {
		return nil, errors.New("auth: token service and store are required")
	}
	return &Authenticator{tokens: tokens, store: store}, nil
}

// Authenticate verifies token and hydrates the principal it names.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if isPlaceholderToken(token) {
		return Principal{}, Unauthorized(MsgTokenNotProvided)
	}
	claims, err := a.tokens.Verify(token, AccessToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Principal{}, Unauthorized(MsgTokenExpired)
		}
		return Principal{}, Forbidden(MsgInvalidToken)
	}
	return a.LoadPrincipal(ctx, claims.Subject)
}

// LoadPrincipal hydrates the bounded principal projection for accountID and
// rejects missing or deactivated accounts.
func (a *Authenticator) LoadPrincipal(ctx context.Context, accountID string) (Principal, error) {
	acc, err := a.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, Unauthorized("account not found")
		}
		return Principal{}, Internal("lookup account", err)
	}
	if acc.IsDeleted {
		return Principal{}, Unauthorized("account not found")
	}
	if !acc.IsActive {
		return Principal{}, Forbidden(MsgAccountDeactivated)
	}
	locations, err := a.store.ResolveLocations(ctx, acc.LocationIDs)
	if err != nil {
		return Principal{}, Internal("resolve locations", err)
	}
	return NewPrincipal(acc, locations), nil
}

func isPlaceholderToken(token string) bool {
	if token == "" {
		return true
	}
	_, ok := placeholderTokens[strings.ToLower(token)]
	return ok
}
