package services

import (
	"context"
	"errors"

	"snaplink/internal/models"
	"snaplink/internal/token"
)

// IdentityProvider turns a credential into a Principal. Both bearer tokens
// and API keys resolve to the current row in users, so a deactivated or
// deleted account loses access immediately.
type IdentityProvider struct {
	users  *UserService
	tokens *token.Manager
}

func NewIdentityProvider(users *UserService, tokens *token.Manager) *IdentityProvider {
	return &IdentityProvider{users: users, tokens: tokens}
}

func (p *IdentityProvider) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if bearer == "" {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := p.tokens.Validate(bearer)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return toPrincipal(p.users.Get(ctx, claims.UserID))
}

func (p *IdentityProvider) AuthenticateAPIKey(ctx context.Context, key string) (Principal, error) {
	if key == "" {
		return Principal{}, ErrUnauthenticated
	}
	return toPrincipal(p.users.FindByAPIKey(ctx, key))
}

// IssueToken mints a bearer token for an existing user.
func (p *IdentityProvider) IssueToken(userID uint) (string, error) {
	return p.tokens.Issue(userID)
}

func toPrincipal(user *models.User, err error) (Principal, error) {
	if errors.Is(err, ErrNotFound) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, err
	}
	return PrincipalFromUser(user), nil
}
