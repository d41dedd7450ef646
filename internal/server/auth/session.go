package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/models"
)

// UserLookup finds identities for the resolver. Implementations report a
// missing user as common.ErrorNotFound.
type UserLookup interface {
	FindBySubject(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenVerifier is satisfied by *Codec.
type TokenVerifier interface {
	Verify(token string) (Claims, error)
}

// Resolver turns an Authorization header value into a user.
type Resolver struct {
	tokens TokenVerifier
	users  UserLookup
}

func NewResolver(tokens TokenVerifier, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// BearerToken extracts the token from an Authorization header value.
// present is false for a blank header. A present header that is not
// "Bearer <token>" (scheme matched case-insensitively) is
// common.ErrMalformedCredential.
func BearerToken(header string) (token string, present bool, err error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, nil
	}

	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", true, common.ErrMalformedCredential
	}

	token = strings.TrimSpace(rest)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", true, common.ErrMalformedCredential
	}
	return token, true, nil
}

// ResolveRequired authenticates header or rejects. A blank header is
// common.ErrMissingAuthorization.
func (r *Resolver) ResolveRequired(ctx context.Context, header string) (*models.User, error) {
	token, present, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, common.ErrMissingAuthorization
	}
	return r.resolve(ctx, token)
}

// ResolveOptional is ResolveRequired except that a blank header yields
// (nil, nil). A header that is present but invalid is still an error.
func (r *Resolver) ResolveOptional(ctx context.Context, header string) (*models.User, error) {
	token, present, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return r.resolve(ctx, token)
}

func (r *Resolver) resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	sub, ok := claims.Subject()
	if !ok {
		return nil, common.ErrInvalidOrExpiredToken
	}

	user, err := r.users.FindBySubject(ctx, sub)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	return user, nil
}
