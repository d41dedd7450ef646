// Package services contains the server-side business logic behind the HTTP
// API and the admin tooling.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/auth"
	"github.com/paperclip/paperclip/internal/server/models"
	"github.com/paperclip/paperclip/internal/server/repositories/repomanager"
)

// TokenIssuer is satisfied by *auth.Codec.
type TokenIssuer interface {
	Issue(claims auth.Claims, ttl time.Duration) (string, error)
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Token     string
	ExpiresIn time.Duration
	User      *models.User
}

type registration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Name, validation.RuneLength(0, 100)),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(8, 128)),
	)
}

// UserService handles account registration, password login and user lookup
// for session resolution.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	tokens      TokenIssuer
	tokenTTL    time.Duration

	// dummyCredential is verified when an email is unknown so that login
	// takes the same time either way.
	dummyCredential string
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, tokens TokenIssuer, tokenTTL time.Duration) (*UserService, error) {
	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("dummy credential: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("dummy credential: %w", err)
	}

	return &UserService{
		db:              db,
		repomanager:     m,
		hasher:          hasher,
		tokens:          tokens,
		tokenTTL:        tokenTTL,
		dummyCredential: dummy,
	}, nil
}

// Register creates an account and signs the caller in. The email is trimmed
// and lower-cased before validation. Validation failures wrap
// common.ErrorValidation; a taken email is common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	req := registration{Email: email, Name: name, Password: password}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	credential, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{Email: email, Name: name, Credential: credential})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return s.issue(user)
}

// Login checks a password. An unknown email and a wrong password are both
// common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyCredential)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	if !s.hasher.Verify(password, user.Credential) {
		return nil, common.ErrorUnauthorized
	}

	return s.issue(user)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(auth.Claims{
		auth.ClaimSubject: user.ID,
		auth.ClaimEmail:   user.Email,
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresIn: s.tokenTTL, User: user}, nil
}

// FindBySubject returns the user a token's "sub" claim names. A subject that
// is not a UUID cannot name a user and is common.ErrorNotFound.
func (s *UserService) FindBySubject(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
}
