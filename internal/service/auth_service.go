package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Session is what a successful register or login hands back to the client.
type Session struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
}

// AuthService issues sessions on top of the CredentialStore.
type AuthService struct {
	creds  *CredentialStore
	tokens *auth.Tokens
}

func NewAuthService(creds *CredentialStore, tokens *auth.Tokens) *AuthService {
	return &AuthService{creds: creds, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	i, err := s.creds.Create(ctx, name, email, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.session(i)
}

// Login never says which part of the credentials was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	i, err := s.creds.LookupWithSecret(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if !s.creds.VerifySecret(i, password) {
		return nil, domain.ErrInvalidCredential
	}
	i.PasswordHash = ""
	return s.session(i)
}

// Authenticate resolves a bearer token to its identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	i, err := s.creds.LookupByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	return i, err
}

func (s *AuthService) Me(ctx context.Context, id string) (*domain.Identity, error) {
	return s.creds.LookupByID(ctx, id)
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*domain.Identity, error) {
	return s.creds.UpdateProfile(ctx, id, u)
}

func (s *AuthService) session(i *domain.Identity) (*Session, error) {
	token, err := s.tokens.Issue(i.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: i}, nil
}
