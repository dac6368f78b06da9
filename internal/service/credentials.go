package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/repository"
)

// CredentialStore answers identity lookups from the primary store, or from the local
// fallback while the primary is unreachable.
type CredentialStore struct {
	backends *repository.Failover[repository.IdentityRepository]
}

func NewCredentialStore(backends *repository.Failover[repository.IdentityRepository]) *CredentialStore {
	return &CredentialStore{backends: backends}
}

func (s *CredentialStore) LookupByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	i, err := s.LookupWithSecret(ctx, email)
	if err != nil {
		return nil, err
	}
	i.PasswordHash = ""
	return i, nil
}

// LookupWithSecret is LookupByEmail with the password hash left in place.
func (s *CredentialStore) LookupWithSecret(ctx context.Context, email string) (*domain.Identity, error) {
	return repository.Try(ctx, s.backends, "identity.lookup_by_email",
		func(ctx context.Context, r repository.IdentityRepository) (*domain.Identity, error) {
			return r.FindByEmail(ctx, normalizeEmail(email))
		})
}

func (s *CredentialStore) LookupByID(ctx context.Context, id string) (*domain.Identity, error) {
	i, err := repository.Try(ctx, s.backends, "identity.lookup_by_id",
		func(ctx context.Context, r repository.IdentityRepository) (*domain.Identity, error) {
			return r.FindByID(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	i.PasswordHash = ""
	return i, nil
}

// Create registers a new identity with a hashed password. An email already held by
// either backend is refused with ErrUserExists.
func (s *CredentialStore) Create(ctx context.Context, name, email, password string, role domain.Role) (*domain.Identity, error) {
	name, email = strings.TrimSpace(name), normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", domain.ErrValidation)
	}
	if role == "" {
		role = domain.RoleUser
	}

	if err := s.fallbackHolds(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return repository.Try(ctx, s.backends, "identity.create",
		func(ctx context.Context, r repository.IdentityRepository) (*domain.Identity, error) {
			_, err := r.FindByEmail(ctx, email)
			switch {
			case err == nil:
				return nil, domain.ErrUserExists
			case !errors.Is(err, repository.ErrNotFound):
				return nil, err
			}
			i := &domain.Identity{Name: name, Email: email, PasswordHash: hash, Role: role}
			if err := r.Create(ctx, i); err != nil {
				return nil, err
			}
			out := *i
			out.PasswordHash = ""
			return &out, nil
		})
}

// fallbackHolds returns ErrUserExists when the fallback has email under an id other
// than self. The fallback is local, so it can always be asked. With no primary the
// fallback is the only backend and enforces uniqueness itself.
func (s *CredentialStore) fallbackHolds(ctx context.Context, email, self string) error {
	fb := s.backends.Fallback
	if fb == nil || s.backends.Primary == nil {
		return nil
	}
	i, err := fb.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case i.ID == self:
		return nil
	}
	return domain.ErrUserExists
}

// VerifySecret checks password against the identity's stored hash.
func (s *CredentialStore) VerifySecret(i *domain.Identity, password string) bool {
	if i == nil || i.PasswordHash == "" {
		return false
	}
	ok, err := auth.CheckPassword(i.PasswordHash, password)
	return err == nil && ok
}

// ProfileUpdate holds the editable profile fields. Nil leaves a field unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// UpdateProfile applies u to the identity and returns the stored result. Lookup and
// write happen on the same backend. A new email is refused if either backend holds it
// for another identity.
func (s *CredentialStore) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*domain.Identity, error) {
	var email string
	if u.Email != nil {
		email = normalizeEmail(*u.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: malformed email", domain.ErrValidation)
		}
		if err := s.fallbackHolds(ctx, email, id); err != nil {
			return nil, err
		}
	}
	var hash string
	if u.Password != nil {
		if *u.Password == "" {
			return nil, fmt.Errorf("%w: password cannot be empty", domain.ErrValidation)
		}
		h, err := auth.HashPassword(*u.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	return repository.Try(ctx, s.backends, "identity.update_profile",
		func(ctx context.Context, r repository.IdentityRepository) (*domain.Identity, error) {
			i, err := r.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if u.Name != nil {
				if strings.TrimSpace(*u.Name) == "" {
					return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
				}
				i.Name = strings.TrimSpace(*u.Name)
			}
			if email != "" {
				i.Email = email
			}
			if u.Address != nil {
				i.Address = *u.Address
			}
			if u.Phone != nil {
				i.Phone = *u.Phone
			}
			if hash != "" {
				i.PasswordHash = hash
			}
			if err := r.Update(ctx, i); err != nil {
				return nil, err
			}
			i.PasswordHash = ""
			return i, nil
		})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DemoAccounts are the fallback store's bootstrap identities.
func DemoAccounts() ([]domain.Identity, error) {
	seeds := []struct {
		id, name, email, password string
		role                      domain.Role
	}{
		{"m-admin", "Admin User", "admin@local.test", "admin123", domain.RoleAdmin},
		{"m-demo", "Demo Customer", "demo@local.test", "demo123", domain.RoleUser},
	}
	out := make([]domain.Identity, 0, len(seeds))
	for _, s := range seeds {
		hash, err := auth.HashPassword(s.password)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Identity{ID: s.id, Name: s.name, Email: s.email, PasswordHash: hash, Role: s.role})
	}
	return out, nil
}
