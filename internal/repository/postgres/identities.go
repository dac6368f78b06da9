package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// IdentityStore is the primary credential backend.
type IdentityStore struct{ DB *pgxpool.Pool }

func NewIdentityStore(db *pgxpool.Pool) *IdentityStore { return &IdentityStore{DB: db} }

var _ repository.IdentityRepository = (*IdentityStore)(nil)

const identityColumns = `id, name, email, password_hash, role, address, phone, created_at`

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var i domain.Identity
	var role string
	if err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash, &role, &i.Address, &i.Phone, &i.CreatedAt); err != nil {
		return nil, err
	}
	i.Role = domain.Role(role)
	return &i, nil
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	i, err := scanIdentity(s.DB.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, classify("find identity by email", err)
	}
	return i, nil
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	i, err := scanIdentity(s.DB.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify("find identity", err)
	}
	return i, nil
}

func (s *IdentityStore) Create(ctx context.Context, i *domain.Identity) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	if i.Role == "" {
		i.Role = domain.RoleUser
	}
	_, err := s.DB.Exec(ctx, `INSERT INTO users (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		i.ID, i.Name, i.Email, i.PasswordHash, string(i.Role), i.Address, i.Phone, i.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return classify("create identity", err)
}

func (s *IdentityStore) Update(ctx context.Context, i *domain.Identity) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, password_hash = $4, role = $5, address = $6, phone = $7
		WHERE id = $1`,
		i.ID, i.Name, i.Email, i.PasswordHash, string(i.Role), i.Address, i.Phone)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return classify("update identity", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
