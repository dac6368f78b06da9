package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ProductStore is the primary catalog.
type ProductStore struct{ DB *pgxpool.Pool }

func NewProductStore(db *pgxpool.Pool) *ProductStore { return &ProductStore{DB: db} }

var _ repository.ProductRepository = (*ProductStore)(nil)

const productColumns = `id, name, description, price, image, category, brand, stock, featured, rating, num_reviews, created_at`

// name sorts bytewise so both backends agree on ordering.
var sortColumns = map[repository.SortField]string{
	repository.SortCreatedAt:  "created_at",
	repository.SortPrice:      "price",
	repository.SortName:       `name COLLATE "C"`,
	repository.SortRating:     "rating",
	repository.SortStock:      "stock",
	repository.SortNumReviews: "num_reviews",
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.Category, &p.Brand,
		&p.Stock, &p.Featured, &p.Rating, &p.NumReviews, &p.CreatedAt)
	return p, err
}

func collectProducts(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()
	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func whereClause(f repository.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Keyword != "" {
		add("(name ILIKE $%[1]d OR description ILIKE $%[1]d)", "%"+likeEscaper.Replace(f.Keyword)+"%")
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *ProductStore) Query(ctx context.Context, f repository.ProductFilter, srt repository.Sort, p repository.Pagination) ([]domain.Product, error) {
	where, args := whereClause(f)
	col, ok := sortColumns[srt.Field]
	if !ok {
		col = sortColumns[repository.SortCreatedAt]
	}
	dir := "ASC"
	if srt.Desc {
		dir = "DESC"
	}
	p = p.Normalize()
	args = append(args, p.Limit, p.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s %s, seq ASC LIMIT $%d OFFSET $%d`,
		productColumns, where, col, dir, len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("query products", err)
	}
	out, err := collectProducts(rows)
	return out, classify("query products", err)
}

func (s *ProductStore) Count(ctx context.Context, f repository.ProductFilter) (int, error) {
	where, args := whereClause(f)
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&n)
	return n, classify("count products", err)
}

func (s *ProductStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get product", err)
	}
	return &p, nil
}

func (s *ProductStore) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Brand,
		p.Stock, p.Featured, p.Rating, p.NumReviews, p.CreatedAt)
	return classify("create product", err)
}

func (s *ProductStore) Update(ctx context.Context, p *domain.Product) error {
	err := s.DB.QueryRow(ctx, `
		UPDATE products SET name = $2, description = $3, price = $4, image = $5, category = $6,
			brand = $7, stock = $8, featured = $9, rating = $10, num_reviews = $11
		WHERE id = $1
		RETURNING created_at`,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Category, p.Brand,
		p.Stock, p.Featured, p.Rating, p.NumReviews).Scan(&p.CreatedAt)
	return classify("update product", err)
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return classify("delete product", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListFeatured returns featured products, newest first.
func (s *ProductStore) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE featured ORDER BY created_at DESC, seq ASC LIMIT $1`, limit)
	if err != nil {
		return nil, classify("list featured", err)
	}
	out, err := collectProducts(rows)
	return out, classify("list featured", err)
}

// ReserveStock decrements stock row by row inside one transaction; any shortfall rolls back.
func (s *ProductStore) ReserveStock(ctx context.Context, lines []domain.StockLine) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify("reserve stock", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range lines {
		ct, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, l.ProductID, l.Quantity)
		if err != nil {
			return classify("reserve stock", err)
		}
		if ct.RowsAffected() == 1 {
			continue
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, l.ProductID).Scan(&exists); err != nil {
			return classify("reserve stock", err)
		}
		if !exists {
			return fmt.Errorf("product %s: %w", l.ProductID, repository.ErrNotFound)
		}
		return fmt.Errorf("product %s: %w", l.ProductID, domain.ErrInsufficientStock)
	}
	return classify("reserve stock", tx.Commit(ctx))
}

func (s *ProductStore) ReleaseStock(ctx context.Context, lines []domain.StockLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`UPDATE products SET stock = stock + $2 WHERE id = $1`, l.ProductID, l.Quantity)
	}
	return classify("release stock", s.DB.SendBatch(ctx, batch).Close())
}
