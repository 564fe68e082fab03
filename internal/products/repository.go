package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrProductInUse = errors.New("product is referenced by existing orders")

const productColumns = `id, name, description, price, category, stock, image_url, created_at, updated_at`

// Columns a listing may be sorted by.
var sortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"stock":      "stock",
	"category":   "category",
	"created_at": "created_at",
}

type Filter struct {
	Category   string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
	Sort       string
	Descending bool
}

// Patch holds the fields of an update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
	ImageURL    *string
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p           domain.Product
		description sql.NullString
		category    sql.NullString
		imageURL    sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &description, &p.Price, &category, &p.Stock, &imageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Category = category.String
	p.ImageURL = imageURL.String
	return &p, nil
}

// GetProduct returns nil, nil when no product has the given id.
func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// DecrementStock only applies when enough stock remains at write time.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if _, err := uuid.Parse(productID); err != nil {
		return checkout.ErrProductNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return checkout.ErrProductNotFound
		}
		return checkout.ErrInsufficientStock
	}

	return nil
}

func (r *ProductRepository) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	var (
		query strings.Builder
		conds []string
		args  []any
	)
	query.WriteString(`SELECT ` + productColumns + ` FROM products`)

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conds = append(conds, fmt.Sprintf("price >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if column, ok := sortColumns[f.Sort]; ok {
		direction := "ASC"
		if f.Descending {
			direction = "DESC"
		}
		query.WriteString(" ORDER BY " + column + " " + direction + ", id")
	} else {
		query.WriteString(" ORDER BY created_at, id")
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()

	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, price, category, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.Category, p.Stock, p.ImageURL).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Update returns nil, nil when no product has the given id.
func (r *ProductRepository) Update(ctx context.Context, id string, patch Patch) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			price = COALESCE($4, price),
			category = COALESCE($5, category),
			stock = COALESCE($6, stock),
			image_url = COALESCE($7, image_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.Description, patch.Price, patch.Category, patch.Stock, patch.ImageURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// Delete reports whether a product was removed.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return false, ErrProductInUse
		}
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
