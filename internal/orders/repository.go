package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

const orderColumns = `o.id, o.user_id, o.total_amount, o.status, o.shipping_address, o.payment_method, o.created_at, o.updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Begin opens the transaction that carries an order header and its items.
func (r *OrderRepository) Begin(ctx context.Context) (checkout.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	return &orderTx{tx: tx}, nil
}

type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, order.TotalAmount, order.Status, string(order.ShippingAddress),
		order.PaymentMethod, order.CreatedAt, order.UpdatedAt)
	return err
}

// InsertOrderItems streams the items through COPY.
func (t *orderTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, pq.CopyIn("order_items", "id", "order_id", "product_id", "quantity", "price_at_time"))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceAtTime); err != nil {
			return err
		}
	}

	_, err = stmt.ExecContext(ctx)
	return err
}

func (t *orderTx) Commit() error {
	return t.tx.Commit()
}

func (t *orderTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func scanOrder(row interface{ Scan(...any) error }, order *domain.Order, extra ...any) error {
	var addr []byte
	dest := append([]any{
		&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &addr,
		&order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	order.ShippingAddress = addr
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	order := &domain.Order{}
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	if err := scanOrder(row, order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.attachItems(ctx, orders)
}

// ListAll returns every order with its owner summary, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`, u.id, u.full_name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		user := &domain.UserSummary{}
		if err := scanOrder(rows, &order, &user.ID, &user.FullName, &user.Email); err != nil {
			return nil, err
		}
		order.User = user
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.attachItems(ctx, orders)
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) ([]domain.Order, error) {
	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return orders, nil
}

// loadItems fetches the items of every order in one round trip, joined with
// the product they reference.
func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_time,
		       p.name, p.description, p.price, p.category, p.stock, p.image_url, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.order_id, oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item        domain.OrderItem
			p           domain.Product
			description sql.NullString
			category    sql.NullString
			imageURL    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtTime,
			&p.Name, &description, &p.Price, &category, &p.Stock, &imageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.ID = item.ProductID
		p.Description = description.String
		p.Category = category.String
		p.ImageURL = imageURL.String
		item.Product = &p
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// DeleteIfEmpty removes an order header that has no items. It reports whether
// a row was deleted; deleting an already removed or populated order is a no-op.
func (r *OrderRepository) DeleteIfEmpty(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM orders o
		WHERE o.id = $1
		  AND NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id)
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
