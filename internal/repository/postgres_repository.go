package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository stores orders, their items and payments, shopper
// profiles, and the outbox.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (id, order_number, shopper_id, shipping_name, shipping_phone, shipping_address,
	              shipping_city, shipping_postal_code, notes, subtotal, shipping_cost, total_amount, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		o.ID,
		o.OrderNumber,
		o.ShopperID,
		o.ShippingName,
		o.ShippingPhone,
		o.ShippingAddress,
		o.ShippingCity,
		o.ShippingPostalCode,
		o.Notes,
		o.Subtotal,
		o.ShippingCost,
		o.TotalAmount,
		o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CreateOrderItems inserts all items in one transaction.
func (r *PostgresRepository) CreateOrderItems(ctx context.Context, items []domain.OrderItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO order_items
	    (id, order_id, variant_id, product_name, variant_size, variant_color, quantity, unit_price, total_price)
	    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("prepare insert order item: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			it.ID,
			it.OrderID,
			it.VariantID,
			it.ProductName,
			it.VariantSize,
			it.VariantColor,
			it.Quantity,
			it.UnitPrice,
			it.TotalPrice,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order items: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, amount, payment_method, status, idempotency_key)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.OrderID,
		p.Amount,
		p.PaymentMethod,
		p.Status,
		p.IdempotencyKey,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_idempotency_key_key") {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, externalID string) error {
	query := `UPDATE payments
	          SET status = $2, external_id = COALESCE(NULLIF($3, ''), external_id), updated_at = NOW()
	          WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, paymentID, status, externalID)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return expectOneRow(res, ErrPaymentNotFound)
}

func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectOneRow(res, ErrOrderNotFound)
}

func (r *PostgresRepository) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, shopper_id, shipping_name, shipping_phone, shipping_address,
	shipping_city, shipping_postal_code, notes, subtotal, shipping_cost, total_amount, status, created_at, updated_at`

const qualifiedOrderColumns = `o.id, o.order_number, o.shopper_id, o.shipping_name, o.shipping_phone, o.shipping_address,
	o.shipping_city, o.shipping_postal_code, o.notes, o.subtotal, o.shipping_cost, o.total_amount, o.status,
	o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.ShopperID,
		&o.ShippingName,
		&o.ShippingPhone,
		&o.ShippingAddress,
		&o.ShippingCity,
		&o.ShippingPostalCode,
		&o.Notes,
		&o.Subtotal,
		&o.ShippingCost,
		&o.TotalAmount,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// GetOrder returns the order with its items and latest payment. Orders of
// other shoppers are reported as not found.
func (r *PostgresRepository) GetOrder(ctx context.Context, shopperID, orderID string) (*domain.OrderDetails, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND shopper_id = $2`, orderID, shopperID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.listOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	payment, err := r.latestPayment(ctx, orderID)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	return &domain.OrderDetails{Order: o, Items: items, Payment: payment}, nil
}

func (r *PostgresRepository) listOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, order_id, variant_id, product_name, variant_size, variant_color,
	        quantity, unit_price, total_price
	    FROM order_items WHERE order_id = $1 ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.VariantID,
			&it.ProductName,
			&it.VariantSize,
			&it.VariantColor,
			&it.Quantity,
			&it.UnitPrice,
			&it.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) latestPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	var externalID sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT id, order_id, amount, payment_method, status, idempotency_key,
	        external_id, created_at, updated_at
	    FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.PaymentMethod,
		&p.Status,
		&p.IdempotencyKey,
		&externalID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	p.ExternalID = externalID.String
	return &p, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, shopperID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE shopper_id = $1 ORDER BY created_at DESC`, shopperID)
	if err != nil {
		return nil, fmt.Errorf("query orders by shopper id: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, shopperID string) (*domain.ShippingDetails, error) {
	var s domain.ShippingDetails
	err := r.db.QueryRowContext(ctx,
		`SELECT full_name, phone, address, city, postal_code FROM profiles WHERE shopper_id = $1`, shopperID).
		Scan(&s.FullName, &s.Phone, &s.Address, &s.City, &s.PostalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &s, nil
}

// UpsertProfile stores the default shipping details of a shopper.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, shopperID string, s domain.ShippingDetails) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (shopper_id, full_name, phone, address, city, postal_code)
	    VALUES ($1, $2, $3, $4, $5, $6)
	    ON CONFLICT (shopper_id) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone,
	        address = EXCLUDED.address, city = EXCLUDED.city, postal_code = EXCLUDED.postal_code, updated_at = NOW()`,
		shopperID, s.FullName, s.Phone, s.Address, s.City, s.PostalCode)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) EnqueueEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, aggregate_id, event_type, payload, created_at
	    FROM outbox WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrdersMissingEvents(ctx context.Context, olderThan time.Duration, limit int) ([]domain.OrderDetails, error) {
	query := `SELECT ` + qualifiedOrderColumns + `, COALESCE(p.payment_method, '')
	    FROM orders o
	    LEFT JOIN LATERAL (
	        SELECT payment_method FROM payments WHERE order_id = o.id ORDER BY created_at DESC LIMIT 1
	    ) p ON TRUE
	    WHERE o.created_at < $1
	      AND NOT EXISTS (SELECT 1 FROM outbox e WHERE e.aggregate_id = o.id::text)
	    ORDER BY o.created_at
	    LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("query orders missing events: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderDetails
	for rows.Next() {
		var o domain.Order
		var method domain.PaymentMethod
		if err := rows.Scan(
			&o.ID,
			&o.OrderNumber,
			&o.ShopperID,
			&o.ShippingName,
			&o.ShippingPhone,
			&o.ShippingAddress,
			&o.ShippingCity,
			&o.ShippingPostalCode,
			&o.Notes,
			&o.Subtotal,
			&o.ShippingCost,
			&o.TotalAmount,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
			&method,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		d := domain.OrderDetails{Order: o}
		if method != "" {
			d.Payment = &domain.Payment{OrderID: o.ID, PaymentMethod: method}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for i := range out {
		items, err := r.listOrderItems(ctx, out[i].Order.ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
