package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/CodAressss/orders-batch-service/internal/ingest"
)

// ErrNoActiveTransaction is returned when a bulk insert runs outside
// Connection.WithTx. Bulk inserts must share a transaction with the batch
// load finalization, so a bare pool call is a programming error.
var ErrNoActiveTransaction = errors.New("bulk insert requires an active transaction")

// ErrOrderNotFound is returned when an order lookup by number finds nothing.
var ErrOrderNotFound = errors.New("order not found")

// defaultListLimit caps unpaginated order listings.
const defaultListLimit = 100

type (
	// OrderStore persists and queries orders.
	OrderStore struct {
		conn *Connection
	}

	// Order is the persisted read model returned by the query methods.
	Order struct {
		ID                    uuid.UUID
		OrderNumber           string
		ClientID              string
		DeliveryDate          time.Time
		Status                string
		ZoneID                string
		RequiresRefrigeration bool
		CreatedAt             time.Time
	}

	// OrderFilter narrows ListOrders. Zero-valued fields are not applied.
	OrderFilter struct {
		ClientID     string
		Status       string
		ZoneID       string
		DeliveryDate time.Time
		Limit        int
		Offset       int
	}
)

// Compile-time interface compliance check.
var _ ingest.OrderWriter = (*OrderStore)(nil)

// NewOrderStore creates an order store backed by the given connection.
func NewOrderStore(conn *Connection) *OrderStore {
	return &OrderStore{conn: conn}
}

// CreateOrders bulk-inserts validated orders using the COPY protocol, which
// is a single round trip regardless of batch size. It must run inside
// Connection.WithTx: the orders commit together with the batch load
// finalization or not at all. A unique violation on order_number (a
// concurrent batch inserted the same number after our snapshot) fails the
// whole call.
func (s *OrderStore) CreateOrders(ctx context.Context, orders []ingest.ValidatedOrder) error {
	if len(orders) == 0 {
		return nil
	}

	tx, ok := txFromContext(ctx)
	if !ok {
		return ErrNoActiveTransaction
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"orders",
		"id", "order_number", "client_id", "delivery_date",
		"status", "zone_id", "requires_refrigeration",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare bulk insert: %w", err)
	}

	for _, order := range orders {
		if _, err := stmt.ExecContext(ctx,
			uuid.New(),
			order.OrderNumber,
			order.ClientID,
			order.DeliveryDate,
			string(order.Status),
			order.ZoneID,
			order.RequiresRefrigeration,
		); err != nil {
			_ = stmt.Close()

			return fmt.Errorf("failed to buffer order %s: %w", order.OrderNumber, err)
		}
	}

	// The final empty Exec flushes the COPY buffer; constraint violations
	// surface here.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()

		return fmt.Errorf("failed to flush bulk insert: %w", err)
	}

	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close bulk insert statement: %w", err)
	}

	return nil
}

const orderColumns = `
	id, order_number, client_id, delivery_date,
	status, zone_id, requires_refrigeration, created_at
`

// FindByNumber returns the order with the given order number, or
// ErrOrderNotFound.
func (s *OrderStore) FindByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE order_number = $1
	`

	var order Order

	err := s.conn.QueryRowContext(ctx, query, orderNumber).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.ClientID,
		&order.DeliveryDate,
		&order.Status,
		&order.ZoneID,
		&order.RequiresRefrigeration,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return &order, nil
}

// ListOrders returns orders matching the filter, newest first.
func (s *OrderStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	var (
		conditions []string
		args       []any
	)

	addCondition := func(column, value string) {
		if value == "" {
			return
		}

		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}

	addCondition("client_id", filter.ClientID)
	addCondition("status", filter.Status)
	addCondition("zone_id", filter.ZoneID)

	// Cast keeps the comparison date-to-date regardless of session timezone.
	if !filter.DeliveryDate.IsZero() {
		args = append(args, filter.DeliveryDate)
		conditions = append(conditions, "delivery_date = $"+strconv.Itoa(len(args))+"::date")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	orders := []*Order{}

	for rows.Next() {
		var order Order

		if err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.ClientID,
			&order.DeliveryDate,
			&order.Status,
			&order.ZoneID,
			&order.RequiresRefrigeration,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
