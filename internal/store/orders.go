package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ronycse16b/soulcraft-orders/internal/database"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
	"github.com/ronycse16b/soulcraft-orders/internal/policy"
)

type CreateOrderRequest struct {
	CustomerName string
	Phone        string
	Address      string
	ShippingCost decimal.Decimal
	Items        []OrderItemRequest
}

type OrderItemRequest struct {
	ProductRef string
	SKU        string
	UnitPrice  decimal.Decimal
	Quantity   int
}

// StatusChange carries everything the store needs to append one entry to an
// order's audit log. ChangedBy is nil only for system-generated entries.
type StatusChange struct {
	Status    models.OrderStatus
	Note      string
	ChangedBy *int64
}

// ListOptions filters and paginates the admin order board.
type ListOptions struct {
	Status models.OrderStatus
	Search string
	Page   int
	Limit  int
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d", time.Now().UnixNano())
}

func (r CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", database.ErrInvalidOrder)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", database.ErrInvalidOrder)
	}
	if r.ShippingCost.IsNegative() {
		return fmt.Errorf("%w: shipping cost must not be negative", database.ErrInvalidOrder)
	}
	for i, item := range r.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", database.ErrInvalidOrder, i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price must not be negative", database.ErrInvalidOrder, i)
		}
	}
	return nil
}

// CreateOrder records a new order at its initial pending status, together
// with its line items and the first status-history entry, in one
// transaction. The total is computed here and never again.
func (s *Store) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	total := req.ShippingCost
	for _, item := range req.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	var order *models.Order
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var orderID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, status, customer_name, phone, address,
			                     shipping_cost, total_amount, is_read, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW(), NOW(), 1)
			 RETURNING id`,
			generateOrderNumber(), models.StatusPending, req.CustomerName, req.Phone,
			req.Address, req.ShippingCost, total).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range req.Items {
			subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_ref, sku, unit_price, quantity, subtotal)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				orderID, item.ProductRef, item.SKU, item.UnitPrice, item.Quantity, subtotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO status_history (order_id, status, note, changed_at, changed_by)
			 VALUES ($1, $2, NULL, clock_timestamp(), NULL)`,
			orderID, models.StatusPending)
		if err != nil {
			return fmt.Errorf("record initial status: %w", err)
		}

		order, err = fetchOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder loads an order with its line items and full status history.
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return fetchOrder(ctx, s.db, id)
}

// ApplyStatus is the single mutation path for an order's lifecycle position.
// In one transaction it locks the row, rejects a stale version with
// ErrStatusConflict, re-validates the transition against the policy table
// (the store refuses to write a status that was not pre-validated), then
// updates the status and appends the history entry. changed_at is taken
// after the row lock so history timestamps stay monotonic per order.
func (s *Store) ApplyStatus(ctx context.Context, id int64, expectedVersion int, change StatusChange) (*models.Order, error) {
	var order *models.Order
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current models.OrderStatus
		var version int
		err := tx.QueryRowContext(ctx,
			`SELECT status, version FROM orders WHERE id = $1 FOR UPDATE`,
			id).Scan(&current, &version)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order %d: %w", id, err)
		}

		if version != expectedVersion {
			return fmt.Errorf("%w: version %d, expected %d", database.ErrStatusConflict, version, expectedVersion)
		}

		if err := policy.Validate(current, change.Status, change.Note); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
			id, change.Status)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		var note *string
		if trimmed := strings.TrimSpace(change.Note); trimmed != "" {
			note = &trimmed
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO status_history (order_id, status, note, changed_at, changed_by)
			 VALUES ($1, $2, $3, clock_timestamp(), $4)`,
			id, change.Status, note, change.ChangedBy)
		if err != nil {
			return fmt.Errorf("append status history: %w", err)
		}

		order, err = fetchOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// MarkRead flips the operator-acknowledgement flag. Orthogonal to status;
// no history entry and no version bump.
func (s *Store) MarkRead(ctx context.Context, id int64, read bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET is_read = $2, updated_at = NOW() WHERE id = $1`,
		id, read)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateShipping edits the ship-to block outside the lifecycle engine.
func (s *Store) UpdateShipping(ctx context.Context, id int64, info models.ShippingInfo) error {
	if strings.TrimSpace(info.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", database.ErrInvalidOrder)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET customer_name = $2, phone = $3, address = $4, updated_at = NOW() WHERE id = $1`,
		id, info.CustomerName, info.Phone, info.Address)
	if err != nil {
		return fmt.Errorf("update shipping: %w", err)
	}
	return requireRowAffected(result)
}

// ListOrders returns one page of the admin order board, optionally filtered
// by status and by a search over order number and customer name.
func (s *Store) ListOrders(ctx context.Context, opts ListOptions) (*OffsetPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 || opts.Limit > 100 {
		opts.Limit = 20
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(order_number ILIKE $%d OR customer_name ILIKE $%d)", len(args), len(args)))
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+filter, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (opts.Page - 1) * opts.Limit
	args = append(args, opts.Limit, offset)
	query := fmt.Sprintf(`
		SELECT id, order_number, status, customer_name, phone, address,
		       shipping_cost, total_amount, is_read, created_at, updated_at, version
		FROM orders%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, filter, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, opts.Page, opts.Limit), nil
}

// Summarize recomputes the per-status counts straight off the orders table.
// Deliberately never an incremented counter: the scan cannot drift from the
// authoritative per-order status.
func (s *Store) Summarize(ctx context.Context) (*models.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarize orders: %w", err)
	}
	defer rows.Close()

	summary := &models.Summary{}
	for rows.Next() {
		var status models.OrderStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch status {
		case models.StatusPending:
			summary.Pending = count
		case models.StatusProcessing:
			summary.Processing = count
		case models.StatusConfirmed:
			summary.Confirmed = count
		case models.StatusShipped:
			summary.Shipped = count
		case models.StatusHold:
			summary.Hold = count
		case models.StatusCancelled:
			summary.Cancelled = count
		case models.StatusDelivered:
			summary.Delivered = count
		case models.StatusFailed:
			summary.Failed = count
		case models.StatusReturn:
			summary.Return = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summary, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrOrderNotFound
	}
	return nil
}

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row orderScanner, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Status,
		&o.CustomerName,
		&o.Phone,
		&o.Address,
		&o.ShippingCost,
		&o.TotalAmount,
		&o.Read,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
}

func fetchOrder(ctx context.Context, q querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	row := q.QueryRowContext(ctx, `
		SELECT id, order_number, status, customer_name, phone, address,
		       shipping_cost, total_amount, is_read, created_at, updated_at, version
		FROM orders
		WHERE id = $1`, id)
	if err := scanOrder(row, order); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_ref, sku, unit_price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductRef,
			&item.SKU,
			&item.UnitPrice,
			&item.Quantity,
			&item.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	history, err := fetchHistory(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.History = history

	return order, nil
}

func fetchHistory(ctx context.Context, q querier, orderID int64) ([]models.StatusHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, status, note, changed_at, changed_by
		FROM status_history
		WHERE order_id = $1
		ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer rows.Close()

	var history []models.StatusHistoryEntry
	for rows.Next() {
		var entry models.StatusHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.OrderID,
			&entry.Status,
			&entry.Note,
			&entry.ChangedAt,
			&entry.ChangedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return history, nil
}
