package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// CreateOrder сохраняет заказ из колбэка popup-окна. Только вставка:
// существующий заказ с тем же reference не меняется. created сообщает,
// что заказ вставлен этим вызовом.
func (s *Storage) CreateOrder(ctx context.Context, order models.Order) (id int, created bool, err error) {
	const op = "storage.CreateOrder"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO orders (reference, provider_id, user_uid, email, total, currency, verified)
			  VALUES ($1, $2, NULLIF($3::text, ''), $4, $5, $6, FALSE)
			  ON CONFLICT (reference) DO NOTHING
			  RETURNING id`
	err = tx.QueryRowContext(ctx, query,
		order.Reference, order.ProviderID, order.UserUID, order.Email,
		order.Total, currencyOrDefault(order.Currency)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE reference = $1`, order.Reference).Scan(&id); err != nil {
			return 0, false, fmt.Errorf("%s: %w", op, err)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertItems(ctx, tx, id, order.Items); err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return id, true, nil
}

// SaveVerifiedOrder сохраняет заказ из подписанного webhook. Данные webhook
// заменяют данные колбэка. firstVerified равен true только для первого
// подтверждения заказа, повторная доставка webhook его не повторяет.
func (s *Storage) SaveVerifiedOrder(ctx context.Context, order models.Order) (id int, firstVerified bool, err error) {
	const op = "storage.SaveVerifiedOrder"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `INSERT INTO orders (reference, provider_id, user_uid, email, total, currency, verified)
			   VALUES ($1, $2, NULLIF($3::text, ''), $4, $5, $6, TRUE)
			   ON CONFLICT (reference) DO NOTHING
			   RETURNING id`
	err = tx.QueryRowContext(ctx, insert,
		order.Reference, order.ProviderID, order.UserUID, order.Email,
		order.Total, currencyOrDefault(order.Currency)).Scan(&id)
	switch {
	case err == nil:
		firstVerified = true
	case errors.Is(err, sql.ErrNoRows):
		var verified bool
		err = tx.QueryRowContext(ctx, `SELECT id, verified FROM orders WHERE reference = $1 FOR UPDATE`,
			order.Reference).Scan(&id, &verified)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", op, err)
		}
		firstVerified = !verified

		update := `UPDATE orders SET
					   provider_id = $2,
					   user_uid = COALESCE(NULLIF($3::text, ''), user_uid),
					   email = CASE WHEN $4::text = '' THEN email ELSE $4::text END,
					   total = $5,
					   currency = $6,
					   verified = TRUE
				   WHERE id = $1`
		_, err = tx.ExecContext(ctx, update, id, order.ProviderID, order.UserUID, order.Email,
			order.Total, currencyOrDefault(order.Currency))
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", op, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return 0, false, fmt.Errorf("%s: %w", op, err)
		}
	default:
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertItems(ctx, tx, id, order.Items); err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return id, firstVerified, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID int, items []models.OrderItem) error {
	for _, it := range items {
		quantity := it.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product, quantity, subtotal) VALUES ($1, $2, $3, $4)`,
			orderID, it.Product, quantity, it.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetOrder возвращает заказ по reference.
func (s *Storage) GetOrder(ctx context.Context, reference string) (*models.Order, error) {
	const op = "storage.GetOrder"

	query := `SELECT id, reference, provider_id, COALESCE(user_uid, ''), email, total, currency, verified, created_at
			  FROM orders WHERE reference = $1`
	var (
		id    int
		order models.Order
	)
	err := s.DB.QueryRowContext(ctx, query, reference).Scan(&id, &order.Reference, &order.ProviderID,
		&order.UserUID, &order.Email, &order.Total, &order.Currency, &order.Verified, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items, err := s.listItems(ctx, []int{id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	order.Items = items[id]
	return &order, nil
}

// ListOrders возвращает заказы пользователя, новые первыми.
func (s *Storage) ListOrders(ctx context.Context, userUID string, limit, offset int) ([]*models.Order, error) {
	const op = "storage.ListOrders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, reference, provider_id, COALESCE(user_uid, ''), email, total, currency, verified, created_at
			  FROM orders
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []*models.Order
		ids    []int
	)
	for rows.Next() {
		var (
			id    int
			order models.Order
		)
		if err := rows.Scan(&id, &order.Reference, &order.ProviderID, &order.UserUID,
			&order.Email, &order.Total, &order.Currency, &order.Verified, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
		result = append(result, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		return result, nil
	}

	items, err := s.listItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i, id := range ids {
		result[i].Items = items[id]
	}
	return result, nil
}

func (s *Storage) listItems(ctx context.Context, orderIDs []int) (map[int][]models.OrderItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT order_id, product, quantity, subtotal FROM order_items
		 WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make(map[int][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int
			it      models.OrderItem
		)
		if err := rows.Scan(&orderID, &it.Product, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], it)
	}
	return items, rows.Err()
}

func currencyOrDefault(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
