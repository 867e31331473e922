package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/samshop/internal/model"
)

// CreateCheckout сохраняет заказ и заполняет его идентификатор и время создания.
func (r *PostgresRepository) CreateCheckout(ctx context.Context, c *model.Checkout) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshal checkout items: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO checkouts (session_id, user_id, customer_name, customer_email, customer_phone,
		                        customer_address, items, subtotal, tax, shipping_cost, total, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id::text, created_at`,
		c.SessionID, c.UserID, c.Customer.Name, c.Customer.Email, c.Customer.Phone,
		c.Customer.Address, items, c.Subtotal, c.Tax, c.ShippingCost, c.Total, string(c.Status),
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert checkout: %w", err)
	}

	return nil
}

// GetCheckout возвращает заказ по идентификатору.
func (r *PostgresRepository) GetCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrCheckoutNotFound
	}

	var (
		c      model.Checkout
		items  []byte
		status string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, session_id::text, user_id, customer_name, customer_email, customer_phone,
		        customer_address, items, subtotal, tax, shipping_cost, total, status, created_at, paid_at
		 FROM checkouts
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SessionID, &c.UserID, &c.Customer.Name, &c.Customer.Email, &c.Customer.Phone,
		&c.Customer.Address, &items, &c.Subtotal, &c.Tax, &c.ShippingCost, &c.Total, &status,
		&c.CreatedAt, &c.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}

	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshal checkout items: %w", err)
	}
	c.Status = model.CheckoutStatus(status)

	return &c, nil
}

// CancelCheckout переводит ожидающий оплаты заказ в статус CANCELLED.
// Возвращает false, если заказ уже находится в конечном статусе.
func (r *PostgresRepository) CancelCheckout(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrCheckoutNotFound
	}

	var cancelled bool
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE checkouts SET status = $2 WHERE id = $1 AND status = $3`,
			id, string(model.CheckoutStatusCancelled), string(model.CheckoutStatusPending),
		)
		if err != nil {
			return fmt.Errorf("cancel checkout: %w", err)
		}
		cancelled = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM checkouts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check checkout: %w", err)
	}
	if !exists {
		return false, ErrCheckoutNotFound
	}

	return false, nil
}

// CreatePayment сохраняет платёж и заполняет его идентификатор и временные метки.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (checkout_id, invoice_id, external_id, payment_url, amount, currency, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text, created_at, updated_at`,
		p.CheckoutID, p.InvoiceID, p.ExternalID, p.PaymentURL, p.Amount, p.Currency, string(p.Status), p.ExpiresAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicatePayment, p.ExternalID)
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

// FindPayment ищет платёж по external id или по идентификатору счёта платёжной системы.
// Пустые значения в поиске не участвуют.
func (r *PostgresRepository) FindPayment(ctx context.Context, externalID, invoiceID string) (*model.Payment, error) {
	if externalID == "" && invoiceID == "" {
		return nil, ErrPaymentNotFound
	}

	var (
		p       model.Payment
		status  string
		webhook []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, checkout_id::text, invoice_id, external_id, payment_url, amount, currency, status,
		        paid_at, paid_amount, payment_method, payment_channel, expires_at, webhook_data, created_at, updated_at
		 FROM payments
		 WHERE ($1 <> '' AND external_id = $1) OR ($2 <> '' AND invoice_id = $2)
		 ORDER BY created_at DESC
		 LIMIT 1`,
		externalID, invoiceID,
	).Scan(&p.ID, &p.CheckoutID, &p.InvoiceID, &p.ExternalID, &p.PaymentURL, &p.Amount, &p.Currency, &status,
		&p.PaidAt, &p.PaidAmount, &p.PaymentMethod, &p.PaymentChannel, &p.ExpiresAt, &webhook, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}

	p.Status = model.PaymentStatus(status)
	p.WebhookData = webhook

	return &p, nil
}

// MarkPaymentPaid в одной транзакции фиксирует оплату платежа и переводит заказ в статус PAID.
// Обновление выполняется только для платежа в статусе PENDING; false означает, что
// платёж уже обработан другой доставкой вебхука.
func (r *PostgresRepository) MarkPaymentPaid(ctx context.Context, paymentID string, upd model.PaidUpdate) (bool, error) {
	var applied bool

	err := r.withRetry(ctx, func(ctx context.Context) error {
		applied = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var checkoutID string
		err = tx.QueryRow(ctx,
			`UPDATE payments
			 SET status = $2, paid_at = $3, paid_amount = $4, payment_method = $5,
			     payment_channel = $6, webhook_data = $7, updated_at = NOW()
			 WHERE id = $1 AND status = $8
			 RETURNING checkout_id::text`,
			paymentID, string(upd.Status), upd.PaidAt, upd.PaidAmount, upd.PaymentMethod,
			upd.PaymentChannel, jsonOrNil(upd.WebhookData), string(model.PaymentStatusPending),
		).Scan(&checkoutID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("update payment: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE checkouts SET status = $2, paid_at = $3 WHERE id = $1 AND status = $4`,
			checkoutID, string(model.CheckoutStatusPaid), upd.PaidAt, string(model.CheckoutStatusPending),
		)
		if err != nil {
			return fmt.Errorf("update checkout: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

// MarkPaymentExpired в одной транзакции переводит платёж в EXPIRED. Заказ истекает вместе
// с ним, если у заказа не осталось других ожидающих платежей.
func (r *PostgresRepository) MarkPaymentExpired(ctx context.Context, paymentID string, webhookData json.RawMessage) (bool, error) {
	var applied bool

	err := r.withRetry(ctx, func(ctx context.Context) error {
		applied = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var checkoutID string
		err = tx.QueryRow(ctx,
			`UPDATE payments
			 SET status = $2, webhook_data = $3, updated_at = NOW()
			 WHERE id = $1 AND status = $4
			 RETURNING checkout_id::text`,
			paymentID, string(model.PaymentStatusExpired), jsonOrNil(webhookData), string(model.PaymentStatusPending),
		).Scan(&checkoutID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("update payment: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE checkouts SET status = $2
			 WHERE id = $1 AND status = $3
			   AND NOT EXISTS (SELECT 1 FROM payments WHERE checkout_id = $1 AND status = $3)`,
			checkoutID, string(model.CheckoutStatusExpired), string(model.CheckoutStatusPending),
		)
		if err != nil {
			return fmt.Errorf("update checkout: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

func jsonOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
