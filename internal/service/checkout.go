package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/pricing"
	"github.com/mmeshcher/samshop/internal/repository"
	"github.com/mmeshcher/samshop/internal/validation"
)

// MaxItemQuantity ограничивает количество одного товара в заказе.
const MaxItemQuantity = 10000

// CheckoutInput описывает корзину и контакты покупателя, присланные клиентом.
// Цены и суммы клиента не принимаются: они всегда рассчитываются на сервере.
type CheckoutInput struct {
	Items    []model.LineItem
	Customer model.CustomerInfo
	UserID   *string
}

// CreateCheckout оформляет заказ: проверяет контакты, фиксирует названия и цены товаров,
// рассчитывает суммы и сохраняет заказ в статусе PENDING.
// Если хотя бы один товар не найден, ничего не сохраняется.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*model.Checkout, error) {
	if problems := validation.CustomerProblems(in.Customer); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	ids := make([]string, 0, len(in.Items))
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: product id is required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be positive", ErrValidation, it.ProductID)
		}
		if it.Quantity > MaxItemQuantity {
			return nil, fmt.Errorf("%w: quantity for product %s exceeds %d", ErrValidation, it.ProductID, MaxItemQuantity)
		}
		id := canonicalProductID(it.ProductID)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: find products: %w", ErrStorage, err)
	}

	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: products not found: %s", ErrNotFound, strings.Join(missing, ", "))
	}

	items := make([]model.CheckoutItem, 0, len(in.Items))
	lines := make([]pricing.Line, 0, len(in.Items))
	for _, it := range in.Items {
		p := byID[canonicalProductID(it.ProductID)]
		if p.Price < 0 {
			return nil, fmt.Errorf("%w: product %s has negative price", ErrValidation, p.ID)
		}

		subtotal, err := pricing.LineTotal(p.Price, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %w", ErrValidation, p.ID, err)
		}

		items = append(items, model.CheckoutItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}

	totals, err := s.pricing.Quote(lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	c := &model.Checkout{
		SessionID:    uuid.NewString(),
		UserID:       in.UserID,
		Customer:     in.Customer,
		Items:        items,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		ShippingCost: totals.ShippingCost,
		Total:        totals.Total,
		Status:       model.CheckoutStatusPending,
	}

	if err := s.repo.CreateCheckout(context.WithoutCancel(ctx), c); err != nil {
		return nil, fmt.Errorf("%w: create checkout: %w", ErrStorage, err)
	}

	s.logger.Info("checkout created",
		zap.String("checkoutID", c.ID),
		zap.Int("items", len(c.Items)),
		zap.Int64("total", c.Total),
	)

	s.notifier.CheckoutPending(c)

	return c, nil
}

// canonicalProductID приводит UUID к каноническому виду, в котором его возвращает хранилище.
// Строки, не являющиеся UUID, возвращаются без изменений.
func canonicalProductID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// GetCheckout возвращает заказ по идентификатору.
func (s *Service) GetCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	c, err := s.repo.GetCheckout(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return nil, fmt.Errorf("%w: checkout %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get checkout: %w", ErrStorage, err)
	}
	return c, nil
}

// CancelCheckout отменяет ожидающий оплаты заказ. Заказ в конечном статусе не меняется.
func (s *Service) CancelCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	ctx = context.WithoutCancel(ctx)

	cancelled, err := s.repo.CancelCheckout(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return nil, fmt.Errorf("%w: checkout %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: cancel checkout: %w", ErrStorage, err)
	}

	c, err := s.GetCheckout(ctx, id)
	if err != nil {
		return nil, err
	}

	if !cancelled {
		return nil, fmt.Errorf("%w: checkout %s is already %s", ErrConflict, id, c.Status)
	}

	s.logger.Info("checkout cancelled", zap.String("checkoutID", id))

	return c, nil
}
