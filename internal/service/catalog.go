package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/model"
)

// ListProducts возвращает активные товары категории. Пустая категория и All снимают фильтр.
func (s *Service) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	c := model.Category(category)
	if c != "" && c != model.CategoryAll && !c.IsProductCategory() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	products, err := s.repo.ListProducts(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %w", ErrStorage, err)
	}

	return products, nil
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	p.Name = strings.TrimSpace(p.Name)

	var problems []string
	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.Price < 0 {
		problems = append(problems, "price must not be negative")
	}
	if p.Stock < 0 {
		problems = append(problems, "stock must not be negative")
	}
	if !p.Category.IsProductCategory() {
		problems = append(problems, fmt.Sprintf("category must be one of %s, %s, %s",
			model.CategoryDrinks, model.CategorySnacks, model.CategoryBundle))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}

	created, err := s.repo.CreateProduct(context.WithoutCancel(ctx), p)
	if err != nil {
		return nil, fmt.Errorf("%w: create product: %w", ErrStorage, err)
	}

	s.logger.Info("product created",
		zap.String("productID", created.ID),
		zap.String("category", string(created.Category)),
	)

	return created, nil
}
