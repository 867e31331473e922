// Package pricing рассчитывает итоговые суммы заказа.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrOverflow возвращается, когда сумма заказа не помещается в int64.
var ErrOverflow = errors.New("amount overflows")

// Line описывает строку расчёта: цена за единицу и количество.
type Line struct {
	UnitPrice int64
	Quantity  int64
}

// Totals содержит рассчитанные суммы заказа в минимальных единицах валюты.
type Totals struct {
	Subtotal     int64
	Tax          int64
	ShippingCost int64
	Total        int64
}

// Engine рассчитывает налог и стоимость доставки по заданным параметрам.
type Engine struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// NewEngine создаёт калькулятор с указанной ставкой налога и правилами доставки.
func NewEngine(taxRate decimal.Decimal, freeShippingThreshold, flatShippingFee int64) *Engine {
	return &Engine{
		TaxRate:               taxRate,
		FreeShippingThreshold: freeShippingThreshold,
		FlatShippingFee:       flatShippingFee,
	}
}

// LineTotal возвращает цену строки. Цена и количество должны быть неотрицательными.
func LineTotal(unitPrice, quantity int64) (int64, error) {
	if unitPrice < 0 || quantity < 0 {
		return 0, fmt.Errorf("negative price %d or quantity %d", unitPrice, quantity)
	}
	if quantity != 0 && unitPrice > math.MaxInt64/quantity {
		return 0, fmt.Errorf("%w: %d x %d", ErrOverflow, unitPrice, quantity)
	}
	return unitPrice * quantity, nil
}

func add(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// Quote рассчитывает подытог, налог, доставку и итог. Пустой список даёт нулевой результат.
func (e *Engine) Quote(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, nil
	}

	var subtotal int64
	for _, l := range lines {
		lt, err := LineTotal(l.UnitPrice, l.Quantity)
		if err != nil {
			return Totals{}, err
		}
		if subtotal, err = add(subtotal, lt); err != nil {
			return Totals{}, err
		}
	}

	// Round в decimal округляет половину от нуля, для неотрицательных сумм это half-up.
	taxDec := decimal.NewFromInt(subtotal).Mul(e.TaxRate).Round(0)
	if taxDec.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Totals{}, fmt.Errorf("%w: tax on %d", ErrOverflow, subtotal)
	}
	tax := taxDec.IntPart()

	shipping := e.FlatShippingFee
	if subtotal > e.FreeShippingThreshold {
		shipping = 0
	}

	total, err := add(subtotal, tax)
	if err != nil {
		return Totals{}, err
	}
	if total, err = add(total, shipping); err != nil {
		return Totals{}, err
	}

	return Totals{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shipping,
		Total:        total,
	}, nil
}
