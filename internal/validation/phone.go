// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// CountryCode задаёт телефонный код страны, в формат которого приводятся номера.
const CountryCode = "62"

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// ErrInvalidPhone возвращается, если номер нельзя привести к международному формату.
var ErrInvalidPhone = errors.New("invalid phone number")

var mobilePattern = regexp.MustCompile(`^(\+62|62|0)8[1-9][0-9]{6,9}$`)

// IsValidMobile проверяет, что строка похожа на номер мобильного телефона.
func IsValidMobile(phone string) bool {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
	return mobilePattern.MatchString(compact)
}

// NormalizePhone приводит номер к международному формату без знака плюс.
// Ведущий ноль заменяется кодом страны, номер с кодом страны остаётся как есть,
// в остальных случаях код страны добавляется в начало.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	var normalized string
	switch {
	case strings.HasPrefix(digits, CountryCode):
		normalized = digits
	case strings.HasPrefix(digits, "0"):
		normalized = CountryCode + digits[1:]
	default:
		normalized = CountryCode + digits
	}

	if len(normalized) < minPhoneDigits || len(normalized) > maxPhoneDigits {
		return "", ErrInvalidPhone
	}

	return normalized, nil
}
