package validation

import (
	"regexp"
	"strings"

	"github.com/mmeshcher/samshop/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail проверяет формат адреса электронной почты.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// CustomerProblems возвращает список замечаний к контактным данным покупателя.
// Пустой список означает, что данные корректны.
func CustomerProblems(c model.CustomerInfo) []string {
	var problems []string

	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "name is required")
	}

	switch {
	case strings.TrimSpace(c.Email) == "":
		problems = append(problems, "email is required")
	case !IsValidEmail(c.Email):
		problems = append(problems, "invalid email format")
	}

	switch {
	case strings.TrimSpace(c.Phone) == "":
		problems = append(problems, "phone number is required")
	case !IsValidMobile(c.Phone):
		problems = append(problems, "invalid mobile phone number")
	}

	if strings.TrimSpace(c.Address) == "" {
		problems = append(problems, "address is required")
	}

	return problems
}
