package domain

import (
	"regexp"
	"time"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// Customer — карточка покупателя.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// ValidateInvariants проверяет обязательность имени и форматы контактов.
// Email и телефон опциональны, но если заданы — должны быть корректными.
func (c *Customer) ValidateInvariants() []error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, ErrNameRequired)
	}
	if c.Email != "" && !emailPattern.MatchString(c.Email) {
		errs = append(errs, ErrInvalidEmail)
	}
	if c.Phone != "" && !phonePattern.MatchString(c.Phone) {
		errs = append(errs, ErrInvalidPhone)
	}

	return errs
}
