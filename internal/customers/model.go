// Package customers is the customer directory: the workflow core treats
// a customer id as an opaque foreign key and only needs create/lookup.
package customers

import (
	"errors"
	"time"
)

// Customer is an end customer buying from a dealer.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerInput carries fields for registration.
type CreateCustomerInput struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

// ErrNotFound indicates a missing customer.
var ErrNotFound = errors.New("customers: not found")

// ErrDuplicatePhone indicates the phone number is already registered.
var ErrDuplicatePhone = errors.New("customers: phone already registered")
