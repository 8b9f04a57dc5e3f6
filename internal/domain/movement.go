package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementIn  MovementType = "in"
	MovementOut MovementType = "out"
)

// Valid reports whether t is one of the supported directions.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut
}

// SignedDelta returns quantity with the sign implied by t.
func (t MovementType) SignedDelta(quantity int) int {
	if t == MovementOut {
		return -quantity
	}
	return quantity
}

// Movement is one immutable ledger entry.
type Movement struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	ProductID       uuid.UUID        `json:"product_id" db:"product_id"`
	Type            MovementType     `json:"type" db:"type"`
	Quantity        int              `json:"quantity" db:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price" db:"unit_price"`
	ReferenceNumber string           `json:"reference_number" db:"reference_number"`
	Notes           string           `json:"notes" db:"notes"`
	CreatedBy       *uuid.UUID       `json:"created_by" db:"created_by"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// MovementWithProduct is a ledger entry joined with its product's name and description.
type MovementWithProduct struct {
	Movement
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
}

// MovementRequest is the input of a single stock movement.
type MovementRequest struct {
	ProductID       uuid.UUID
	Type            MovementType
	Quantity        int
	UnitPrice       *decimal.Decimal
	ReferenceNumber string
	Notes           string
	CreatedBy       *uuid.UUID
}

// MovementResult is what a committed movement produced.
type MovementResult struct {
	NewCurrentStock int
	Movement        *Movement
	LowStockWarning bool
}
