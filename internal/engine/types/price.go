package types

import (
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
)

// Price is one (security, calendar date, value) observation.
type Price struct {
	SecurityUUID uuid.UUID
	Date         time.Time
	UnitPrice    money.Amount
}

// Portfolio is the owning container a transaction may belong to.
type Portfolio struct {
	UUID                uuid.UUID
	Name                string
	ReferenceAccountUUID *uuid.UUID
}
