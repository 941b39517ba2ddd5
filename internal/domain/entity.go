package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// TaxIDLength is the digit count of a normalized RUC.
const TaxIDLength = 11

// ErrEntityNotFound is returned by the entity directory when a reference does not resolve.
var ErrEntityNotFound = errors.New("entity not found")

// Entity is the canonical business record resolved from the CRM directory.
type Entity struct {
	ID           uuid.UUID
	TaxID        string
	BusinessName string
	TradeName    string
}

// EntityRef is a normalized identifier: either a tax id or an internal entity id.
type EntityRef struct {
	Raw      string
	TaxID    string
	EntityID uuid.UUID
}

// IsInternal reports whether the reference names an entity id directly.
func (r EntityRef) IsInternal() bool {
	return r.EntityID != uuid.Nil
}

// Key is the canonical string form used for deduplication.
func (r EntityRef) Key() string {
	if r.IsInternal() {
		return r.EntityID.String()
	}
	return r.TaxID
}

// NormalizeIdentifier turns user input into an EntityRef. Internal UUID references are
// accepted as-is; anything else must contain exactly TaxIDLength digits once non-digits
// are stripped. Inputs are never padded or truncated.
func NormalizeIdentifier(raw string) (EntityRef, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EntityRef{Raw: raw}, false
	}
	if id, err := uuid.Parse(trimmed); err == nil && id != uuid.Nil {
		return EntityRef{Raw: raw, EntityID: id}, true
	}

	var b strings.Builder
	for _, ch := range trimmed {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if len(digits) != TaxIDLength {
		return EntityRef{Raw: raw}, false
	}
	return EntityRef{Raw: raw, TaxID: digits}, true
}
