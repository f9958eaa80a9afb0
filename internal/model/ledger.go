// internal/model/ledger.go
package model

import "slices"

const SheetName = "Customers"

var (
	// Header is the canonical column set written for every new ledger.
	Header = []string{"Name", "Email", "Phone", "Offer"}
	// LegacyHeader is the pre-offer layout, still accepted on load.
	LegacyHeader = []string{"Name", "Email", "Phone"}
)

// Ledger is the single table of customer records in arrival order.
type Ledger struct {
	Header []string         `json:"header"`
	Rows   []CustomerRecord `json:"rows"`
}

// NewLedger returns a header-only ledger.
func NewLedger() *Ledger {
	return &Ledger{Header: slices.Clone(Header), Rows: []CustomerRecord{}}
}

// Rebuild returns a fresh canonical ledger carrying every row of l.
func Rebuild(l *Ledger) *Ledger {
	fresh := NewLedger()
	if l != nil {
		fresh.Rows = append(fresh.Rows, l.Rows...)
	}
	return fresh
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Header: slices.Clone(l.Header),
		Rows:   append([]CustomerRecord{}, l.Rows...),
	}
}

// Append adds a record at the end of the ledger.
func (l *Ledger) Append(rec CustomerRecord) {
	l.Rows = append(l.Rows, rec)
}

// HasOffer reports whether the ledger carries the Offer column.
func (l *Ledger) HasOffer() bool {
	return len(l.Header) >= len(Header)
}

// UpgradeHeader switches a legacy ledger to the canonical column set.
func (l *Ledger) UpgradeHeader() {
	if !l.HasOffer() {
		l.Header = slices.Clone(Header)
	}
}

// Len is the number of data rows, header excluded.
func (l *Ledger) Len() int {
	return len(l.Rows)
}

// Equal compares header and rows.
func (l *Ledger) Equal(other *Ledger) bool {
	if l == nil || other == nil {
		return l == other
	}
	return slices.Equal(l.Header, other.Header) && slices.Equal(l.Rows, other.Rows)
}
