// Package lookup answers the two questions asked of a loaded ledger: does an
// entrant already exist, and which row belongs to a given name.
package lookup

import (
	"strings"

	"github.com/unclebandit/spinwin-backend/internal/model"
)

// ConflictField names the column that collided with an existing row.
type ConflictField string

const (
	ConflictNone  ConflictField = ""
	ConflictEmail ConflictField = "email"
	ConflictPhone ConflictField = "phone"
)

// NormalizeEmail is the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone is the comparison form of a phone number.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// FindConflict scans rows in order and reports the first row whose email or
// phone matches. Empty stored values never match.
func FindConflict(l *model.Ledger, email, phone string) ConflictField {
	email = NormalizeEmail(email)
	phone = NormalizePhone(phone)

	for _, row := range l.Rows {
		if e := NormalizeEmail(row.Email); e != "" && e == email {
			return ConflictEmail
		}
		if p := NormalizePhone(row.Phone); p != "" && p == phone {
			return ConflictPhone
		}
	}
	return ConflictNone
}

// FindRowIndexByName returns the index of the first row whose name equals
// name exactly, or -1.
func FindRowIndexByName(l *model.Ledger, name string) int {
	for i, row := range l.Rows {
		if row.Name == name {
			return i
		}
	}
	return -1
}
