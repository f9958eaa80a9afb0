package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/spinwin-backend/internal/model"
)

func ledger(rows ...model.CustomerRecord) *model.Ledger {
	l := model.NewLedger()
	for _, r := range rows {
		l.Append(r)
	}
	return l
}

func TestFindConflict(t *testing.T) {
	l := ledger(
		model.CustomerRecord{Name: "Alice", Email: "Alice@Example.com", Phone: "5551234567"},
		model.CustomerRecord{Name: "Offer only", Offer: "10% off"},
		model.CustomerRecord{Name: "Bob", Email: "bob@example.com", Phone: " 5559876543 "},
	)

	tests := []struct {
		name  string
		email string
		phone string
		want  ConflictField
	}{
		{"fresh entrant", "carol@example.com", "5550000000", ConflictNone},
		{"email differs only in case and space", "  alice@example.COM ", "5550000000", ConflictEmail},
		{"phone match with other email", "new@example.com", "5559876543", ConflictPhone},
		{"first row wins", "bob@example.com", "5551234567", ConflictPhone},
		{"email checked before phone", "alice@example.com", "5551234567", ConflictEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindConflict(l, tt.email, tt.phone))
		})
	}
}

func TestFindConflictIgnoresEmptyColumns(t *testing.T) {
	l := ledger(model.CustomerRecord{Name: "Offer only", Offer: "Free spin"})
	assert.Equal(t, ConflictNone, FindConflict(l, "", ""))
	assert.Equal(t, ConflictNone, FindConflict(model.NewLedger(), "a@example.com", "5551234567"))
}

func TestFindRowIndexByName(t *testing.T) {
	l := ledger(
		model.CustomerRecord{Name: "Alice"},
		model.CustomerRecord{Name: "alice"},
		model.CustomerRecord{Name: "Alice", Offer: "second"},
	)

	assert.Equal(t, 0, FindRowIndexByName(l, "Alice"))
	assert.Equal(t, 1, FindRowIndexByName(l, "alice"))
	assert.Equal(t, -1, FindRowIndexByName(l, "ALICE"))
	assert.Equal(t, -1, FindRowIndexByName(model.NewLedger(), "Alice"))
}
