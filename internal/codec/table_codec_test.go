package codec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unclebandit/spinwin-backend/internal/codec"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/model"
)

func sampleLedger() *model.Ledger {
	l := model.NewLedger()
	l.Append(model.CustomerRecord{Name: "Alice", Email: "alice@example.com", Phone: "5551234567"})
	l.Append(model.CustomerRecord{Name: "Bob", Email: "bob@example.com", Phone: "0551234567", Offer: "10% off"})
	l.Append(model.CustomerRecord{Name: "Carol", Offer: "Free shipping"})
	return l
}

func workbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if first := f.GetSheetName(0); first != sheet {
		require.NoError(t, f.SetSheetName(first, sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	t.Run("populated", func(t *testing.T) {
		in := sampleLedger()
		data, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(data)
		require.NoError(t, err)
		assert.True(t, in.Equal(out), "got %+v", out)
	})

	t.Run("header only", func(t *testing.T) {
		data, err := codec.Encode(model.NewLedger())
		require.NoError(t, err)

		out, err := codec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, model.Header, out.Header)
		assert.Equal(t, 0, out.Len())
	})

	t.Run("legacy header", func(t *testing.T) {
		in := &model.Ledger{Header: model.LegacyHeader, Rows: []model.CustomerRecord{
			{Name: "Dan", Email: "dan@example.com", Phone: "5550000000"},
		}}
		data, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(data)
		require.NoError(t, err)
		assert.True(t, in.Equal(out))
		assert.False(t, out.HasOffer())
	})
}

func TestDecodeCorruption(t *testing.T) {
	valid, err := codec.Encode(sampleLedger())
	require.NoError(t, err)

	tooWide := make([]interface{}, codec.MaxColumns+1)
	for i := range tooWide {
		tooWide[i] = "Col"
	}
	tooWide[0] = "Name"

	cases := map[string][]byte{
		"empty":        {},
		"tiny":         []byte("PK"),
		"truncated":    valid[:len(valid)/2],
		"not a zip":    make([]byte, 4096),
		"wrong sheet":  workbook(t, "Sheet1", [][]interface{}{{"Name", "Email", "Phone", "Offer"}}),
		"empty sheet":  workbook(t, model.SheetName, nil),
		"bad header":   workbook(t, model.SheetName, [][]interface{}{{"Email", "Name", "Phone", "Offer"}}),
		"too wide":     workbook(t, model.SheetName, [][]interface{}{tooWide}),
		"missing name": workbook(t, model.SheetName, [][]interface{}{{"Name", "Email", "Phone", "Offer"}, {"", "x@example.com", "5551234567"}}),
		"extra cells":  workbook(t, model.SheetName, [][]interface{}{{"Name", "Email", "Phone"}, {"Eve", "e@example.com", "5551234567", "extra"}}),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			l, err := codec.Decode(data)
			assert.Nil(t, l)
			require.Error(t, err)
			assert.True(t, appErrors.IsCorruption(err), "expected corruption, got %v", err)
		})
	}
}

func TestSalvage(t *testing.T) {
	t.Run("rows under a wrong header", func(t *testing.T) {
		data := workbook(t, model.SheetName, [][]interface{}{
			{"Name", "E-mail", "Phone", "Offer"},
			{"Alice", "alice@example.com", "5551234567"},
			{"", "orphan@example.com"},
			{"Bob", "bob@example.com", "5559876543", "Free spin"},
		})
		_, err := codec.Decode(data)
		require.Error(t, err)

		rows := codec.Salvage(data)
		require.Len(t, rows, 2)
		assert.Equal(t, "Alice", rows[0].Name)
		assert.Equal(t, "Free spin", rows[1].Offer)
	})

	t.Run("renamed sheet", func(t *testing.T) {
		data := workbook(t, "Leads", [][]interface{}{
			{"Name", "Email", "Phone", "Offer"},
			{"Carol", "carol@example.com", "5550001111"},
		})
		rows := codec.Salvage(data)
		require.Len(t, rows, 1)
		assert.Equal(t, "carol@example.com", rows[0].Email)
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Nil(t, codec.Salvage([]byte("not a workbook")))
	})
}

func TestEncodable(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain", "Alice", true},
		{"unicode", "Zoë 🎡", true},
		{"tab and newline", "a\tb\nc", true},
		{"at cell limit", strings.Repeat("A", codec.MaxCellChars), true},
		{"over cell limit", strings.Repeat("A", codec.MaxCellChars+1), false},
		{"control character", "Eve\x01", false},
		{"nul", "a\x00b", false},
		{"invalid utf8", "\xff\xfe", false},
		{"non-character", "x\uFFFE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codec.Encodable(tt.in))
		})
	}
}

func TestEncodableFieldsRoundTrip(t *testing.T) {
	l := model.NewLedger()
	l.Append(model.CustomerRecord{Name: strings.Repeat("N", codec.MaxCellChars), Email: "Zoë 🎡", Phone: "5551234567", Offer: "line\nbreak"})
	for _, f := range l.Rows[0].Fields(len(l.Header)) {
		require.True(t, codec.Encodable(f))
	}

	data, err := codec.Encode(l)
	require.NoError(t, err)
	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.True(t, l.Equal(got))
}
