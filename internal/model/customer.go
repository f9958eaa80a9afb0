// internal/model/customer.go
package model

// CustomerRecord is one row of the ledger.
type CustomerRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Offer string `json:"offer,omitempty"`
}

// Fields returns the record as cells in column order, cut to width columns.
func (c CustomerRecord) Fields(width int) []string {
	all := []string{c.Name, c.Email, c.Phone, c.Offer}
	if width < len(all) {
		return all[:width]
	}
	return all
}

// RecordFromFields builds a record from positional cells; missing trailing cells are empty.
func RecordFromFields(cells []string) CustomerRecord {
	get := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}
	return CustomerRecord{
		Name:  get(0),
		Email: get(1),
		Phone: get(2),
		Offer: get(3),
	}
}
