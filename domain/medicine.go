package domain

import "github.com/shopspring/decimal"

type Medicine struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Manufacturer   string          `db:"manufacturer" json:"manufacturer"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Quantity       int64           `db:"quantity" json:"quantity"`
	IsDiscontinued bool            `db:"is_discontinued" json:"is_discontinued"`
	MedicineType   string          `db:"medicine_type" json:"medicine_type"`
	PackSize       string          `db:"pack_size" json:"pack_size"`
	Composition1   string          `db:"composition1" json:"composition1"`
	Composition2   string          `db:"composition2" json:"composition2"`
}

// Status reports the stock status label used by the exports.
func (m Medicine) Status() string {
	if m.IsDiscontinued {
		return "Discontinued"
	}
	return "Active"
}
