package model

import "strings"

// BarcodePlaceholder is replaced with the scanned barcode in SearchURL.
const BarcodePlaceholder = "{barcode}"

// SupplierPattern maps a barcode template to a supplier search page.
type SupplierPattern struct {
	BaseModel
	Name        string  `gorm:"type:varchar(100);not null;index" json:"name"`
	Pattern     string  `gorm:"type:varchar(100);not null" json:"pattern"`
	SearchURL   string  `gorm:"type:varchar(500);not null" json:"search_url"`
	Description *string `gorm:"type:text" json:"description"`
	Enabled     bool    `gorm:"not null" json:"enabled"`
}

// SearchURLFor substitutes barcode into the URL template.
func (p *SupplierPattern) SearchURLFor(barcode string) string {
	return strings.ReplaceAll(p.SearchURL, BarcodePlaceholder, barcode)
}
