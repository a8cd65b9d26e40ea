package model

import "time"

const (
	SettingBarcodePattern     = "barcode_pattern"
	SettingAutoLookupExternal = "auto_lookup_external"
)

// Setting is a key/value row of runtime configuration editable by admins.
type Setting struct {
	Key         string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value       string    `gorm:"type:text" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingDefault describes a known key.
type SettingDefault struct {
	Default     string
	Description string
}

// KnownSettings lists the keys the service understands.
var KnownSettings = map[string]SettingDefault{
	SettingBarcodePattern: {
		Default:     "",
		Description: "Barcode pattern for internal items. # matches a digit, * any character, $ an optional character. Example: INV-##### for INV-00000 to INV-99999",
	},
	SettingAutoLookupExternal: {
		Default:     "true",
		Description: "Look up EAN/UPC/ISBN codes in online catalogs when a barcode does not match the internal pattern",
	},
}
