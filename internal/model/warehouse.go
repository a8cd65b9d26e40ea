package model

// Warehouse is the root location of an entity tree.
type Warehouse struct {
	BaseModel
	Name        string  `gorm:"type:varchar(100);not null" json:"name"`
	Description *string `gorm:"type:text" json:"description"`
	Location    *string `gorm:"type:varchar(255)" json:"location"`
}
