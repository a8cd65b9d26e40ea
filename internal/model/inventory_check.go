package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckStatus string

const (
	CheckInProgress CheckStatus = "in_progress"
	CheckCompleted  CheckStatus = "completed"
	CheckCancelled  CheckStatus = "cancelled"
)

// InventoryCheck is a stock-take session. Items snapshot the counted
// entities when the check starts; counting never touches the entities
// themselves until corrections are applied.
type InventoryCheck struct {
	BaseModel
	Name                 string      `gorm:"type:varchar(255);not null" json:"name"`
	Description          *string     `gorm:"type:text" json:"description"`
	Status               CheckStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	StartedAt            time.Time   `json:"started_at"`
	CompletedAt          *time.Time  `json:"completed_at"`
	CorrectionsAppliedAt *time.Time  `json:"corrections_applied_at"`

	Items []CheckItem `gorm:"foreignKey:CheckID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// InventoryCheckSummary is the list projection of a check.
type InventoryCheckSummary struct {
	ID                  uuid.UUID   `json:"id"`
	Name                string      `json:"name"`
	Description         *string     `json:"description"`
	Status              CheckStatus `json:"status"`
	StartedAt           time.Time   `json:"started_at"`
	CompletedAt         *time.Time  `json:"completed_at"`
	TotalItems          int64       `json:"total_items"`
	CheckedItems        int64       `json:"checked_items"`
	ItemsWithDifference int64       `json:"items_with_difference"`
}

// CheckItem is one counted entity. ActualQuantity stays nil until counted.
type CheckItem struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CheckID          uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_check_entity" json:"check_id"`
	EntityID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_check_entity" json:"entity_id"`
	Barcode          string              `gorm:"type:varchar(160);not null;index" json:"barcode"`
	Name             string              `gorm:"type:varchar(255);not null" json:"name"`
	EntityType       string              `gorm:"type:varchar(50);not null" json:"entity_type"`
	ParentID         *uuid.UUID          `gorm:"type:uuid" json:"parent_id"`
	ParentName       *string             `gorm:"type:varchar(255)" json:"parent_name"`
	ExpectedQuantity int                 `gorm:"not null" json:"expected_quantity"`
	ActualQuantity   *int                `json:"actual_quantity"`
	Price            decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"price"`
	CheckedAt        *time.Time          `json:"checked_at"`
	CheckedBy        *uuid.UUID          `gorm:"type:uuid" json:"checked_by"`

	Difference *int `gorm:"-" json:"difference"`
}

func (CheckItem) TableName() string {
	return "inventory_check_items"
}

func (i *CheckItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *CheckItem) AfterFind(tx *gorm.DB) error {
	i.SetDifference()
	return nil
}

// SetDifference recomputes actual minus expected.
func (i *CheckItem) SetDifference() {
	i.Difference = nil
	if i.ActualQuantity != nil {
		diff := *i.ActualQuantity - i.ExpectedQuantity
		i.Difference = &diff
	}
}

// Differs reports whether the item was counted and the count disagrees
// with the snapshot.
func (i *CheckItem) Differs() bool {
	return i.ActualQuantity != nil && *i.ActualQuantity != i.ExpectedQuantity
}
