package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type HistoryOperation string

const (
	OpCreate         HistoryOperation = "create"
	OpUpdate         HistoryOperation = "update"
	OpDelete         HistoryOperation = "delete"
	OpMove           HistoryOperation = "move"
	OpConvert        HistoryOperation = "convert"
	OpAddChild       HistoryOperation = "add_child"
	OpRemoveChild    HistoryOperation = "remove_child"
	OpSplit          HistoryOperation = "split"
	OpMerge          HistoryOperation = "merge"
	OpQuantityChange HistoryOperation = "quantity_change"
)

// EntityHistory is an append-only audit row. The auto-increment ID orders
// entries of one entity.
type EntityHistory struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	EntityID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"entity_id"`
	Operation       HistoryOperation  `gorm:"type:varchar(32);not null" json:"operation"`
	RelatedEntityID *uuid.UUID        `gorm:"type:uuid" json:"related_entity_id"`
	Details         datatypes.JSONMap `json:"details"`
	UserID          *uuid.UUID        `gorm:"type:uuid" json:"user_id"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
}

func (EntityHistory) TableName() string {
	return "entity_history"
}
