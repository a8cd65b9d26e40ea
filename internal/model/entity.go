package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entity is any inventory object: item, container, package or an admin
// defined type. Behaviour per type is resolved through EntityType, not Go types.
//
// At most one of WarehouseID and ParentID is set. Roots live in a warehouse,
// everything else lives inside its parent.
type Entity struct {
	BaseModel
	Barcode       string              `gorm:"type:varchar(160);uniqueIndex;not null" json:"barcode"`
	OriginBarcode *string             `gorm:"type:varchar(100);index" json:"origin_barcode"`
	Name          string              `gorm:"type:varchar(255);not null" json:"name"`
	Description   *string             `gorm:"type:text" json:"description"`
	EntityType    string              `gorm:"type:varchar(50);index;not null" json:"entity_type"`
	Quantity      int                 `gorm:"not null" json:"quantity"`
	Price         decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"price"`
	WarehouseID   *uuid.UUID          `gorm:"type:uuid;index" json:"warehouse_id"`
	ParentID      *uuid.UUID          `gorm:"type:uuid;index" json:"parent_id"`
	CustomFields  datatypes.JSONMap   `json:"custom_fields"`
	Status        *string             `gorm:"type:varchar(50);index" json:"status"`

	Warehouse      *Warehouse       `gorm:"foreignKey:WarehouseID" json:"-"`
	Children       []Entity         `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"children,omitempty"`
	ChildRelations []EntityRelation `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"child_relations,omitempty"`
	History        []EntityHistory  `gorm:"foreignKey:EntityID;constraint:OnDelete:CASCADE" json:"-"`
}

// Location is the entity's (warehouse, parent) pair as history details.
func (e *Entity) Location() map[string]interface{} {
	return map[string]interface{}{
		"warehouse_id": uuidOrNil(e.WarehouseID),
		"parent_id":    uuidOrNil(e.ParentID),
	}
}

// CloneFor copies the descriptive fields of e into a new entity that will
// live at the given location with the given quantity.
func (e *Entity) CloneFor(barcode string, quantity int, warehouseID, parentID *uuid.UUID) *Entity {
	clone := &Entity{
		Barcode:       barcode,
		OriginBarcode: e.OriginBarcode,
		Name:          e.Name,
		Description:   e.Description,
		EntityType:    e.EntityType,
		Quantity:      quantity,
		Price:         e.Price,
		WarehouseID:   warehouseID,
		ParentID:      parentID,
		Status:        e.Status,
	}
	if e.CustomFields != nil {
		clone.CustomFields = make(datatypes.JSONMap, len(e.CustomFields))
		for k, v := range e.CustomFields {
			clone.CustomFields[k] = v
		}
	}
	return clone
}

// EntitySummary is the list projection of an entity.
type EntitySummary struct {
	ID            uuid.UUID  `json:"id"`
	Barcode       string     `json:"barcode"`
	Name          string     `json:"name"`
	EntityType    string     `json:"entity_type"`
	Quantity      int        `json:"quantity"`
	Status        *string    `json:"status"`
	ChildrenCount int64      `json:"children_count"`
	WarehouseID   *uuid.UUID `json:"warehouse_id"`
	ParentID      *uuid.UUID `json:"parent_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// EntityRelation records that Quantity units of Child are counted inside
// Parent without reparenting Child. One row per (parent, child) pair.
type EntityRelation struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ParentID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_relation_pair" json:"parent_id"`
	ChildID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_relation_pair;index" json:"child_id"`
	Quantity      int                 `gorm:"not null" json:"quantity"`
	PriceSnapshot decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"price_snapshot"`
	Notes         *string             `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time           `json:"created_at"`

	Child *Entity `gorm:"foreignKey:ChildID;constraint:OnDelete:CASCADE" json:"child,omitempty"`
}

func (r *EntityRelation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func uuidOrNil(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
