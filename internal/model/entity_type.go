package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeItem      = "item"
	TypeContainer = "container"
	TypePackage   = "package"
)

// EntityType holds containment rules and field policy for one type code.
// An empty AllowedChildTypes list means any type may be contained.
type EntityType struct {
	ID                 uint                        `gorm:"primaryKey" json:"id"`
	Code               string                      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name               string                      `gorm:"type:varchar(100);not null" json:"name"`
	Description        *string                     `gorm:"type:text" json:"description"`
	Icon               string                      `gorm:"type:varchar(16)" json:"icon"`
	Color              string                      `gorm:"type:varchar(20)" json:"color"`
	CanContainChildren bool                        `gorm:"not null" json:"can_contain_children"`
	CanBeChild         bool                        `gorm:"not null" json:"can_be_child"`
	AllowedParentTypes datatypes.JSONSlice[string] `json:"allowed_parent_types"`
	AllowedChildTypes  datatypes.JSONSlice[string] `json:"allowed_child_types"`
	VisibleFields      datatypes.JSONSlice[string] `json:"visible_fields"`
	RequiredFields     datatypes.JSONSlice[string] `json:"required_fields"`
	AvailableStatuses  datatypes.JSONSlice[string] `json:"available_statuses"`
	DefaultStatus      *string                     `gorm:"type:varchar(50)" json:"default_status"`
	SortOrder          int                         `gorm:"not null" json:"sort_order"`
	IsActive           bool                        `gorm:"not null" json:"is_active"`
	IsBuiltin          bool                        `gorm:"not null" json:"is_builtin"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// AllowsChild reports whether an entity of type code may be placed inside
// an entity of this type.
func (t *EntityType) AllowsChild(code string) bool {
	if !t.CanContainChildren {
		return false
	}
	return len(t.AllowedChildTypes) == 0 || contains(t.AllowedChildTypes, code)
}

// AllowsStatus reports whether status is valid for this type.
func (t *EntityType) AllowsStatus(status string) bool {
	return len(t.AvailableStatuses) == 0 || contains(t.AvailableStatuses, status)
}

func (t *EntityType) Requires(field string) bool {
	return contains(t.RequiredFields, field)
}

// DefaultEntityTypes is the builtin set seeded at startup.
func DefaultEntityTypes() []EntityType {
	return []EntityType{
		{
			Code:               TypeItem,
			Name:               "Item",
			Description:        strPtr("Basic inventory item (leaf node)"),
			Icon:               "📦",
			Color:              "#4CAF50",
			CanContainChildren: false,
			CanBeChild:         true,
			AllowedParentTypes: datatypes.JSONSlice[string]{TypeContainer, TypePackage},
			AllowedChildTypes:  datatypes.JSONSlice[string]{},
			VisibleFields:      datatypes.JSONSlice[string]{"barcode", "origin_barcode", "name", "description", "quantity", "price"},
			RequiredFields:     datatypes.JSONSlice[string]{"barcode", "name"},
			AvailableStatuses:  datatypes.JSONSlice[string]{},
			SortOrder:          1,
			IsActive:           true,
			IsBuiltin:          true,
		},
		{
			Code:               TypeContainer,
			Name:               "Container",
			Description:        strPtr("Container for items (box, bin, shelf, rack, etc.)"),
			Icon:               "📥",
			Color:              "#2196F3",
			CanContainChildren: true,
			CanBeChild:         true,
			AllowedParentTypes: datatypes.JSONSlice[string]{TypeContainer},
			AllowedChildTypes:  datatypes.JSONSlice[string]{TypeItem, TypeContainer},
			VisibleFields:      datatypes.JSONSlice[string]{"barcode", "name", "description"},
			RequiredFields:     datatypes.JSONSlice[string]{"barcode", "name"},
			AvailableStatuses:  datatypes.JSONSlice[string]{},
			SortOrder:          2,
			IsActive:           true,
			IsBuiltin:          true,
		},
		{
			Code:               TypePackage,
			Name:               "Package",
			Description:        strPtr("Collection of items for orders or production"),
			Icon:               "📋",
			Color:              "#FF9800",
			CanContainChildren: true,
			CanBeChild:         false,
			AllowedParentTypes: datatypes.JSONSlice[string]{},
			AllowedChildTypes:  datatypes.JSONSlice[string]{TypeItem},
			VisibleFields:      datatypes.JSONSlice[string]{"barcode", "name", "description", "status"},
			RequiredFields:     datatypes.JSONSlice[string]{"barcode", "name"},
			AvailableStatuses:  datatypes.JSONSlice[string]{"new", "sourcing", "packed", "done", "cancelled"},
			SortOrder:          3,
			IsActive:           true,
			IsBuiltin:          true,
		},
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func strPtr(s string) *string {
	return &s
}
