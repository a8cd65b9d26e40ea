package service

import (
	"bytes"
	"encoding/json"

	"go-inventory-tree/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Optional separates an absent JSON field from an explicit null, which a
// plain pointer cannot do.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type CreateEntityInput struct {
	Barcode       string                 `json:"barcode" validate:"required,max=100"`
	OriginBarcode *string                `json:"origin_barcode" validate:"omitempty,max=100"`
	Name          string                 `json:"name" validate:"required,max=255"`
	Description   *string                `json:"description"`
	EntityType    string                 `json:"entity_type" validate:"required,max=50"`
	Quantity      *int                   `json:"quantity" validate:"omitempty,gte=0"`
	Price         decimal.NullDecimal    `json:"price"`
	Status        *string                `json:"status" validate:"omitempty,max=50"`
	CustomFields  map[string]interface{} `json:"custom_fields"`
	WarehouseID   *uuid.UUID             `json:"warehouse_id"`
	ParentID      *uuid.UUID             `json:"parent_id"`
}

// UpdateEntityInput is a partial update. Nil pointers and unset Optionals
// leave the column alone; Optional nulls clear it.
type UpdateEntityInput struct {
	Barcode       *string                          `json:"barcode" validate:"omitempty,min=1,max=100"`
	OriginBarcode Optional[string]                 `json:"origin_barcode"`
	Name          *string                          `json:"name" validate:"omitempty,min=1,max=255"`
	Description   Optional[string]                 `json:"description"`
	EntityType    *string                          `json:"entity_type" validate:"omitempty,min=1,max=50"`
	Quantity      *int                             `json:"quantity" validate:"omitempty,gte=0"`
	Price         Optional[decimal.Decimal]        `json:"price"`
	Status        Optional[string]                 `json:"status"`
	CustomFields  Optional[map[string]interface{}] `json:"custom_fields"`
	WarehouseID   Optional[uuid.UUID]              `json:"warehouse_id"`
	ParentID      Optional[uuid.UUID]              `json:"parent_id"`
}

// MoveInput names exactly one destination. A Quantity below the entity's
// quantity splits that many units off and moves only them.
type MoveInput struct {
	TargetWarehouseID *uuid.UUID `json:"target_warehouse_id"`
	TargetParentID    *uuid.UUID `json:"target_parent_id"`
	Quantity          *int       `json:"quantity"`
}

type SplitInput struct {
	Quantity          int        `json:"quantity" validate:"required,gt=0"`
	NewBarcode        string     `json:"new_barcode" validate:"required,max=100"`
	TargetWarehouseID *uuid.UUID `json:"target_warehouse_id"`
	TargetParentID    *uuid.UUID `json:"target_parent_id"`
}

type ConvertInput struct {
	NewType   string  `json:"new_type" validate:"required,max=50"`
	NewStatus *string `json:"new_status" validate:"omitempty,max=50"`
}

type MergeInput struct {
	SourceIDs []uuid.UUID `json:"source_ids" validate:"required,min=1"`
}

type AddChildInput struct {
	ChildBarcode     *string             `json:"child_barcode"`
	ChildID          *uuid.UUID          `json:"child_id"`
	Quantity         *int                `json:"quantity"`
	RemoveFromSource *bool               `json:"remove_from_source"`
	PriceSnapshot    decimal.NullDecimal `json:"price_snapshot"`
	Notes            *string             `json:"notes"`
}

type UpdateRelationInput struct {
	Quantity      *int                      `json:"quantity" validate:"omitempty,gte=1"`
	PriceSnapshot Optional[decimal.Decimal] `json:"price_snapshot"`
	Notes         Optional[string]          `json:"notes"`
}

// ListEntitiesInput mirrors the query string of the list endpoint.
type ListEntitiesInput struct {
	EntityType  string
	WarehouseID *uuid.UUID
	ParentID    *uuid.UUID
	RootOnly    bool
	Status      string
	Search      string
	Offset      int
	Limit       int
}

func (in ListEntitiesInput) filter() repository.EntityFilter {
	return repository.EntityFilter{
		EntityType:  in.EntityType,
		WarehouseID: in.WarehouseID,
		ParentID:    in.ParentID,
		RootOnly:    in.RootOnly,
		Status:      in.Status,
		Search:      in.Search,
		Page:        repository.Page{Offset: in.Offset, Limit: in.Limit},
	}
}
