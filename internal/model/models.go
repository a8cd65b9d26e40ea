package model

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Warehouse{},
		&EntityType{},
		&Entity{},
		&EntityRelation{},
		&EntityHistory{},
		&SupplierPattern{},
		&Setting{},
		&InventoryCheck{},
		&CheckItem{},
	}
}
