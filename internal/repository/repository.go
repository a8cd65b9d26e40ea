package repository

import (
	"go-inventory-tree/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds a row lock where the dialect has one.
func forUpdate(db *gorm.DB) *gorm.DB {
	if database.SupportsRowLocks(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// Page is an offset window. Zero Limit means the repository default.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(db *gorm.DB, defaultLimit, maxLimit int) *gorm.DB {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return db.Offset(offset).Limit(limit)
}

func sharedLock(db *gorm.DB) *gorm.DB {
	if database.SupportsRowLocks(db) {
		return db.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return db
}
