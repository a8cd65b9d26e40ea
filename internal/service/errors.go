package service

import (
	"errors"
	"strings"

	"go-inventory-tree/pkg/apperror"
	"go-inventory-tree/pkg/database"

	"gorm.io/gorm"
)

// notFoundOr maps gorm's record-not-found onto a NotFound error and
// anything else onto Unexpected.
func notFoundOr(err error, code, what string, key interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(code, what+" not found").WithParams(map[string]interface{}{"id": key})
	}
	return apperror.Unexpected(err, "load "+what)
}

// storage wraps a raw storage error. Classified errors pass through.
func storage(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		if strings.Contains(database.UniqueConstraint(err), "barcode") {
			return apperror.Wrap(err, apperror.KindConflict, apperror.CodeDuplicateBarcode, "Entity barcode already exists")
		}
		return apperror.Wrap(err, apperror.KindConflict, apperror.CodeConflict, "The change conflicts with a concurrent update; retry the request")
	}
	return apperror.Unexpected(err, op)
}
