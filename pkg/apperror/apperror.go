// Package apperror defines the error taxonomy shared by services and handlers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError. Handlers derive the HTTP status from it.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindConflict
	KindValidation
	KindPreconditionFailed
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unexpected"
	}
}

// HTTPStatus maps the kind onto a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindPreconditionFailed:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Machine-readable codes.
const (
	CodeEntityNotFound       = "ENTITY_NOT_FOUND"
	CodeEntityTypeNotFound   = "ENTITY_TYPE_NOT_FOUND"
	CodeWarehouseNotFound    = "WAREHOUSE_NOT_FOUND"
	CodeParentNotFound       = "PARENT_NOT_FOUND"
	CodeRelationNotFound     = "RELATION_NOT_FOUND"
	CodePatternNotFound      = "SUPPLIER_PATTERN_NOT_FOUND"
	CodeSettingNotFound      = "SETTING_NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeCheckNotFound        = "INVENTORY_CHECK_NOT_FOUND"
	CodeCheckItemNotFound    = "CHECK_ITEM_NOT_FOUND"
	CodeCheckNotInProgress   = "CHECK_NOT_IN_PROGRESS"
	CodeCheckNotCompleted    = "CHECK_NOT_COMPLETED"
	CodeCorrectionsApplied   = "CORRECTIONS_ALREADY_APPLIED"
	CodeDuplicateBarcode     = "DUPLICATE_BARCODE"
	CodeDuplicateTypeCode    = "DUPLICATE_TYPE_CODE"
	CodeDuplicateUser        = "DUPLICATE_USER"
	CodeConflict             = "CONFLICT"
	CodeInvalidEntityType    = "INVALID_ENTITY_TYPE"
	CodeContainment          = "CONTAINMENT_VIOLATION"
	CodeInvalidTemplate      = "INVALID_TEMPLATE"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeMissingField         = "MISSING_REQUIRED_FIELD"
	CodeHasChildren          = "HAS_CHILDREN"
	CodeNegativeResult       = "NEGATIVE_RESULT"
	CodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
	CodeSplitQuantity        = "SPLIT_QUANTITY_TOO_LARGE"
	CodeSelfParent           = "SELF_PARENTING"
	CodeCycle                = "PARENT_CYCLE"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeBuiltinType          = "BUILTIN_TYPE"
	CodeTypeInUse            = "TYPE_IN_USE"
	CodeWarehouseInUse       = "WAREHOUSE_NOT_EMPTY"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInsufficientRole     = "INSUFFICIENT_ROLE"
	CodeStorage              = "STORAGE_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError is a classified error carrying enough context to render a message.
type AppError struct {
	Kind    Kind                   `json:"-"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithParams attaches structured context (field name, offending value).
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	if e.Params == nil {
		e.Params = make(map[string]interface{}, len(params))
	}
	for k, v := range params {
		e.Params[k] = v
	}
	return e
}

// Is matches on kind and code so callers can compare against a template:
// errors.Is(err, apperror.NotFound(apperror.CodeEntityNotFound, "")).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Wrap(err error, kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, Err: err}
}

func NotFound(code, message string) *AppError {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *AppError {
	return New(KindConflict, code, message)
}

func Validation(code, message string) *AppError {
	return New(KindValidation, code, message)
}

func PreconditionFailed(code, message string) *AppError {
	return New(KindPreconditionFailed, code, message)
}

func Unauthorized(code, message string) *AppError {
	return New(KindUnauthorized, code, message)
}

func Forbidden(code, message string) *AppError {
	return New(KindForbidden, code, message)
}

// Unexpected wraps a storage or I/O failure.
func Unexpected(err error, message string) *AppError {
	return Wrap(err, KindUnexpected, CodeStorage, message)
}

// As extracts an AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindUnexpected
}

// IsDomain reports whether err is a classified, non-storage error.
func IsDomain(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind != KindUnexpected
}
