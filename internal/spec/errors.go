package spec

import (
	"errors"
	"fmt"
)

// Envelope error kinds surfaced as error_type.
const (
	KindConfiguration = "ConfigurationError"
	KindUnresolved    = "UnresolvedDependency"
	KindDataNotFound  = "DataNotFound"
	KindUnknownOp     = "UnknownOperation"
	KindTransform     = "TransformError"
	KindStorage       = "StorageError"
	KindInternal      = "InternalError"
)

type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func Errorf(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf maps an error chain to its envelope error_type.
func KindOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
