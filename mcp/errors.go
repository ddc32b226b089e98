package mcp

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// JSON-RPC 2.0 error codes. These values are fixed by the protocol and
// clients match on them, so they must not drift.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// ProtocolError is the single typed error used for protocol-level failures.
// It is raised anywhere inside the dispatch core and translated into a
// JSON-RPC error object at the outermost layer.
type ProtocolError struct {
	Code    int
	Message string
	Method  string
	Data    interface{}
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// NewProtocolError creates a ProtocolError for the given method.
func NewProtocolError(code int, message, method string, data interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: message,
		Method:  method,
		Data:    data,
	}
}

func methodNotFoundError(method, message string) *ProtocolError {
	return NewProtocolError(ErrCodeMethodNotFound, message, method, nil)
}

func invalidParamsError(method, message string) *ProtocolError {
	return NewProtocolError(ErrCodeInvalidParams, message, method, nil)
}

func unsupportedMethodError(method string) *ProtocolError {
	return methodNotFoundError(method, fmt.Sprintf("Unsupported method: %s", method))
}

// translateError maps a dispatch error onto a wire error code, message and
// data. ProtocolError carries its own, wrapped or not; anything else is an
// opaque internal error, with diagnostics attached only in debug mode. Both
// the handler layer and the JSON-RPC layer translate through here.
func translateError(err error, debugMode bool) (int, string, interface{}) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code, pe.Message, pe.Data
	}

	var data interface{}
	if debugMode {
		data = map[string]interface{}{
			"exception_type": fmt.Sprintf("%T", err),
			"trace":          string(debug.Stack()),
		}
	}
	return ErrCodeInternal, "Internal server error", data
}
