package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/praxon-labs/mcpbridge/observability"
)

// Request represents a JSON-RPC request message. The id is kept as raw JSON
// so string, integer and null ids round-trip byte-exact.
type Request struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Method  string           `json:"method"`
	Params  json.RawMessage  `json:"params"`
}

// Response represents a JSON-RPC response message.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Result  interface{}      `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Notification represents a JSON-RPC notification message.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCHandler is the outermost layer of the dispatch core: it parses raw
// JSON text, validates the envelope, hands the call to the Dispatcher and
// serializes the result or error. It holds no per-request state.
type JSONRPCHandler struct {
	dispatcher *Dispatcher
	logger     observability.Logger
	debug      bool
}

// NewJSONRPCHandler creates a JSONRPCHandler in front of the dispatcher.
func NewJSONRPCHandler(dispatcher *Dispatcher, logger observability.Logger, debug bool) *JSONRPCHandler {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &JSONRPCHandler{
		dispatcher: dispatcher,
		logger:     logger,
		debug:      debug,
	}
}

// ProcessRequest handles one raw JSON-RPC message and returns the response
// bytes. Notifications produce no response and return nil.
func (h *JSONRPCHandler) ProcessRequest(ctx context.Context, raw []byte) []byte {
	if !json.Valid(raw) {
		return h.marshalError(nil, ErrCodeParseError, "Parse error", nil)
	}

	// Decoding keeps going past field type errors, so a parseable id is
	// echoed even when the envelope itself is rejected.
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return h.marshalError(req.ID, ErrCodeInvalidRequest, "Invalid Request", nil)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return h.marshalError(req.ID, ErrCodeInvalidRequest, "Invalid Request", nil)
	}

	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		h.handleNotification(&Notification{JSONRPC: req.JSONRPC, Method: req.Method, Params: req.Params})
		return nil
	}

	params := map[string]interface{}{}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return h.marshalError(req.ID, ErrCodeInvalidParams, "Invalid params", nil)
		}
	}

	rc := RequestContext{RequestID: requestID(req.ID)}

	result, err := h.dispatcher.Dispatch(ctx, req.Method, params, rc)
	if err != nil {
		return h.errorResponse(req.ID, req.Method, err)
	}
	return h.marshalResponse(&Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// errorResponse maps a dispatch error onto the wire through translateError,
// the same translation the handler layer uses.
func (h *JSONRPCHandler) errorResponse(id *json.RawMessage, method string, err error) []byte {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		h.logger.WithErr(err).WithFields(map[string]interface{}{
			"method": method,
		}).Error("unexpected error during dispatch")
	}

	code, message, data := translateError(err, h.debug)
	return h.marshalError(id, code, message, data)
}

func (h *JSONRPCHandler) marshalResponse(resp *Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		h.logger.WithErr(err).Error("failed to marshal response")
		return h.marshalError(resp.ID, ErrCodeInternal, "Internal error: failed to marshal response", nil)
	}
	return out
}

func (h *JSONRPCHandler) marshalError(id *json.RawMessage, code int, message string, data interface{}) []byte {
	out, err := json.Marshal(&Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
	if err != nil {
		// Data was not serializable; the bare error still has to go out.
		h.logger.WithErr(err).Error("failed to marshal error response")
		out, _ = json.Marshal(&Response{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &Error{Code: code, Message: message},
		})
	}
	return out
}

func (h *JSONRPCHandler) handleNotification(n *Notification) {
	switch n.Method {
	case "notifications/initialized":
		h.logger.Debug("client initialized")
	case "notifications/cancelled":
		var params struct {
			RequestID json.RawMessage `json:"requestId"`
			Reason    string          `json:"reason"`
		}
		if err := json.Unmarshal(n.Params, &params); err == nil {
			h.logger.WithFields(map[string]interface{}{
				"requestId": string(params.RequestID),
				"reason":    params.Reason,
			}).Debug("cancellation requested")
		}
	default:
		h.logger.WithFields(map[string]interface{}{
			"method": n.Method,
		}).Debug("unhandled notification")
	}
}

// requestID derives the request context id from the wire id, or generates
// one for id-less messages so log lines stay correlatable.
func requestID(id *json.RawMessage) string {
	if id == nil {
		return uuid.NewString()
	}
	return strings.Trim(string(*id), `"`)
}
