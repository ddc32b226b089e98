package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/praxon-labs/mcpbridge/observability"
	"github.com/xeipuuv/gojsonschema"
)

// RequestContext carries per-request values handed down by the transport
// layer. The dispatch core never stores it between calls.
type RequestContext struct {
	RequestID   string
	ClientID    string
	AddMetadata bool
}

// sensitiveKeyMarkers are matched case-insensitively as substrings of
// parameter keys; matching values are redacted before logging.
var sensitiveKeyMarkers = []string{"password", "token", "secret", "key", "auth", "credential"}

// baseHandler carries the request-lifecycle plumbing shared by the three
// concrete handlers: validation, response shaping, exception translation
// and logging. It is stateless apart from the debug flag and safe for
// concurrent reuse.
type baseHandler struct {
	name     string
	registry Registry
	logger   observability.Logger
	debug    bool
}

func newBaseHandler(name string, registry Registry, logger observability.Logger, debug bool) baseHandler {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	h := baseHandler{
		name:     name,
		registry: registry,
		logger:   logger,
		debug:    debug,
	}
	if debug {
		h.logDebug("handler initialized", nil)
	}
	return h
}

// SetDebug toggles debug behaviour after construction.
func (h *baseHandler) SetDebug(debug bool) {
	h.debug = debug
}

// validateRequiredParams fails with an invalid-params error when any of the
// listed keys is absent.
func (h *baseHandler) validateRequiredParams(params map[string]interface{}, required []string) error {
	var missing []string
	for _, key := range required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return invalidParamsError("", "Missing required parameters: "+strings.Join(missing, ", "))
	}
	return nil
}

// validateRequest validates params against a JSON schema. messages overrides
// the default text per field.
func (h *baseHandler) validateRequest(params map[string]interface{}, schema map[string]interface{}, messages map[string]string) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return invalidParamsError("", "Invalid parameters: "+err.Error())
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, desc := range result.Errors() {
		if custom, ok := messages[desc.Field()]; ok {
			msgs = append(msgs, custom)
			continue
		}
		msgs = append(msgs, desc.String())
	}
	sort.Strings(msgs)
	return invalidParamsError("", "Invalid parameters: "+strings.Join(msgs, "; "))
}

// createSuccessResponse returns the result unchanged unless metadata was
// requested, in which case a _meta object is merged into map results.
func (h *baseHandler) createSuccessResponse(result interface{}, rc RequestContext) interface{} {
	if !rc.AddMetadata {
		return result
	}

	resultMap, ok := result.(map[string]interface{})
	if !ok {
		h.logDebug("metadata requested but result is not an object, returning as-is", nil)
		return result
	}

	meta := map[string]interface{}{
		"handler":   h.name,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if rc.RequestID != "" {
		meta["request_id"] = rc.RequestID
	}

	out := make(map[string]interface{}, len(resultMap)+1)
	for k, v := range resultMap {
		out[k] = v
	}
	out["_meta"] = meta
	return out
}

// createErrorResponse builds the error-shaped payload used for soft
// failures. The data key is omitted entirely when data is nil.
func (h *baseHandler) createErrorResponse(message string, code int, data interface{}) map[string]interface{} {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		errObj["data"] = data
	}
	return map[string]interface{}{"error": errObj}
}

// handleException translates any error into an error-shaped payload via
// translateError. Unexpected errors are logged here before becoming opaque.
func (h *baseHandler) handleException(err error, method string) map[string]interface{} {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		h.logError("unexpected error while handling "+method, map[string]interface{}{"error": err.Error()})
	}

	code, message, data := translateError(err, h.debug)
	return h.createErrorResponse(message, code, data)
}

// sanitizeForLogging returns a copy of params with sensitive values
// redacted. Only used for log output, never for responses.
func (h *baseHandler) sanitizeForLogging(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
		lower := strings.ToLower(k)
		for _, marker := range sensitiveKeyMarkers {
			if strings.Contains(lower, marker) {
				out[k] = "[REDACTED]"
				break
			}
		}
	}
	return out
}

// formatContent normalizes arbitrary handler output into an MCP content
// block. Unknown content types fall back to text behaviour.
func (h *baseHandler) formatContent(content interface{}, contentType string) map[string]interface{} {
	switch contentType {
	case "json":
		return map[string]interface{}{
			"type": "text",
			"text": jsonEncode(content),
		}
	case "resource":
		return map[string]interface{}{
			"type":     "resource",
			"resource": content,
		}
	default:
		return map[string]interface{}{
			"type": "text",
			"text": stringifyContent(content),
		}
	}
}

// stringifyContent keeps strings as-is and renders everything else as
// compact single-line JSON.
func stringifyContent(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(raw)
}

// jsonEncode renders objects and arrays with 4-space indentation and
// scalars compactly.
func jsonEncode(content interface{}) string {
	switch content.(type) {
	case map[string]interface{}, []interface{}:
		raw, err := json.MarshalIndent(content, "", "    ")
		if err != nil {
			return fmt.Sprintf("%v", content)
		}
		return string(raw)
	default:
		raw, err := json.Marshal(content)
		if err != nil {
			return fmt.Sprintf("%v", content)
		}
		return string(raw)
	}
}

// cursorFromParams reads and validates the optional cursor parameter.
func (h *baseHandler) cursorFromParams(params map[string]interface{}) (pageCursor, error) {
	raw, ok := params["cursor"]
	if !ok {
		return defaultCursor(), nil
	}
	s, ok := raw.(string)
	if !ok {
		return pageCursor{}, invalidParamsError("", "Invalid parameters: cursor must be a string")
	}
	c, err := decodeCursor(s)
	if err != nil {
		return pageCursor{}, invalidParamsError("", "Invalid parameters: "+err.Error())
	}
	return c, nil
}

// Logging helpers. Every message carries the concrete handler's name;
// debug-level logging is a no-op unless the debug flag is set.

func (h *baseHandler) logDebug(msg string, fields map[string]interface{}) {
	if !h.debug {
		return
	}
	h.withFields(fields).Debug("[" + h.name + "] " + msg)
}

func (h *baseHandler) logInfo(msg string, fields map[string]interface{}) {
	h.withFields(fields).Info("[" + h.name + "] " + msg)
}

func (h *baseHandler) logWarning(msg string, fields map[string]interface{}) {
	h.withFields(fields).Warn("[" + h.name + "] " + msg)
}

func (h *baseHandler) logError(msg string, fields map[string]interface{}) {
	h.withFields(fields).Error("[" + h.name + "] " + msg)
}

func (h *baseHandler) withFields(fields map[string]interface{}) observability.Logger {
	if len(fields) == 0 {
		return h.logger
	}
	return h.logger.WithFields(fields)
}
