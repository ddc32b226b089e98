package mcp

import (
	"errors"
	"testing"

	"github.com/praxon-labs/mcpbridge/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBaseHandler(debug bool) baseHandler {
	return newBaseHandler("TestHandler", NewInMemoryRegistry(), observability.NewNullLogger(), debug)
}

func TestValidateRequiredParams(t *testing.T) {
	h := newTestBaseHandler(false)

	err := h.validateRequiredParams(map[string]interface{}{"a": 1, "b": 2}, []string{"a", "b"})
	assert.NoError(t, err)

	err = h.validateRequiredParams(map[string]interface{}{"c": 3}, []string{"a", "b", "c"})
	require.Error(t, err)
	pe, ok := err.(*ProtocolError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, pe.Code)
	assert.Equal(t, "Missing required parameters: a, b", pe.Message)

	assert.NoError(t, h.validateRequiredParams(map[string]interface{}{}, nil))
}

func TestValidateRequest(t *testing.T) {
	h := newTestBaseHandler(false)
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	}

	assert.NoError(t, h.validateRequest(map[string]interface{}{"count": 3}, schema, nil))

	err := h.validateRequest(map[string]interface{}{"count": "three"}, schema, nil)
	require.Error(t, err)
	pe := err.(*ProtocolError)
	assert.Equal(t, ErrCodeInvalidParams, pe.Code)
	assert.Contains(t, pe.Message, "Invalid parameters: ")

	err = h.validateRequest(map[string]interface{}{"count": "three"}, schema,
		map[string]string{"count": "count must be a whole number"})
	require.Error(t, err)
	assert.Equal(t, "Invalid parameters: count must be a whole number", err.(*ProtocolError).Message)
}

func TestCreateSuccessResponse(t *testing.T) {
	h := newTestBaseHandler(false)
	result := map[string]interface{}{"tools": []interface{}{}}

	plain := h.createSuccessResponse(result, RequestContext{})
	assert.Equal(t, result, plain)
	_, hasMeta := plain.(map[string]interface{})["_meta"]
	assert.False(t, hasMeta)

	withMeta := h.createSuccessResponse(result, RequestContext{AddMetadata: true, RequestID: "req-1"})
	meta, ok := withMeta.(map[string]interface{})["_meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "TestHandler", meta["handler"])
	assert.NotEmpty(t, meta["timestamp"])
	assert.Equal(t, "req-1", meta["request_id"])

	// Non-object results are returned untouched.
	scalar := h.createSuccessResponse("done", RequestContext{AddMetadata: true})
	assert.Equal(t, "done", scalar)
}

func TestCreateErrorResponse(t *testing.T) {
	h := newTestBaseHandler(false)

	resp := h.createErrorResponse("boom", ErrCodeInternal, nil)
	errObj := resp["error"].(map[string]interface{})
	assert.Equal(t, ErrCodeInternal, errObj["code"])
	assert.Equal(t, "boom", errObj["message"])
	_, hasData := errObj["data"]
	assert.False(t, hasData)

	resp = h.createErrorResponse("boom", ErrCodeInvalidParams, map[string]interface{}{"field": "x"})
	errObj = resp["error"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"field": "x"}, errObj["data"])
}

func TestHandleException(t *testing.T) {
	h := newTestBaseHandler(false)

	// ProtocolError passes through untouched.
	resp := h.handleException(NewProtocolError(ErrCodeMethodNotFound, "Tool not found: x", "tools/call", nil), "tools/call")
	errObj := resp["error"].(map[string]interface{})
	assert.Equal(t, ErrCodeMethodNotFound, errObj["code"])
	assert.Equal(t, "Tool not found: x", errObj["message"])

	// Unexpected errors are opaque outside debug mode.
	resp = h.handleException(errors.New("database exploded"), "tools/call")
	errObj = resp["error"].(map[string]interface{})
	assert.Equal(t, ErrCodeInternal, errObj["code"])
	assert.Equal(t, "Internal server error", errObj["message"])
	_, hasData := errObj["data"]
	assert.False(t, hasData)

	debugHandler := newTestBaseHandler(true)
	resp = debugHandler.handleException(errors.New("database exploded"), "tools/call")
	errObj = resp["error"].(map[string]interface{})
	data, ok := errObj["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "*errors.errorString", data["exception_type"])
	assert.NotEmpty(t, data["trace"])
}

func TestSanitizeForLogging(t *testing.T) {
	h := newTestBaseHandler(false)

	params := map[string]interface{}{
		"username":     "alice",
		"Password":     "hunter2",
		"api_key":      "abc123",
		"AUTH_HEADER":  "Bearer x",
		"clientSecret": "shh",
		"credentials":  map[string]interface{}{"inner": "x"},
		"count":        5,
	}

	sanitized := h.sanitizeForLogging(params)
	assert.Equal(t, "alice", sanitized["username"])
	assert.Equal(t, 5, sanitized["count"])
	assert.Equal(t, "[REDACTED]", sanitized["Password"])
	assert.Equal(t, "[REDACTED]", sanitized["api_key"])
	assert.Equal(t, "[REDACTED]", sanitized["AUTH_HEADER"])
	assert.Equal(t, "[REDACTED]", sanitized["clientSecret"])
	assert.Equal(t, "[REDACTED]", sanitized["credentials"])

	// The original is never mutated.
	assert.Equal(t, "hunter2", params["Password"])
}

func TestFormatContent(t *testing.T) {
	h := newTestBaseHandler(false)

	block := h.formatContent("hello", "text")
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "hello"}, block)

	block = h.formatContent(map[string]interface{}{"a": 1}, "text")
	assert.Equal(t, "text", block["type"])
	assert.Equal(t, `{"a":1}`, block["text"])

	block = h.formatContent(map[string]interface{}{"a": 1}, "json")
	assert.Equal(t, "text", block["type"])
	assert.Contains(t, block["text"], "\n    \"a\": 1")

	block = h.formatContent(42, "json")
	assert.Equal(t, "42", block["text"])

	block = h.formatContent(map[string]interface{}{"uri": "x"}, "resource")
	assert.Equal(t, "resource", block["type"])
	assert.Equal(t, map[string]interface{}{"uri": "x"}, block["resource"])

	// Unknown content types degrade to text behaviour.
	block = h.formatContent("raw", "unknown-type")
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "raw"}, block)
}
