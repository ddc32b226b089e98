package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	pe := NewProtocolError(ErrCodeMethodNotFound, "Tool not found: x", "tools/call",
		map[string]interface{}{"hint": "register it"})

	code, message, data := translateError(pe, false)
	assert.Equal(t, ErrCodeMethodNotFound, code)
	assert.Equal(t, "Tool not found: x", message)
	assert.Equal(t, map[string]interface{}{"hint": "register it"}, data)

	// Wrapped ProtocolError still carries its own code and message.
	code, message, _ = translateError(fmt.Errorf("dispatch: %w", pe), false)
	assert.Equal(t, ErrCodeMethodNotFound, code)
	assert.Equal(t, "Tool not found: x", message)

	// Unknown errors are opaque outside debug mode.
	code, message, data = translateError(errors.New("database exploded"), false)
	assert.Equal(t, ErrCodeInternal, code)
	assert.Equal(t, "Internal server error", message)
	assert.Nil(t, data)

	// Debug mode attaches the diagnostic payload.
	_, _, data = translateError(errors.New("database exploded"), true)
	payload, ok := data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "*errors.errorString", payload["exception_type"])
	assert.NotEmpty(t, payload["trace"])
}
