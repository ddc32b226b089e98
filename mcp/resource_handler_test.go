package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/praxon-labs/mcpbridge/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configResource is a fully described resource capturing the params it is
// read with.
type configResource struct {
	lastParams map[string]interface{}
}

func (r *configResource) URI() string      { return "config://app/settings" }
func (r *configResource) MimeType() string { return "application/json" }

func (r *configResource) Description() string {
	return "Application settings as JSON"
}

func (r *configResource) Metadata() map[string]interface{} {
	return map[string]interface{}{"region": "eu-west-1", "version": 3}
}

func (r *configResource) Read(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	r.lastParams = params
	return `{"feature_flags":{}}`, nil
}

// brokenResource fails on every read.
type brokenResource struct{}

func (brokenResource) URI() string { return "broken://res" }

func (brokenResource) Read(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return nil, errors.New("disk unavailable")
}

func newResourceHandlerWith(t *testing.T, register func(r *InMemoryRegistry)) *ResourceHandler {
	t.Helper()
	registry := NewInMemoryRegistry()
	if register != nil {
		register(registry)
	}
	return NewResourceHandler(registry, observability.NewNullLogger(), false)
}

func TestResourceHandlerSupportedMethods(t *testing.T) {
	h := newResourceHandlerWith(t, nil)

	assert.Equal(t, []string{"resources/list", "resources/read"}, h.SupportedMethods())
	assert.True(t, h.SupportsMethod("resources/read"))
	assert.False(t, h.SupportsMethod("tools/call"))

	_, err := h.Handle(context.Background(), "resources/subscribe", map[string]interface{}{}, RequestContext{})
	require.Error(t, err)
	assert.Equal(t, "Unsupported method: resources/subscribe", err.(*ProtocolError).Message)
}

func TestResourcesListDefinitions(t *testing.T) {
	h := newResourceHandlerWith(t, func(r *InMemoryRegistry) {
		require.NoError(t, r.RegisterResource("settings", &configResource{}, nil))
		require.NoError(t, r.RegisterResource("notes", ResourceFunc(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "some notes", nil
		}), nil))
	})

	result, err := h.Handle(context.Background(), "resources/list", map[string]interface{}{}, RequestContext{})
	require.NoError(t, err)

	resources := result.(map[string]interface{})["resources"].([]interface{})
	require.Len(t, resources, 2)

	settings := resources[0].(map[string]interface{})
	assert.Equal(t, "config://app/settings", settings["uri"])
	assert.Equal(t, "settings", settings["name"])
	assert.Equal(t, "Application settings as JSON", settings["description"])
	assert.Equal(t, "application/json", settings["mimeType"])
	// Metadata keys land at the top level, not under a metadata key.
	assert.Equal(t, "eu-west-1", settings["region"])
	assert.Equal(t, 3, settings["version"])
	_, nested := settings["metadata"]
	assert.False(t, nested)

	notes := resources[1].(map[string]interface{})
	assert.Equal(t, "resource://notes", notes["uri"])
	assert.Equal(t, "Resource: ResourceFunc", notes["description"])
	assert.Equal(t, "text/plain", notes["mimeType"])
}

func TestResourcesReadByURI(t *testing.T) {
	res := &configResource{}
	h := newResourceHandlerWith(t, func(r *InMemoryRegistry) {
		require.NoError(t, r.RegisterResource("settings", res, nil))
	})

	result, err := h.Handle(context.Background(), "resources/read", map[string]interface{}{
		"uri":     "config://app/settings",
		"section": "features",
	}, RequestContext{})
	require.NoError(t, err)

	contents := result.(map[string]interface{})["contents"].([]interface{})
	require.Len(t, contents, 1)
	block := contents[0].(map[string]interface{})
	assert.Equal(t, "text", block["type"])
	assert.Equal(t, `{"feature_flags":{}}`, block["text"])

	// Extra params flow through to the handler, minus the uri itself.
	assert.Equal(t, map[string]interface{}{"section": "features"}, res.lastParams)
}

func TestResourcesReadNotFound(t *testing.T) {
	h := newResourceHandlerWith(t, nil)

	_, err := h.Handle(context.Background(), "resources/read",
		map[string]interface{}{"uri": "test://missing"}, RequestContext{})
	require.Error(t, err)
	pe := err.(*ProtocolError)
	assert.Equal(t, ErrCodeMethodNotFound, pe.Code)
	assert.Equal(t, "Resource not found: test://missing", pe.Message)
}

func TestResourcesReadMissingURI(t *testing.T) {
	h := newResourceHandlerWith(t, nil)

	_, err := h.Handle(context.Background(), "resources/read", map[string]interface{}{}, RequestContext{})
	require.Error(t, err)
	pe := err.(*ProtocolError)
	assert.Equal(t, ErrCodeInvalidParams, pe.Code)
	assert.Contains(t, pe.Message, "Missing required parameters: uri")
}

func TestResourcesReadFailureIsSoft(t *testing.T) {
	h := newResourceHandlerWith(t, func(r *InMemoryRegistry) {
		require.NoError(t, r.RegisterResource("broken", brokenResource{}, nil))
		require.NoError(t, r.RegisterResource("inert", struct{}{}, nil))
	})

	result, err := h.Handle(context.Background(), "resources/read",
		map[string]interface{}{"uri": "broken://res"}, RequestContext{})
	require.NoError(t, err, "read failures must not become protocol errors")
	errObj := result.(map[string]interface{})["error"].(map[string]interface{})
	assert.Equal(t, ErrCodeInternal, errObj["code"])
	assert.Equal(t, "Failed to read resource: disk unavailable", errObj["message"])

	result, err = h.Handle(context.Background(), "resources/read",
		map[string]interface{}{"uri": "resource://inert"}, RequestContext{})
	require.NoError(t, err)
	errObj = result.(map[string]interface{})["error"].(map[string]interface{})
	assert.Equal(t, ErrCodeInternal, errObj["code"])
	assert.Equal(t, "Resource is not readable", errObj["message"])
}

func TestFormatResourceContents(t *testing.T) {
	h := newResourceHandlerWith(t, nil)

	// Pre-shaped content blocks pass through untouched.
	shaped := []interface{}{
		map[string]interface{}{"type": "text", "text": "one"},
		map[string]interface{}{"type": "resource", "resource": "x"},
	}
	assert.Equal(t, shaped, h.formatResourceContents(shaped))

	// Plain lists are wrapped element by element.
	wrapped := h.formatResourceContents([]interface{}{"one", float64(2)})
	require.Len(t, wrapped, 2)
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "one"}, wrapped[0])
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "2"}, wrapped[1])

	// Scalars become a single text block.
	single := h.formatResourceContents("hello")
	require.Len(t, single, 1)
	assert.Equal(t, "hello", single[0].(map[string]interface{})["text"])

	// Non-scalars are pretty-printed JSON.
	pretty := h.formatResourceContents(map[string]interface{}{"k": "v"})
	require.Len(t, pretty, 1)
	assert.Contains(t, pretty[0].(map[string]interface{})["text"], "\n    \"k\": \"v\"")
}
