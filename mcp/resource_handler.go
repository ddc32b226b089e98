package mcp

import (
	"context"
	"fmt"

	"github.com/praxon-labs/mcpbridge/observability"
)

// ResourceHandler owns the resources/* method family.
type ResourceHandler struct {
	baseHandler
}

// NewResourceHandler creates a ResourceHandler reading from the given
// registry.
func NewResourceHandler(registry Registry, logger observability.Logger, debug bool) *ResourceHandler {
	return &ResourceHandler{
		baseHandler: newBaseHandler("ResourceHandler", registry, logger, debug),
	}
}

// SupportedMethods returns the methods this handler owns.
func (h *ResourceHandler) SupportedMethods() []string {
	return []string{"resources/list", "resources/read"}
}

// SupportsMethod reports whether the handler owns the method.
func (h *ResourceHandler) SupportsMethod(method string) bool {
	return method == "resources/list" || method == "resources/read"
}

// Handle dispatches a resources/* method.
func (h *ResourceHandler) Handle(ctx context.Context, method string, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	h.logDebug("handling "+method, map[string]interface{}{"params": h.sanitizeForLogging(params)})

	switch method {
	case "resources/list":
		return h.listResources(params, rc)
	case "resources/read":
		return h.readResource(ctx, params, rc)
	default:
		return nil, unsupportedMethodError(method)
	}
}

func (h *ResourceHandler) listResources(params map[string]interface{}, rc RequestContext) (interface{}, error) {
	cursor, err := h.cursorFromParams(params)
	if err != nil {
		return nil, err
	}

	entries := h.registry.All(KindResource)
	definitions := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		definitions = append(definitions, h.buildResourceDefinition(entry.Name, entry.Handler))
	}

	start, end, next := pageBounds(len(definitions), cursor)
	result := map[string]interface{}{
		"resources": definitions[start:end],
	}
	if next != "" {
		result["nextCursor"] = next
	}
	return h.createSuccessResponse(result, rc), nil
}

// buildResourceDefinition computes the list entry for one registered
// resource, falling back field by field when a metadata accessor panics.
// Extra metadata keys are flattened into the definition itself; core fields
// are never overridden by them.
func (h *ResourceHandler) buildResourceDefinition(name string, handler interface{}) map[string]interface{} {
	def := map[string]interface{}{
		"uri":         "resource://" + name,
		"name":        name,
		"description": fmt.Sprintf("Resource: %s", handlerTypeName(handler)),
		"mimeType":    "text/plain",
	}

	h.withMetadataGuard(name, "uri", func() {
		if u, ok := handler.(URIProvider); ok {
			if uri := u.URI(); uri != "" {
				def["uri"] = uri
			}
		}
	})
	h.withMetadataGuard(name, "description", func() {
		if d, ok := handler.(Describable); ok {
			def["description"] = d.Description()
		}
	})
	h.withMetadataGuard(name, "mimeType", func() {
		if m, ok := handler.(MimeTypeProvider); ok {
			if mt := m.MimeType(); mt != "" {
				def["mimeType"] = mt
			}
		}
	})
	h.withMetadataGuard(name, "metadata", func() {
		if mp, ok := handler.(MetadataProvider); ok {
			for k, v := range mp.Metadata() {
				if _, taken := def[k]; !taken {
					def[k] = v
				}
			}
		}
	})
	return def
}

// resourceURI computes the URI a registered resource is addressed by.
func (h *ResourceHandler) resourceURI(name string, handler interface{}) string {
	uri := "resource://" + name
	h.withMetadataGuard(name, "uri", func() {
		if u, ok := handler.(URIProvider); ok {
			if v := u.URI(); v != "" {
				uri = v
			}
		}
	})
	return uri
}

func (h *ResourceHandler) readResource(ctx context.Context, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	if err := h.validateRequiredParams(params, []string{"uri"}); err != nil {
		return nil, err
	}
	uri, ok := params["uri"].(string)
	if !ok {
		return nil, invalidParamsError("resources/read", "Invalid parameters: uri must be a string")
	}

	// Resources are addressed by URI, not by registered name.
	var handler interface{}
	found := false
	for _, entry := range h.registry.All(KindResource) {
		if h.resourceURI(entry.Name, entry.Handler) == uri {
			handler = entry.Handler
			found = true
			break
		}
	}
	if !found {
		return nil, methodNotFoundError("resources/read", "Resource not found: "+uri)
	}

	// Everything except the uri flows through to the handler.
	readParams := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != "uri" {
			readParams[k] = v
		}
	}

	result, err := invokeResource(ctx, handler, readParams)
	if err != nil {
		// Soft failure, mirroring tools/call: the client sees an
		// error-shaped payload inside a successful response.
		h.logWarning("resource read failed", map[string]interface{}{
			"uri":   uri,
			"error": err.Error(),
		})
		if err == errResourceNotReadable {
			return h.createErrorResponse(errResourceNotReadable.Error(), ErrCodeInternal, nil), nil
		}
		return h.createErrorResponse("Failed to read resource: "+err.Error(), ErrCodeInternal, nil), nil
	}

	return h.createSuccessResponse(map[string]interface{}{
		"contents": h.formatResourceContents(result),
	}, rc), nil
}

// formatResourceContents normalizes a handler's return value into a list of
// content blocks. Already-shaped block lists pass through unchanged; plain
// lists are wrapped element by element; anything else becomes one text
// block.
func (h *ResourceHandler) formatResourceContents(result interface{}) []interface{} {
	if list, ok := result.([]interface{}); ok {
		if len(list) > 0 && allContentBlocks(list) {
			return list
		}
		blocks := make([]interface{}, 0, len(list))
		for _, item := range list {
			blocks = append(blocks, map[string]interface{}{
				"type": "text",
				"text": stringifyContent(item),
			})
		}
		return blocks
	}

	if s, ok := result.(string); ok {
		return []interface{}{map[string]interface{}{"type": "text", "text": s}}
	}
	return []interface{}{map[string]interface{}{"type": "text", "text": jsonEncode(result)}}
}

func allContentBlocks(list []interface{}) bool {
	for _, item := range list {
		block, ok := item.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := block["type"]; !ok {
			return false
		}
	}
	return true
}
