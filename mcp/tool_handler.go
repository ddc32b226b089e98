package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/praxon-labs/mcpbridge/observability"
	"github.com/xeipuuv/gojsonschema"
)

// ToolHandler owns the tools/* method family.
type ToolHandler struct {
	baseHandler
}

// NewToolHandler creates a ToolHandler reading from the given registry.
func NewToolHandler(registry Registry, logger observability.Logger, debug bool) *ToolHandler {
	return &ToolHandler{
		baseHandler: newBaseHandler("ToolHandler", registry, logger, debug),
	}
}

// SupportedMethods returns the methods this handler owns.
func (h *ToolHandler) SupportedMethods() []string {
	return []string{"tools/list", "tools/call"}
}

// SupportsMethod reports whether the handler owns the method.
func (h *ToolHandler) SupportsMethod(method string) bool {
	return method == "tools/list" || method == "tools/call"
}

// Handle dispatches a tools/* method.
func (h *ToolHandler) Handle(ctx context.Context, method string, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	h.logDebug("handling "+method, map[string]interface{}{"params": h.sanitizeForLogging(params)})

	switch method {
	case "tools/list":
		return h.listTools(params, rc)
	case "tools/call":
		return h.callTool(ctx, params, rc)
	default:
		return nil, unsupportedMethodError(method)
	}
}

func (h *ToolHandler) listTools(params map[string]interface{}, rc RequestContext) (interface{}, error) {
	cursor, err := h.cursorFromParams(params)
	if err != nil {
		return nil, err
	}

	entries := h.registry.All(KindTool)
	definitions := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		definitions = append(definitions, h.buildToolDefinition(entry.Name, entry.Handler))
	}

	start, end, next := pageBounds(len(definitions), cursor)
	result := map[string]interface{}{
		"tools": definitions[start:end],
	}
	if next != "" {
		result["nextCursor"] = next
	}
	return h.createSuccessResponse(result, rc), nil
}

// buildToolDefinition computes the list entry for one registered tool. A
// handler whose metadata accessors panic is still listed with the fallback
// description and schema; a broken tool must never hide the rest of the
// list.
func (h *ToolHandler) buildToolDefinition(name string, handler interface{}) map[string]interface{} {
	def := map[string]interface{}{
		"name":        name,
		"description": fmt.Sprintf("Tool: %s", handlerTypeName(handler)),
		"inputSchema": defaultInputSchema(),
	}

	h.withMetadataGuard(name, "description", func() {
		if d, ok := handler.(Describable); ok {
			def["description"] = d.Description()
		}
	})
	h.withMetadataGuard(name, "inputSchema", func() {
		if sp, ok := handler.(SchemaProvider); ok {
			if schema := sp.InputSchema(); schema != nil {
				def["inputSchema"] = schema
			}
		}
	})
	return def
}

// withMetadataGuard runs fn, swallowing panics so a faulty accessor only
// costs the single field it was computing.
func (h *baseHandler) withMetadataGuard(name, field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logWarning("metadata accessor failed, using fallback", map[string]interface{}{
				"component": name,
				"field":     field,
				"panic":     fmt.Sprintf("%v", r),
			})
		}
	}()
	fn()
}

func defaultInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{},
		"additionalProperties": true,
	}
}

func (h *ToolHandler) callTool(ctx context.Context, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	if err := h.validateRequiredParams(params, []string{"name"}); err != nil {
		return nil, err
	}
	name, ok := params["name"].(string)
	if !ok {
		return nil, invalidParamsError("tools/call", "Invalid parameters: name must be a string")
	}

	args := map[string]interface{}{}
	if raw, present := params["arguments"]; present {
		args, ok = raw.(map[string]interface{})
		if !ok {
			return nil, invalidParamsError("tools/call", "Invalid parameters: arguments must be an object")
		}
	}

	if !h.registry.Has(KindTool, name) {
		return nil, methodNotFoundError("tools/call", "Tool not found: "+name)
	}
	entry, _ := h.registry.Get(KindTool, name)

	if err := h.checkToolArguments(name, entry.Handler, args); err != nil {
		return nil, err
	}

	result, err := invokeTool(ctx, entry.Handler, args)
	if err != nil {
		// Execution failures are surfaced in-band so the client can show
		// them as tool output instead of a transport fault.
		h.logWarning("tool execution failed", map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
		return h.createSuccessResponse(map[string]interface{}{
			"content": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": "Tool execution failed: " + err.Error(),
				},
			},
			"isError": true,
		}, rc), nil
	}

	return h.createSuccessResponse(map[string]interface{}{
		"content": []interface{}{h.formatContent(result, "text")},
		"isError": false,
	}, rc), nil
}

// checkToolArguments runs the tool's own validator and, when the tool
// declares an input schema, validates the arguments against it.
func (h *ToolHandler) checkToolArguments(name string, handler interface{}, args map[string]interface{}) error {
	if v, ok := handler.(ArgumentValidator); ok && !v.ValidateArguments(args) {
		return invalidParamsError("tools/call", "Invalid arguments for tool: "+name)
	}

	sp, ok := handler.(SchemaProvider)
	if !ok {
		return nil
	}
	schema := sp.InputSchema()
	if schema == nil {
		return nil
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(args))
	if err != nil {
		// A malformed schema is the tool author's bug, not the caller's.
		h.logWarning("skipping argument validation, schema is not loadable", map[string]interface{}{
			"tool":  name,
			"error": err.Error(),
		})
		return nil
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return NewProtocolError(ErrCodeInvalidParams, "Invalid arguments for tool: "+name, "tools/call", details)
	}
	return nil
}

// SchemaFromJSON is a convenience for tools that keep their schema as raw
// JSON text. It returns nil when the text is not a JSON object.
func SchemaFromJSON(raw json.RawMessage) map[string]interface{} {
	var schema map[string]interface{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}
