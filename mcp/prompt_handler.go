package mcp

import (
	"context"
	"fmt"

	"github.com/praxon-labs/mcpbridge/observability"
)

// PromptHandler owns the prompts/* method family.
type PromptHandler struct {
	baseHandler
}

// NewPromptHandler creates a PromptHandler reading from the given registry.
func NewPromptHandler(registry Registry, logger observability.Logger, debug bool) *PromptHandler {
	return &PromptHandler{
		baseHandler: newBaseHandler("PromptHandler", registry, logger, debug),
	}
}

// SupportedMethods returns the methods this handler owns.
func (h *PromptHandler) SupportedMethods() []string {
	return []string{"prompts/list", "prompts/get"}
}

// SupportsMethod reports whether the handler owns the method.
func (h *PromptHandler) SupportsMethod(method string) bool {
	return method == "prompts/list" || method == "prompts/get"
}

// Handle dispatches a prompts/* method.
func (h *PromptHandler) Handle(ctx context.Context, method string, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	h.logDebug("handling "+method, map[string]interface{}{"params": h.sanitizeForLogging(params)})

	switch method {
	case "prompts/list":
		return h.listPrompts(params, rc)
	case "prompts/get":
		return h.getPrompt(ctx, params, rc)
	default:
		return nil, unsupportedMethodError(method)
	}
}

func (h *PromptHandler) listPrompts(params map[string]interface{}, rc RequestContext) (interface{}, error) {
	cursor, err := h.cursorFromParams(params)
	if err != nil {
		return nil, err
	}

	entries := h.registry.All(KindPrompt)
	definitions := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		definitions = append(definitions, h.buildPromptDefinition(entry.Name, entry.Handler))
	}

	start, end, next := pageBounds(len(definitions), cursor)
	result := map[string]interface{}{
		"prompts": definitions[start:end],
	}
	if next != "" {
		result["nextCursor"] = next
	}
	return h.createSuccessResponse(result, rc), nil
}

// buildPromptDefinition computes the list entry for one registered prompt,
// falling back field by field when a metadata accessor panics.
func (h *PromptHandler) buildPromptDefinition(name string, handler interface{}) map[string]interface{} {
	def := map[string]interface{}{
		"name":        name,
		"description": h.promptDescription(handler),
		"arguments":   []PromptArgument{},
	}

	h.withMetadataGuard(name, "arguments", func() {
		if ap, ok := handler.(ArgumentsProvider); ok {
			if args := ap.Arguments(); args != nil {
				def["arguments"] = args
			}
		}
	})
	return def
}

func (h *PromptHandler) promptDescription(handler interface{}) string {
	description := fmt.Sprintf("Prompt: %s", handlerTypeName(handler))
	h.withMetadataGuard("", "description", func() {
		if d, ok := handler.(Describable); ok {
			description = d.Description()
		}
	})
	return description
}

func (h *PromptHandler) getPrompt(ctx context.Context, params map[string]interface{}, rc RequestContext) (interface{}, error) {
	if err := h.validateRequiredParams(params, []string{"name"}); err != nil {
		return nil, err
	}
	name, ok := params["name"].(string)
	if !ok {
		return nil, invalidParamsError("prompts/get", "Invalid parameters: name must be a string")
	}

	args := map[string]interface{}{}
	if raw, present := params["arguments"]; present {
		args, ok = raw.(map[string]interface{})
		if !ok {
			return nil, invalidParamsError("prompts/get", "Invalid parameters: arguments must be an object")
		}
	}

	if !h.registry.Has(KindPrompt, name) {
		return nil, methodNotFoundError("prompts/get", "Prompt not found: "+name)
	}
	entry, _ := h.registry.Get(KindPrompt, name)

	if v, ok := entry.Handler.(ArgumentValidator); ok && !v.ValidateArguments(args) {
		return nil, invalidParamsError("prompts/get", "Invalid arguments for prompt: "+name)
	}

	result, err := invokePrompt(ctx, entry.Handler, args)
	if err != nil {
		// Same soft-failure tier as tools and resources.
		h.logWarning("prompt processing failed", map[string]interface{}{
			"prompt": name,
			"error":  err.Error(),
		})
		if err == errPromptNotProcessable {
			return h.createErrorResponse(errPromptNotProcessable.Error(), ErrCodeInternal, nil), nil
		}
		return h.createErrorResponse("Failed to process prompt: "+err.Error(), ErrCodeInternal, nil), nil
	}

	return h.createSuccessResponse(map[string]interface{}{
		"description": h.promptDescription(entry.Handler),
		"messages":    formatPromptMessages(result),
	}, rc), nil
}

// formatPromptMessages normalizes a prompt result into a message list.
// Message-shaped values pass through; everything else is wrapped as a
// single user message holding one text block.
func formatPromptMessages(result interface{}) []interface{} {
	if list, ok := result.([]interface{}); ok && len(list) > 0 && allMessages(list) {
		return list
	}
	if m, ok := result.(map[string]interface{}); ok && isMessage(m) {
		return []interface{}{m}
	}

	return []interface{}{
		map[string]interface{}{
			"role": "user",
			"content": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": stringifyContent(result),
				},
			},
		},
	}
}

func allMessages(list []interface{}) bool {
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok || !isMessage(m) {
			return false
		}
	}
	return true
}

func isMessage(m map[string]interface{}) bool {
	if _, ok := m["role"]; ok {
		return true
	}
	_, ok := m["content"]
	return ok
}
