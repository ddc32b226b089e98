package mcp

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Canonical capability interfaces, one per component family. Implementing
// the family interface is the primary way to expose a component; the
// invoke* helpers below additionally accept plain function values and a few
// legacy method shapes, checked in a fixed precedence order.

// ToolExecutor is a tool implementation.
type ToolExecutor interface {
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ResourceReader is a resource implementation.
type ResourceReader interface {
	Read(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// PromptProvider is a prompt implementation.
type PromptProvider interface {
	Process(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Optional metadata capabilities. A handler that implements none of these
// is still listed, using documented fallback values.

// Describable exposes a human-readable component description.
type Describable interface {
	Description() string
}

// SchemaProvider exposes a tool's JSON schema for its arguments. When
// present, arguments are validated against it before execution.
type SchemaProvider interface {
	InputSchema() map[string]interface{}
}

// ArgumentValidator lets a tool or prompt veto its arguments before
// dispatch. Returning false fails the call with an invalid-params error.
type ArgumentValidator interface {
	ValidateArguments(args map[string]interface{}) bool
}

// URIProvider exposes a resource's URI. Resources without one are addressed
// as "resource://<registered-name>".
type URIProvider interface {
	URI() string
}

// MimeTypeProvider exposes a resource's MIME type.
type MimeTypeProvider interface {
	MimeType() string
}

// MetadataProvider exposes extra resource metadata. Its keys are flattened
// into the top-level resource definition on resources/list.
type MetadataProvider interface {
	Metadata() map[string]interface{}
}

// ArgumentsProvider exposes a prompt's declared arguments.
type ArgumentsProvider interface {
	Arguments() []PromptArgument
}

// ResourceContentGetter is the legacy resource read shape, consulted after
// ResourceReader.
type ResourceContentGetter interface {
	GetContent(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// PromptGetter is the legacy prompt shape, consulted after PromptProvider.
type PromptGetter interface {
	Get(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// PromptArgument describes a single prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Function adapters so bare closures can be registered directly.

// ToolFunc adapts a function to ToolExecutor.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

func (f ToolFunc) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f(ctx, args)
}

// ResourceFunc adapts a function to ResourceReader.
type ResourceFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

func (f ResourceFunc) Read(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return f(ctx, params)
}

// PromptFunc adapts a function to PromptProvider.
type PromptFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

func (f PromptFunc) Process(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f(ctx, args)
}

// Terminal dispatch errors for handlers that expose no invocable shape.
// These are soft failures: they surface inside a successful JSON-RPC
// response, never as a protocol error.
var (
	errToolNotExecutable    = errors.New("tool is not executable")
	errResourceNotReadable  = errors.New("Resource is not readable")
	errPromptNotProcessable = errors.New("Prompt is not processable")
)

// invokeTool dispatches a tool call. Precedence: ToolExecutor, then a plain
// function value, then failure. Panics inside the handler are recovered and
// reported as errors.
func invokeTool(ctx context.Context, handler interface{}, args map[string]interface{}) (result interface{}, err error) {
	defer recoverInvocation(&err)

	switch h := handler.(type) {
	case ToolExecutor:
		return h.Execute(ctx, args)
	case func(ctx context.Context, args map[string]interface{}) (interface{}, error):
		return h(ctx, args)
	case func(args map[string]interface{}) (interface{}, error):
		return h(args)
	default:
		return nil, errToolNotExecutable
	}
}

// invokeResource dispatches a resource read. Precedence: ResourceReader,
// then GetContent, then a plain function value, then failure.
func invokeResource(ctx context.Context, handler interface{}, params map[string]interface{}) (result interface{}, err error) {
	defer recoverInvocation(&err)

	switch h := handler.(type) {
	case ResourceReader:
		return h.Read(ctx, params)
	case ResourceContentGetter:
		return h.GetContent(ctx, params)
	case func(ctx context.Context, params map[string]interface{}) (interface{}, error):
		return h(ctx, params)
	case func(params map[string]interface{}) (interface{}, error):
		return h(params)
	default:
		return nil, errResourceNotReadable
	}
}

// invokePrompt dispatches a prompt. Precedence: PromptProvider, then Get,
// then a plain function value, then failure.
func invokePrompt(ctx context.Context, handler interface{}, args map[string]interface{}) (result interface{}, err error) {
	defer recoverInvocation(&err)

	switch h := handler.(type) {
	case PromptProvider:
		return h.Process(ctx, args)
	case PromptGetter:
		return h.Get(ctx, args)
	case func(ctx context.Context, args map[string]interface{}) (interface{}, error):
		return h(ctx, args)
	case func(args map[string]interface{}) (interface{}, error):
		return h(args)
	default:
		return nil, errPromptNotProcessable
	}
}

func recoverInvocation(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%v", r)
	}
}

// handlerTypeName returns the bare type name of a handler value, used in
// fallback descriptions.
func handlerTypeName(handler interface{}) string {
	t := reflect.TypeOf(handler)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
