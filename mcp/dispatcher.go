package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/praxon-labs/mcpbridge/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ProtocolVersion is the MCP protocol revision this server speaks.
	ProtocolVersion   = "2024-11-05"
	defaultServerName = "mcpbridge-server"
	serverVersion     = "0.1.0"

	tracerName = "github.com/praxon-labs/mcpbridge/mcp"
)

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities toggles the feature families the server advertises.
// Disabled families answer every method with "Method not found".
type ServerCapabilities struct {
	Tools      bool
	Resources  bool
	Prompts    bool
	Logging    bool
	Completion bool
}

// ServerConfig holds all configuration for a Dispatcher.
type ServerConfig struct {
	logger          observability.Logger
	tracer          trace.Tracer
	registry        Registry
	protocolVersion string
	serverName      string
	serverVersion   string
	capabilities    ServerCapabilities
	minLogLevel     LogLevel
	debug           bool
}

// ServerConfigOption is a function that modifies ServerConfig.
type ServerConfigOption func(*ServerConfig)

// UseLogger sets a custom logger.
func UseLogger(logger observability.Logger) ServerConfigOption {
	return func(c *ServerConfig) {
		c.logger = logger
	}
}

// UseTracer sets a custom tracer.
func UseTracer(tracer trace.Tracer) ServerConfigOption {
	return func(c *ServerConfig) {
		c.tracer = tracer
	}
}

// UseServerInfo sets server name and version.
func UseServerInfo(name, version string) ServerConfigOption {
	return func(c *ServerConfig) {
		c.serverName = name
		c.serverVersion = version
	}
}

// UseRegistry sets the component registry the handlers read from.
func UseRegistry(registry Registry) ServerConfigOption {
	return func(c *ServerConfig) {
		c.registry = registry
	}
}

// UseCapabilities sets the advertised capability families.
func UseCapabilities(caps ServerCapabilities) ServerConfigOption {
	return func(c *ServerConfig) {
		c.capabilities = caps
	}
}

// UseLogLevel sets the minimum level for log forwarding.
func UseLogLevel(level LogLevel) ServerConfigOption {
	return func(c *ServerConfig) {
		c.minLogLevel = level
	}
}

// UseDebug enables debug behaviour: verbose handler logging and diagnostic
// data on internal errors.
func UseDebug(debug bool) ServerConfigOption {
	return func(c *ServerConfig) {
		c.debug = debug
	}
}

func defaultConfig() *ServerConfig {
	return &ServerConfig{
		logger:          observability.NewLogrusLogger(nil),
		registry:        NewInMemoryRegistry(),
		protocolVersion: ProtocolVersion,
		serverName:      defaultServerName,
		serverVersion:   serverVersion,
		capabilities: ServerCapabilities{
			Tools:      true,
			Resources:  true,
			Prompts:    true,
			Logging:    true,
			Completion: true,
		},
		minLogLevel: LogLevelInfo,
	}
}

// Dispatcher routes JSON-RPC methods to the owning handler and implements
// the connection-level methods itself. Apart from the negotiated client
// capabilities and the log level it holds no mutable state; concurrent
// dispatch is safe as long as registered handlers are.
type Dispatcher struct {
	logger          observability.Logger
	tracer          trace.Tracer
	registry        Registry
	protocolVersion string
	serverInfo      ServerInfo
	capabilities    ServerCapabilities
	debug           bool

	tools     *ToolHandler
	resources *ResourceHandler
	prompts   *PromptHandler

	mu                 sync.RWMutex
	clientCapabilities map[string]interface{}
	minLogLevel        LogLevel

	notify func(method string, params interface{})
}

// NewDispatcher creates a Dispatcher with the given options.
func NewDispatcher(opts ...ServerConfigOption) *Dispatcher {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Dispatcher{
		logger:          cfg.logger,
		tracer:          tracer,
		registry:        cfg.registry,
		protocolVersion: cfg.protocolVersion,
		serverInfo: ServerInfo{
			Name:    cfg.serverName,
			Version: cfg.serverVersion,
		},
		capabilities: cfg.capabilities,
		debug:        cfg.debug,
		tools:        NewToolHandler(cfg.registry, cfg.logger, cfg.debug),
		resources:    NewResourceHandler(cfg.registry, cfg.logger, cfg.debug),
		prompts:      NewPromptHandler(cfg.registry, cfg.logger, cfg.debug),
		minLogLevel:  cfg.minLogLevel,
		notify:       func(method string, params interface{}) {},
	}
}

// Registry exposes the registry the dispatcher serves from.
func (d *Dispatcher) Registry() Registry {
	return d.registry
}

// SetNotificationSender wires the transport's outgoing notification path.
func (d *Dispatcher) SetNotificationSender(notify func(method string, params interface{})) {
	if notify == nil {
		notify = func(method string, params interface{}) {}
	}
	d.notify = notify
}

// Dispatch routes one request to its handler and returns the result, or a
// ProtocolError for protocol-level failures.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params map[string]interface{}, rc RequestContext) (result interface{}, err error) {
	ctx, span := d.tracer.Start(ctx, "mcp.dispatch",
		trace.WithAttributes(attribute.String("mcp.method", method)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	switch {
	case method == "initialize":
		return d.handleInitialize(params)
	case method == "ping":
		return map[string]interface{}{}, nil
	case method == "logging/setLevel":
		if !d.capabilities.Logging {
			return nil, methodNotFoundError(method, "Method not found: "+method)
		}
		return d.handleSetLogLevel(params)
	case method == "completion/complete":
		if !d.capabilities.Completion {
			return nil, methodNotFoundError(method, "Method not found: "+method)
		}
		return d.handleCompletion(params)
	case strings.HasPrefix(method, "tools/"):
		if !d.capabilities.Tools {
			return nil, methodNotFoundError(method, "Method not found: "+method)
		}
		return d.tools.Handle(ctx, method, params, rc)
	case strings.HasPrefix(method, "resources/"):
		if !d.capabilities.Resources {
			return nil, methodNotFoundError(method, "Method not found: "+method)
		}
		return d.resources.Handle(ctx, method, params, rc)
	case strings.HasPrefix(method, "prompts/"):
		if !d.capabilities.Prompts {
			return nil, methodNotFoundError(method, "Method not found: "+method)
		}
		return d.prompts.Handle(ctx, method, params, rc)
	default:
		return nil, methodNotFoundError(method, "Method not found: "+method)
	}
}

// serverFeatures returns the feature object advertised per enabled family.
func (d *Dispatcher) serverFeatures() map[string]interface{} {
	features := map[string]interface{}{}
	if d.capabilities.Tools {
		features["tools"] = map[string]interface{}{"listChanged": false}
	}
	if d.capabilities.Resources {
		features["resources"] = map[string]interface{}{"subscribe": false, "listChanged": false}
	}
	if d.capabilities.Prompts {
		features["prompts"] = map[string]interface{}{"listChanged": false}
	}
	if d.capabilities.Logging {
		features["logging"] = map[string]interface{}{}
	}
	if d.capabilities.Completion {
		features["completion"] = map[string]interface{}{}
	}
	return features
}

func (d *Dispatcher) handleInitialize(params map[string]interface{}) (interface{}, error) {
	version, _ := params["protocolVersion"].(string)
	if !strings.HasPrefix(version, "2024-11") {
		return nil, NewProtocolError(ErrCodeInvalidParams, "Unsupported protocol version", "initialize",
			map[string][]string{"supported": {ProtocolVersion}})
	}

	clientCaps, _ := params["capabilities"].(map[string]interface{})

	// A capability family is advertised only when both sides declare it;
	// everything else is left out of the result entirely.
	negotiated := map[string]interface{}{}
	for family, feature := range d.serverFeatures() {
		if _, declared := clientCaps[family]; declared {
			negotiated[family] = feature
		}
	}

	d.mu.Lock()
	d.clientCapabilities = clientCaps
	d.mu.Unlock()

	d.logger.WithFields(map[string]interface{}{
		"clientCapabilities": clientCaps,
		"negotiated":         negotiated,
	}).Debug("initialize handshake complete")

	return map[string]interface{}{
		"protocolVersion": d.protocolVersion,
		"capabilities":    negotiated,
		"serverInfo":      d.serverInfo,
	}, nil
}

func (d *Dispatcher) handleSetLogLevel(params map[string]interface{}) (interface{}, error) {
	var p SetLogLevelParams
	if raw, err := json.Marshal(params); err == nil {
		_ = json.Unmarshal(raw, &p)
	}
	if _, ok := logLevelSeverity[p.Level]; !ok {
		return nil, invalidParamsError("logging/setLevel", "Invalid parameters: invalid log level")
	}

	d.mu.Lock()
	d.minLogLevel = p.Level
	d.mu.Unlock()
	return map[string]interface{}{}, nil
}

// handleCompletion answers completion/complete. No completion sources are
// wired, so the result is always empty; the method existing at all is what
// the capability advertises.
func (d *Dispatcher) handleCompletion(params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"completion": map[string]interface{}{
			"values":  []interface{}{},
			"total":   0,
			"hasMore": false,
		},
	}, nil
}

// ClientCapabilities returns the capabilities the client declared during
// initialize.
func (d *Dispatcher) ClientCapabilities() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clientCapabilities
}

// LogMessage forwards a log message to the client when its level passes the
// configured threshold.
func (d *Dispatcher) LogMessage(level LogLevel, loggerName string, data interface{}) {
	d.mu.RLock()
	minLevel := d.minLogLevel
	d.mu.RUnlock()

	if logLevelSeverity[level] > logLevelSeverity[minLevel] {
		return
	}
	d.notify("notifications/message", LogMessageParams{
		Level:  level,
		Logger: loggerName,
		Data:   data,
	})
}

// SendToolListChangedNotification tells connected clients the tool list
// changed.
func (d *Dispatcher) SendToolListChangedNotification() {
	d.notify("notifications/tools/list_changed", nil)
}

// SendPromptListChangedNotification tells connected clients the prompt list
// changed.
func (d *Dispatcher) SendPromptListChangedNotification() {
	d.notify("notifications/prompts/list_changed", nil)
}
