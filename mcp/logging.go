package mcp

// LogLevel represents the severity of an MCP log message, matching the
// RFC 5424 levels the protocol uses.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// logLevelSeverity maps levels to numeric severity; lower is more severe.
var logLevelSeverity = map[LogLevel]int{
	LogLevelEmergency: 0,
	LogLevelAlert:     1,
	LogLevelCritical:  2,
	LogLevelError:     3,
	LogLevelWarning:   4,
	LogLevelNotice:    5,
	LogLevelInfo:      6,
	LogLevelDebug:     7,
}

// SetLogLevelParams are the parameters of logging/setLevel.
type SetLogLevelParams struct {
	Level LogLevel `json:"level"`
}

// LogMessageParams are the parameters of a notifications/message
// notification sent to the client.
type LogMessageParams struct {
	Level  LogLevel    `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}
