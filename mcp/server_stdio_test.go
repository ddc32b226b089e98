package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/praxon-labs/mcpbridge/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStdIOSession(t *testing.T, register func(r *InMemoryRegistry), input string) []map[string]interface{} {
	t.Helper()

	registry := NewInMemoryRegistry()
	if register != nil {
		register(registry)
	}
	dispatcher := newTestDispatcher(UseRegistry(registry))

	var out bytes.Buffer
	server := NewStdIOServer(dispatcher, observability.NewNullLogger(), strings.NewReader(input), &out)
	require.NoError(t, server.Run(context.Background()))

	var responses []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestStdIOServerSession(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"clientInfo":{"name":"c","version":"1"}},"id":1}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"tools/list","id":2}`,
		`{"jsonrpc":"2.0","method":"ping","id":3}`,
	}, "\n") + "\n"

	responses := runStdIOSession(t, func(r *InMemoryRegistry) {
		require.NoError(t, r.RegisterTool("echo", echoTool{}, nil))
	}, input)

	// The notification produces no response line.
	require.Len(t, responses, 3)

	init := responses[0]
	assert.Equal(t, float64(1), init["id"])
	initResult := init["result"].(map[string]interface{})
	assert.Equal(t, ProtocolVersion, initResult["protocolVersion"])

	list := responses[1]
	assert.Equal(t, float64(2), list["id"])
	tools := list["result"].(map[string]interface{})["tools"].([]interface{})
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].(map[string]interface{})["name"])

	assert.Equal(t, float64(3), responses[2]["id"])
}

func TestStdIOServerMalformedLine(t *testing.T) {
	responses := runStdIOSession(t, nil, "this is not json\n")

	require.Len(t, responses, 1)
	errObj := responses[0]["error"].(map[string]interface{})
	assert.Equal(t, float64(ErrCodeParseError), errObj["code"])
	assert.Nil(t, responses[0]["id"])
}

func TestStdIOServerSkipsBlankLines(t *testing.T) {
	responses := runStdIOSession(t, nil, "\n\n"+`{"jsonrpc":"2.0","method":"ping","id":1}`+"\n")
	require.Len(t, responses, 1)
	assert.Equal(t, float64(1), responses[0]["id"])
}
