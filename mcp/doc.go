// Package mcp implements the server-side dispatch core of the Model
// Context Protocol: a JSON-RPC 2.0 message handler, per-family method
// handlers for tools, resources and prompts, capability negotiation and
// cursor-based pagination for list operations. Transports for stdio and
// Server-Sent Events are included; the core itself performs no I/O.
//
// Components are registered in a Registry and dispatched through small
// capability interfaces; plain functions work too:
//
//	registry := mcp.NewInMemoryRegistry()
//	registry.RegisterTool("echo", mcp.ToolFunc(
//		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
//			return args["text"], nil
//		}), nil)
//
//	dispatcher := mcp.NewDispatcher(
//		mcp.UseRegistry(registry),
//		mcp.UseServerInfo("example-server", "1.0.0"),
//	)
//
//	server := mcp.NewStdIOServer(dispatcher, nil, os.Stdin, os.Stdout)
//	if err := server.Run(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// Failures come in two tiers. Malformed requests, unknown methods and
// validation errors surface as JSON-RPC error objects. A registered
// component that fails while executing surfaces inside a successful
// response instead (isError content for tools, an error-shaped payload for
// resources and prompts), so a broken tool call never looks like a broken
// protocol.
package mcp
