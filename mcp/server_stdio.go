package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/praxon-labs/mcpbridge/observability"
)

// StdIOServer serves newline-delimited JSON-RPC over a reader/writer pair,
// typically stdin and stdout.
type StdIOServer struct {
	handler *JSONRPCHandler
	logger  observability.Logger
	in      io.Reader
	out     io.Writer
}

// NewStdIOServer creates a StdIOServer in front of the dispatcher.
func NewStdIOServer(dispatcher *Dispatcher, logger observability.Logger, in io.Reader, out io.Writer) *StdIOServer {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	s := &StdIOServer{
		handler: NewJSONRPCHandler(dispatcher, logger, dispatcher.debug),
		logger:  logger,
		in:      in,
		out:     out,
	}
	dispatcher.SetNotificationSender(s.sendNotification)
	return s
}

// Run reads messages line by line until the input closes or the context is
// cancelled. Responses are written back one per line.
func (s *StdIOServer) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	buffer := make([]byte, 0, 64*1024)
	scanner.Buffer(buffer, 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		response := s.handler.ProcessRequest(ctx, line)
		if response == nil {
			continue
		}
		if err := s.writeLine(response); err != nil {
			s.logger.WithErr(err).Error("failed to write response")
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading input: %w", err)
	}
	s.logger.Info("stdio server shutting down")
	return nil
}

func (s *StdIOServer) sendNotification(method string, params interface{}) {
	notification := Notification{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			s.logger.WithErr(err).Error("failed to marshal notification params")
			return
		}
		notification.Params = raw
	}

	out, err := json.Marshal(notification)
	if err != nil {
		s.logger.WithErr(err).Error("failed to marshal notification")
		return
	}
	if err := s.writeLine(out); err != nil {
		s.logger.WithErr(err).Error("failed to write notification")
	}
}

func (s *StdIOServer) writeLine(message []byte) error {
	_, err := s.out.Write(append(message, '\n'))
	return err
}
