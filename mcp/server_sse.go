package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praxon-labs/mcpbridge/observability"
	"golang.org/x/sync/errgroup"
)

// SSEServer serves JSON-RPC over Server-Sent Events: clients open a GET
// event stream and post request bytes to the message endpoint they are told
// about in the first event.
type SSEServer struct {
	handler *JSONRPCHandler
	logger  observability.Logger
	address string

	clientsMutex sync.RWMutex
	clients      map[string]chan []byte
}

// NewSSEServer creates an SSEServer in front of the dispatcher, listening
// on the given address.
func NewSSEServer(dispatcher *Dispatcher, logger observability.Logger, address string) *SSEServer {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	s := &SSEServer{
		handler: NewJSONRPCHandler(dispatcher, logger, dispatcher.debug),
		logger:  logger,
		address: address,
		clients: make(map[string]chan []byte),
	}
	dispatcher.SetNotificationSender(s.broadcastNotification)
	return s
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace period.
func (s *SSEServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/message", s.handleMessage)

	server := &http.Server{
		Addr:    s.address,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleEvents registers a client and streams its outgoing messages.
func (s *SSEServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming unsupported by response writer")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	messageChan := make(chan []byte, 10)

	s.clientsMutex.Lock()
	s.clients[clientID] = messageChan
	s.clientsMutex.Unlock()

	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, clientID)
		close(messageChan)
		s.clientsMutex.Unlock()
		s.logger.WithFields(map[string]interface{}{"clientID": clientID}).Debug("client disconnected")
	}()

	endpointURL := fmt.Sprintf("http://%s/message?clientID=%s", r.Host, clientID)
	if _, err := fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpointURL); err != nil {
		s.logger.WithErr(err).Error("failed to send endpoint event")
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case message := <-messageChan:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", message); err != nil {
				s.logger.WithErr(err).Error("failed to write event")
				return
			}
			flusher.Flush()
		}
	}
}

// handleMessage accepts one JSON-RPC message and pushes the response onto
// the client's event stream.
func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID := r.URL.Query().Get("clientID")
	s.clientsMutex.RLock()
	_, known := s.clients[clientID]
	s.clientsMutex.RUnlock()
	if !known {
		http.Error(w, "Unknown client", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	response := s.handler.ProcessRequest(r.Context(), body)
	if response != nil {
		// The stream handler closes the channel under the write lock on
		// disconnect, so the send must happen under the read lock with a
		// fresh membership check.
		s.clientsMutex.RLock()
		if messageChan, connected := s.clients[clientID]; connected {
			select {
			case messageChan <- response:
			default:
				s.logger.WithFields(map[string]interface{}{"clientID": clientID}).
					Warn("client message buffer full, dropping response")
			}
		}
		s.clientsMutex.RUnlock()
	}
	w.WriteHeader(http.StatusAccepted)
}

// broadcastNotification sends a notification to every connected client.
func (s *SSEServer) broadcastNotification(method string, params interface{}) {
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

	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	for _, clientChan := range s.clients {
		select {
		case clientChan <- out:
		default:
			s.logger.Warn("client message buffer full, dropping notification")
		}
	}
}
