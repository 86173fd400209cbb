package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/reviewloop/reviewloop/internal/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared broker for all observer connections.
type HandlerConfig struct {
	Broker        *progress.Broker
	MaxConcurrent int
}

// Handler serves WebSocket progress observers with admission control. Each
// connection observes one batch; a second observer for the same batch takes
// over event delivery from the first.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with a shared broker and concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// ServeHTTP upgrades the connection and streams progress events for the batch
// named in the path. Returns 503 at max observer capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if batchID == "" {
		http.Error(w, "missing batch id", http.StatusBadRequest)
		return
	}

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("progress observer connected", "batch_id", batchID)
	h.runObserver(conn, batchID)
	slog.Info("progress observer disconnected", "batch_id", batchID)
}

// runObserver forwards broker events to the connection until the stream closes
// or the client goes away. The read loop exists only to detect disconnects;
// observers send nothing meaningful.
func (h *Handler) runObserver(conn *websocket.Conn, batchID string) {
	events := h.cfg.Broker.Open(batchID)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				slog.Error("write progress event", "batch_id", batchID, "error", err)
				h.cfg.Broker.Unregister(batchID, events)
				return
			}
		case <-gone:
			h.cfg.Broker.Unregister(batchID, events)
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev progress.Event) error {
	jsonBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, jsonBytes)
}
