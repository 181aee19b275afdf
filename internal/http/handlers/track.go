package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/service/tracking"
)

const (
	defaultPollInterval = 2 * time.Second
	writeWait           = 5 * time.Second
	pongWait            = 60 * time.Second
)

// TrackConfig tunes the tracking stream.
type TrackConfig struct {
	ETAAfterPickup time.Duration
	// PollInterval is how often persisted history is re-read to pick up
	// events committed by other processes.
	PollInterval time.Duration
	Now          func() time.Time
}

// TrackHandler serves live tracking snapshots.
type TrackHandler struct {
	source   historySource
	feed     trackFeed
	logger   logx.Logger
	metrics  *metrics.Tracking
	cfg      TrackConfig
	upgrader websocket.Upgrader
}

// NewTrackHandler creates a TrackHandler.
func NewTrackHandler(
	logger logx.Logger,
	source historySource,
	feed trackFeed,
	m *metrics.Tracking,
	cfg TrackConfig,
) *TrackHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ETAAfterPickup <= 0 {
		cfg.ETAAfterPickup = tracking.DefaultETAAfterPickup
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TrackHandler{
		source:  source,
		feed:    feed,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Snapshot handles GET /delivery-requests/{id}/snapshot.
func (h *TrackHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	relay, err := h.seed(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, snapshotToResponse(relay.Snapshot(h.cfg.Now())))
}

// Stream handles GET /delivery-requests/{id}/track. It upgrades to a
// WebSocket and pushes a snapshot after every applied event until the
// delivery finishes or the client goes away.
func (h *TrackHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	relay, err := h.seed(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// subscribe before upgrading so nothing published in between is lost
	events, unsubscribe := h.feed.Subscribe(id)
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("track upgrade failed", logx.String("request_id", id), logx.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	log := h.logger.With(logx.String("request_id", id))
	log.Debug("track stream opened")

	if done, err := h.push(conn, relay); err != nil || done {
		h.finish(conn, log, err)
		return
	}

	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		changed := false
		select {
		case <-ctx.Done():
			log.Debug("track stream closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				h.finish(conn, log, nil)
				return
			}
			changed = relay.Apply(ev)
		case <-ticker.C:
			history, err := h.source.History(ctx, id)
			if err != nil {
				log.Warn("track history poll failed", logx.Err(err))
				continue
			}
			changed = relay.Seed(history) > 0
			if !changed {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					h.finish(conn, log, err)
					return
				}
			}
		}
		if !changed {
			continue
		}
		if done, err := h.push(conn, relay); err != nil || done {
			h.finish(conn, log, err)
			return
		}
	}
}

func (h *TrackHandler) seed(ctx context.Context, id string) (*tracking.Relay, error) {
	history, err := h.source.History(ctx, id)
	if err != nil {
		return nil, err
	}
	relay := tracking.NewRelay(id, h.logger, h.metrics, h.cfg.ETAAfterPickup)
	relay.Seed(history)
	return relay, nil
}

// push writes the current snapshot and reports whether the delivery is finished.
func (h *TrackHandler) push(conn *websocket.Conn, relay *tracking.Relay) (bool, error) {
	snap := relay.Snapshot(h.cfg.Now())
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false, err
	}
	if err := conn.WriteJSON(snapshotToResponse(snap)); err != nil {
		return false, err
	}
	return snap.Status.IsTerminal(), nil
}

func (h *TrackHandler) finish(conn *websocket.Conn, log logx.Logger, err error) {
	if err != nil {
		log.Debug("track stream write failed", logx.Err(err))
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "delivery finished")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		log.Debug("track close frame failed", logx.Err(err))
	}
}

// readUntilClosed drains client frames so control messages are processed.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *TrackHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("track handler failed",
			logx.String("request_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
	writeError(h.logger, w, r, status, msg)
}

type snapshotDTO struct {
	RequestID string                `json:"request_id"`
	CourierID *int64                `json:"courier_id"`
	Status    domain.DeliveryStatus `json:"status,omitempty"`
	Position  *domain.GeoPoint      `json:"position"`
	Progress  int                   `json:"progress"`
	ETA       *time.Time            `json:"eta"`
	Route     []domain.GeoPoint     `json:"route"`
	History   []trackingEventDTO    `json:"history"`
	UpdatedAt *time.Time            `json:"updated_at"`
	Message   string                `json:"message,omitempty"`
}

func snapshotToResponse(s tracking.Snapshot) snapshotDTO {
	return snapshotDTO{
		RequestID: s.RequestID,
		CourierID: s.CourierID,
		Status:    s.Status,
		Position:  s.Position,
		Progress:  s.Progress,
		ETA:       s.ETA,
		Route:     s.Route,
		History:   eventsToResponse(s.History),
		UpdatedAt: s.UpdatedAt,
		Message:   s.Message,
	}
}
