package inbox

import (
	"context"
	"net/http"
	"sync"
	"time"

	"whatsflow/internal/httputil"
	"whatsflow/internal/metrics"
	"whatsflow/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Event is pushed to dashboard clients whenever a message is persisted.
type Event struct {
	Type        string               `json:"type"`
	MessageID   int64                `json:"messageId"`
	AccountID   string               `json:"accountId"`
	Contact     string               `json:"contact"`
	Direction   models.Direction     `json:"direction"`
	Body        string               `json:"body"`
	MessageType models.MessageType   `json:"messageType"`
	Status      models.MessageStatus `json:"status"`
	MediaURL    string               `json:"mediaUrl,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func eventFromMessage(m models.Message) Event {
	return Event{
		Type:        "message",
		MessageID:   m.ID,
		AccountID:   m.AccountID,
		Contact:     m.PhoneNumber,
		Direction:   m.Direction,
		Body:        m.Body,
		MessageType: m.Type,
		Status:      m.Status,
		MediaURL:    m.MediaURL,
		CreatedAt:   m.CreatedAt,
	}
}

type subscriber struct {
	accountID string
	events    chan Event
}

// Hub fans persisted messages out to websocket subscribers of the same account.
type Hub struct {
	mu             sync.RWMutex
	subs           map[*subscriber]struct{}
	originPatterns []string
	logger         *logrus.Logger
}

// NewHub creates a hub. originPatterns is passed to the websocket handshake;
// empty means same-origin only.
func NewHub(logger *logrus.Logger, originPatterns ...string) *Hub {
	return &Hub{
		subs:           make(map[*subscriber]struct{}),
		originPatterns: originPatterns,
		logger:         logger,
	}
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(m models.Message) {
	ev := eventFromMessage(m)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.accountID != ev.AccountID {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.logger.WithField("account_id", ev.AccountID).Warn("Inbox subscriber is too slow, dropping event")
		}
	}
}

// Subscribe registers a listener for accountID. The returned func must be
// called to release it.
func (h *Hub) Subscribe(accountID string) (<-chan Event, func()) {
	sub := &subscriber{accountID: accountID, events: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.SetGauge(metrics.InboxSubscribers, float64(n), nil, "Connected inbox websocket clients")

	var once sync.Once
	return sub.events, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			n := len(h.subs)
			h.mu.Unlock()
			metrics.SetGauge(metrics.InboxSubscribers, float64(n), nil, "Connected inbox websocket clients")
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades GET /api/inbox/ws?accountId=... and streams events
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.WithError(err).Warn("Inbox websocket handshake failed")
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := h.Subscribe(accountID)
	defer unsubscribe()

	log := h.logger.WithField("account_id", accountID)
	log.Debug("Inbox client connected")

	// The dashboard never sends anything; CloseRead handles pings and closes.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			log.Debug("Inbox client disconnected")
			return
		case ev := <-events:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				log.WithError(err).Debug("Failed to write inbox event")
				return
			}
		}
	}
}
