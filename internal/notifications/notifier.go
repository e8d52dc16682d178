package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"akinmueble/internal/middleware"
	"akinmueble/internal/models"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Request lifecycle event types.
const (
	EventRequestCreated       = "request.created"
	EventRequestStatusChanged = "request.status_changed"
	EventRequestCascadeReject = "request.rejected_by_cascade"
	EventRequestAdviserChange = "request.adviser_changed"
	EventRequestCancelled     = "request.cancelled"
)

// RequestEvent is published whenever a request changes.
type RequestEvent struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	RequestID  uint                 `json:"requestId"`
	PropertyID uint                 `json:"propertyId"`
	ClientID   uint                 `json:"clientId"`
	AdviserID  uint                 `json:"adviserId"`
	Status     models.RequestStatus `json:"requestStatusId"`
	OccurredAt time.Time            `json:"occurredAt"`
}

// NewRequestEvent builds an event of type kind from the request's current state.
func NewRequestEvent(kind string, r *models.Request) RequestEvent {
	return RequestEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		RequestID:  r.ID,
		PropertyID: r.PropertyID,
		ClientID:   r.ClientID,
		AdviserID:  r.AdviserID,
		Status:     r.RequestStatusID,
		OccurredAt: time.Now().UTC(),
	}
}

const requestChannelPrefix = "akinmueble:requests:"

// RequestChannel is the Redis channel carrying events for a property's requests.
func RequestChannel(propertyID uint) string {
	return requestChannelPrefix + strconv.FormatUint(uint64(propertyID), 10)
}

// Notifier publishes lifecycle events into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishRequestEvent sends ev to its property's channel. It is a no-op
// without Redis.
func (n *Notifier) PublishRequestEvent(ctx context.Context, ev RequestEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode request event: %w", err)
	}
	return n.rdb.Publish(ctx, RequestChannel(ev.PropertyID), payload).Err()
}

// StartRequestSubscriber subscribes to every property's request channel and
// calls onMessage for each event until ctx is done.
func (n *Notifier) StartRequestSubscriber(
	ctx context.Context, onMessage func(propertyID uint, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, requestChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe request events: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, requestChannelPrefix), 10, 64)
				if err != nil {
					middleware.Logger.Warn("request events: invalid channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("request events: subscriber panic",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(uint(id), msg.Payload)
				}()
			}
		}
	}()

	return nil
}
