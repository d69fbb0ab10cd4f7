package webhooks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"routeplan/internal/store"
)

// Event types emitted for plans.
const (
	EventPlanCreated   = "plan.created"
	EventPlanClustered = "plan.clustered"
	EventPlanRouted    = "plan.routed"
)

// EventTypes lists every type a subscription may name, besides "*".
var EventTypes = []string{EventPlanCreated, EventPlanClustered, EventPlanRouted}

type Publisher struct {
	Store store.Store
	now   func() time.Time
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s, now: time.Now}
}

// Emit enqueues one delivery per subscription of the tenant matching eventType.
// It returns the number of deliveries queued.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		log.Printf("[webhook] subscriptions lookup tenant=%s type=%s: %v", tenantID, eventType, err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	payload := map[string]any{
		"id":       "evt_" + uuid.New().String(),
		"type":     eventType,
		"tenantId": tenantID,
		"ts":       p.now().UTC().Format(time.RFC3339),
		"data":     data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[webhook] encode %s: %v", eventType, err)
		return 0
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			log.Printf("[webhook] enqueue sub=%s: %v", s.ID, err)
			continue
		}
		n++
	}
	return n
}

// ValidEventType reports whether t may appear in a subscription.
func ValidEventType(t string) bool {
	if t == "*" {
		return true
	}
	for _, e := range EventTypes {
		if e == t {
			return true
		}
	}
	return false
}
