package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lembas/internal/config"
	"lembas/internal/kafka"
	"lembas/internal/storage"
	"lembas/internal/websocket"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Sync event kinds. Events carry user IDs only; the consumer re-reads
// current state before pushing, so clients never see a stale payload.
const (
	SyncKindRecipes = "recipes"
	SyncKindFriends = "friends"
)

// WebSocket envelope types pushed to clients.
const (
	PushTypeRecipesUpdated = "recipes:updated"
	PushTypeFriendsUpdated = "friends:updated"
)

// SyncEvent is the change signal published by mutating services.
type SyncEvent struct {
	Kind      string    `json:"kind"`
	UserIDs   []uint    `json:"userIds"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncPublisher emits change signals for the realtime notifier. Publishing
// is advisory: failures are logged, never surfaced to the mutation's caller.
type SyncPublisher interface {
	RecipesChanged(ctx context.Context, ownerID uint)
	FriendsChanged(ctx context.Context, userIDs ...uint)
}

type kafkaSyncPublisher struct {
	producer kafka.MessageProducer
	cfg      config.KafkaConfig
}

// NewKafkaSyncPublisher creates a SyncPublisher backed by the Kafka
// sync-events topic.
func NewKafkaSyncPublisher(producer kafka.MessageProducer, cfg config.KafkaConfig) SyncPublisher {
	return &kafkaSyncPublisher{producer: producer, cfg: cfg}
}

func (p *kafkaSyncPublisher) RecipesChanged(ctx context.Context, ownerID uint) {
	p.publish(ctx, SyncEvent{Kind: SyncKindRecipes, UserIDs: []uint{ownerID}, Timestamp: time.Now()})
}

func (p *kafkaSyncPublisher) FriendsChanged(ctx context.Context, userIDs ...uint) {
	p.publish(ctx, SyncEvent{Kind: SyncKindFriends, UserIDs: userIDs, Timestamp: time.Now()})
}

func (p *kafkaSyncPublisher) publish(ctx context.Context, event SyncEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling %s sync event: %v", event.Kind, err)
		return
	}
	key := []byte(event.Kind)
	if err := p.producer.SendMessage(ctx, p.cfg.SyncEventsTopic, key, payload); err != nil {
		// The mutation already committed; the push is best-effort.
		log.Printf("Error producing %s sync event to topic %s: %v", event.Kind, p.cfg.SyncEventsTopic, err)
	}
}

// Notifier consumes sync events and pushes fresh state to connected clients.
type Notifier struct {
	store storage.Store
	hub   *websocket.Hub
}

// NewNotifier creates a Notifier over the given store and hub.
func NewNotifier(store storage.Store, hub *websocket.Hub) *Notifier {
	return &Notifier{store: store, hub: hub}
}

// HandleSyncEvent is the Kafka consumer handler. Recipe events push the
// owner's current list to the owner's own connections only; friend events
// are a signal with no payload, prompting clients to re-pull their lists.
func (n *Notifier) HandleSyncEvent(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var event SyncEvent
	if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
		log.Printf("Error unmarshalling sync event from Kafka: %v, value: %s", err, string(kafkaMsg.Value))
		return nil // commit offset for a bad message
	}

	switch event.Kind {
	case SyncKindRecipes:
		for _, userID := range event.UserIDs {
			recipes, err := n.store.Recipes().ListByOwner(ctx, userID)
			if err != nil {
				log.Printf("Error reading recipe list for user %d while handling sync event: %v", userID, err)
				return err // retryable
			}
			n.hub.PushToUser(userID, websocket.Envelope{Type: PushTypeRecipesUpdated, Data: recipes})
		}
	case SyncKindFriends:
		for _, userID := range event.UserIDs {
			n.hub.PushToUser(userID, websocket.Envelope{Type: PushTypeFriendsUpdated})
		}
	default:
		log.Printf("Ignoring sync event of unknown kind %q", event.Kind)
	}
	return nil
}

// RecipeSnapshot builds the initial recipes:updated envelope sent to a
// client right after it connects.
func (n *Notifier) RecipeSnapshot(ctx context.Context, userID uint) ([]byte, error) {
	recipes, err := n.store.Recipes().ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe snapshot for user %d: %w", userID, err)
	}
	return json.Marshal(websocket.Envelope{Type: PushTypeRecipesUpdated, Data: recipes})
}
