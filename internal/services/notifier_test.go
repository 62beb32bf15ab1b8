package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lembas/internal/models"
	"lembas/internal/websocket"
)

func newNotifierFixture(t *testing.T) (*fakeStore, *Notifier) {
	t.Helper()
	store := newFakeStore()
	hub := websocket.NewHub()
	go hub.Run()
	return store, NewNotifier(store, hub)
}

func syncEventMessage(t *testing.T, event SyncEvent) *confluentKafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return &confluentKafka.Message{Value: payload}
}

func TestHandleSyncEvent_RecipeEvent(t *testing.T) {
	store, notifier := newNotifierFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	store.addRecipe(alice.ID, "Waybread")

	msg := syncEventMessage(t, SyncEvent{
		Kind:      SyncKindRecipes,
		UserIDs:   []uint{alice.ID},
		Timestamp: time.Now(),
	})
	assert.NoError(t, notifier.HandleSyncEvent(context.Background(), msg))
}

func TestHandleSyncEvent_FriendEvent(t *testing.T) {
	store, notifier := newNotifierFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	bob := store.addUser("bob", models.RoleUser)

	msg := syncEventMessage(t, SyncEvent{
		Kind:      SyncKindFriends,
		UserIDs:   []uint{alice.ID, bob.ID},
		Timestamp: time.Now(),
	})
	assert.NoError(t, notifier.HandleSyncEvent(context.Background(), msg))
}

// A message that does not parse must commit rather than wedge the consumer
// in a redelivery loop.
func TestHandleSyncEvent_MalformedMessageCommits(t *testing.T) {
	_, notifier := newNotifierFixture(t)

	msg := &confluentKafka.Message{Value: []byte("not json")}
	assert.NoError(t, notifier.HandleSyncEvent(context.Background(), msg))
}

func TestHandleSyncEvent_UnknownKindIgnored(t *testing.T) {
	_, notifier := newNotifierFixture(t)

	msg := syncEventMessage(t, SyncEvent{Kind: "mystery", UserIDs: []uint{1}})
	assert.NoError(t, notifier.HandleSyncEvent(context.Background(), msg))
}

func TestRecipeSnapshot(t *testing.T) {
	store, notifier := newNotifierFixture(t)
	alice := store.addUser("alice", models.RoleUser)
	store.addRecipe(alice.ID, "Waybread")
	store.addRecipe(alice.ID, "Apple pie")

	payload, err := notifier.RecipeSnapshot(context.Background(), alice.ID)
	require.NoError(t, err)

	var envelope struct {
		Type string          `json:"type"`
		Data []models.Recipe `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &envelope))
	assert.Equal(t, PushTypeRecipesUpdated, envelope.Type)
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "Apple pie", envelope.Data[0].Title)
}
