package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduler/internal/scheduling"
)

func TestRedisStoreMissingKeyIsIdle(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, time.Minute)

	got, err := store.Get(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State)
	assert.False(t, got.AwaitingSelection())
	assert.Nil(t, got.LastIntent)
}

func TestRedisStoreUpdateRoundTripAndTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	slots := []scheduling.TimeSlot{{Date: "2025-06-10", Time: "15:00"}, {Date: "2025-06-10", Time: "13:00"}}
	require.NoError(t, store.Update(ctx, testPhone, func(c *Context) {
		c.OfferAlternatives(slots, "cleaning", "Dana", "")
	}))

	got, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.True(t, got.AwaitingSelection())
	assert.Equal(t, slots, got.Alternatives)
	assert.Equal(t, "cleaning", got.Service)
	assert.Equal(t, time.Minute, mr.TTL(contextKey(testPhone)))

	raw, err := mr.Get(contextKey(testPhone))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, true, decoded["awaiting_alternative_selection"])
}

func TestRedisStoreExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, testPhone, func(c *Context) {
		c.OfferAlternatives([]scheduling.TimeSlot{{Date: "2025-06-10", Time: "15:00"}}, "cleaning", "Dana", "")
	}))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.False(t, got.AwaitingSelection())
}

func TestRedisStoreClear(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	in := bookIntent("2025-06-10", "14:00")
	require.NoError(t, store.Update(ctx, testPhone, func(c *Context) { c.LastIntent = &in }))
	require.NoError(t, store.Clear(ctx, testPhone))

	got, err := store.Get(ctx, testPhone)
	require.NoError(t, err)
	assert.Nil(t, got.LastIntent)
	assert.Equal(t, StateIdle, got.State)
}

func TestContextDecodesLegacyFlag(t *testing.T) {
	var c Context
	require.NoError(t, json.Unmarshal([]byte(`{"awaiting_alternative_selection":true,"alternatives":[{"date":"2025-06-10","time":"15:00"}]}`), &c))
	assert.Equal(t, StateAwaitingSelection, c.State)
	assert.True(t, c.AwaitingSelection())
}

func TestOfferAlternativesCapsSlots(t *testing.T) {
	var c Context
	c.OfferAlternatives([]scheduling.TimeSlot{
		{Date: "2025-06-10", Time: "13:00"},
		{Date: "2025-06-10", Time: "15:00"},
		{Date: "2025-06-10", Time: "16:00"},
	}, "cleaning", "Dana", "evt-1")
	assert.Len(t, c.Alternatives, scheduling.MaxAlternatives)
	assert.Equal(t, "evt-1", c.RescheduleID)

	c.ClearSelection()
	assert.Equal(t, StateIdle, c.State)
	assert.Empty(t, c.Alternatives)
	assert.Empty(t, c.RescheduleID)
}
