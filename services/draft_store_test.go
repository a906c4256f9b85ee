package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-backend/models"
)

func sampleDraft(actor string) *models.SessionDraft {
	date := bookingDate
	return &models.SessionDraft{
		ID:         "draft-1",
		ActorID:    actor,
		EmployeeID: 7,
		Step:       models.StepCategory,
		Date:       &date,
		Slot:       models.TimeSlotEvening,
		RoomID:     3,
		ClientName: "Alice",
		Lines: []models.DraftLine{{
			ProductID: 1,
			Name:      "Tea",
			Quantity:  decimal.RequireFromString("1.5"),
			Unit:      "l",
			Price:     decimal.RequireFromString("4.00"),
			Subtotal:  decimal.RequireFromString("6.00"),
		}},
		StartedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestMemoryDraftStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDraftStore()

	_, err := store.Load(ctx, "nobody")
	require.ErrorIs(t, err, ErrSessionNotFound)

	d := sampleDraft("chat-1")
	require.NoError(t, store.Save(ctx, d))

	// mutating the caller's copy must not leak into the store
	d.Lines[0].Name = "Coffee"
	d.Lines = append(d.Lines, models.DraftLine{Name: "extra"})
	*d.Date = d.Date.AddDate(0, 0, 1)

	got, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Tea", got.Lines[0].Name)
	assert.True(t, got.Date.Equal(bookingDate))

	got.Lines = nil
	again, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, again.Lines, 1)

	require.NoError(t, store.Delete(ctx, "chat-1"))
	_, err = store.Load(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisDraftStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDraftStore(client, "", ttl), mr
}

func TestRedisDraftStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 0)

	_, err := store.Load(ctx, "chat-9")
	require.ErrorIs(t, err, ErrSessionNotFound)

	want := sampleDraft("chat-9")
	require.NoError(t, store.Save(ctx, want))
	assert.True(t, mr.Exists("draft:chat-9"))
	assert.Zero(t, mr.TTL("draft:chat-9"))

	got, err := store.Load(ctx, "chat-9")
	require.NoError(t, err)
	assert.Equal(t, models.StepCategory, got.Step)
	assert.Equal(t, models.TimeSlotEvening, got.Slot)
	require.NotNil(t, got.Date)
	assert.True(t, got.Date.Equal(bookingDate))
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "6", got.CartTotal().String())

	require.NoError(t, store.Delete(ctx, "chat-9"))
	_, err = store.Load(ctx, "chat-9")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisDraftStoreExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 30*time.Minute)
	store.Prefix = "venue:draft"

	require.NoError(t, store.Save(ctx, sampleDraft("chat-3")))
	assert.Equal(t, 30*time.Minute, mr.TTL("venue:draft:chat-3"))

	mr.FastForward(29 * time.Minute)
	_, err := store.Load(ctx, "chat-3")
	require.NoError(t, err)

	// each save refreshes the expiry
	require.NoError(t, store.Save(ctx, sampleDraft("chat-3")))
	mr.FastForward(29 * time.Minute)
	_, err = store.Load(ctx, "chat-3")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "chat-3")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisDraftStoreCorruptValue(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set("draft:chat-5", "{not json"))

	_, err := store.Load(ctx, "chat-5")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
