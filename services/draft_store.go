package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"venue-backend/models"
)

// DraftStore keeps one SessionDraft per actor. Load returns ErrSessionNotFound
// when the actor has no draft.
type DraftStore interface {
	Load(ctx context.Context, actorID string) (*models.SessionDraft, error)
	Save(ctx context.Context, draft *models.SessionDraft) error
	Delete(ctx context.Context, actorID string) error
}

// MemoryDraftStore is a process-local DraftStore. Drafts are copied on the way in
// and out so callers never share a slice with another goroutine.
type MemoryDraftStore struct {
	drafts sync.Map // actorID -> models.SessionDraft
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{}
}

func (m *MemoryDraftStore) Load(_ context.Context, actorID string) (*models.SessionDraft, error) {
	v, ok := m.drafts.Load(actorID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	d := cloneDraft(v.(models.SessionDraft))
	return &d, nil
}

func (m *MemoryDraftStore) Save(_ context.Context, draft *models.SessionDraft) error {
	m.drafts.Store(draft.ActorID, cloneDraft(*draft))
	return nil
}

func (m *MemoryDraftStore) Delete(_ context.Context, actorID string) error {
	m.drafts.Delete(actorID)
	return nil
}

func cloneDraft(d models.SessionDraft) models.SessionDraft {
	d.Lines = append([]models.DraftLine(nil), d.Lines...)
	if d.Date != nil {
		t := *d.Date
		d.Date = &t
	}
	return d
}

// RedisDraftStore keeps drafts as JSON under "<prefix>:<actor>". A zero TTL
// keeps drafts until commit or cancel.
type RedisDraftStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisDraftStore(client *redis.Client, prefix string, ttl time.Duration) *RedisDraftStore {
	if prefix == "" {
		prefix = "draft"
	}
	return &RedisDraftStore{Client: client, Prefix: prefix, TTL: ttl}
}

func (r *RedisDraftStore) key(actorID string) string {
	return r.Prefix + ":" + actorID
}

func (r *RedisDraftStore) Load(ctx context.Context, actorID string) (*models.SessionDraft, error) {
	raw, err := r.Client.Get(ctx, r.key(actorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load draft for %s: %w", actorID, err)
	}
	var d models.SessionDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode draft for %s: %w", actorID, err)
	}
	return &d, nil
}

func (r *RedisDraftStore) Save(ctx context.Context, draft *models.SessionDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft for %s: %w", draft.ActorID, err)
	}
	if err := r.Client.Set(ctx, r.key(draft.ActorID), raw, r.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store draft for %s: %w", draft.ActorID, err)
	}
	return nil
}

func (r *RedisDraftStore) Delete(ctx context.Context, actorID string) error {
	if err := r.Client.Del(ctx, r.key(actorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft for %s: %w", actorID, err)
	}
	return nil
}
