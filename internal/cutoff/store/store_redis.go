package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rollcall/internal/cutoff/models"
	"rollcall/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix    = "cutoff:token:"
	tokenIDKeyPrefix  = "cutoff:token:id:"
	consumedKeyPrefix = "cutoff:consumed:"
	tokenSeqKey       = "cutoff:token:seq"
)

// RedisTokenStore keeps the token ledger in Redis so multiple instances
// share one ledger. The single-use guarantee comes from SETNX on a
// per-token consumed marker: exactly one concurrent Consume wins the key.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(eventID int64, value string) string {
	return fmt.Sprintf("%s%d:%s", tokenKeyPrefix, eventID, value)
}

func tokenIDKey(tokenID int64) string {
	return fmt.Sprintf("%s%d", tokenIDKeyPrefix, tokenID)
}

func consumedKey(tokenID int64) string {
	return fmt.Sprintf("%s%d", consumedKeyPrefix, tokenID)
}

func eventIndexKey(eventID int64) string {
	return fmt.Sprintf("cutoff:event:%d:tokens", eventID)
}

func (s *RedisTokenStore) Create(ctx context.Context, token *models.Token) error {
	id, err := s.client.Incr(ctx, tokenSeqKey).Result()
	if err != nil {
		return fmt.Errorf("allocate token id: %w", err)
	}
	token.ID = id

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ok, err := s.client.SetNX(ctx, tokenKey(token.EventID, token.Value), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if !ok {
		return fmt.Errorf("token %q for event %d: %w", token.Value, token.EventID, sentinel.ErrConflict)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, tokenIDKey(token.ID), payload, 0)
	pipe.SAdd(ctx, eventIndexKey(token.EventID), token.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) FindByValue(ctx context.Context, eventID int64, value string) (*models.Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(eventID, value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("token for event %d: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	token, err := unmarshalToken(raw)
	if err != nil {
		return nil, err
	}
	return s.withConsumption(ctx, token)
}

func (s *RedisTokenStore) ListByEvent(ctx context.Context, eventID int64) ([]models.Token, error) {
	ids, err := s.client.SMembers(ctx, eventIndexKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	var out []models.Token
	for _, id := range ids {
		raw, err := s.client.Get(ctx, tokenIDKeyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load token %s: %w", id, err)
		}
		token, err := unmarshalToken(raw)
		if err != nil {
			return nil, err
		}
		token, err = s.withConsumption(ctx, token)
		if err != nil {
			return nil, err
		}
		out = append(out, *token)
	}
	return out, nil
}

// Consume claims the per-token consumed marker with SETNX. The marker is
// the source of truth for consumption; the token payload is refreshed
// best-effort afterwards for readers.
func (s *RedisTokenStore) Consume(ctx context.Context, tokenID int64, note string, now time.Time) error {
	raw, err := s.client.Get(ctx, tokenIDKey(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	marker := consumption{Note: note, ConsumedAt: now}
	markerPayload, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("marshal consumption: %w", err)
	}
	won, err := s.client.SetNX(ctx, consumedKey(tokenID), markerPayload, 0).Result()
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if !won {
		return fmt.Errorf("token %d: %w", tokenID, sentinel.ErrAlreadyUsed)
	}

	token, err := unmarshalToken(raw)
	if err != nil {
		return err
	}
	token.Consumed = true
	token.Note = note
	token.ConsumedAt = now
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, tokenIDKey(tokenID), payload, 0)
	pipe.Set(ctx, tokenKey(token.EventID, token.Value), payload, 0)
	_, err = pipe.Exec(ctx)
	return err
}

type consumption struct {
	Note       string    `json:"note"`
	ConsumedAt time.Time `json:"consumedAt"`
}

// withConsumption overlays the consumed marker onto the token payload so
// readers see a burn even before the payload refresh landed.
func (s *RedisTokenStore) withConsumption(ctx context.Context, token *models.Token) (*models.Token, error) {
	if token.Consumed {
		return token, nil
	}
	raw, err := s.client.Get(ctx, consumedKey(token.ID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return token, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load consumption: %w", err)
	}
	var marker consumption
	if err := json.Unmarshal(raw, &marker); err != nil {
		return nil, fmt.Errorf("unmarshal consumption: %w", err)
	}
	token.Consumed = true
	token.Note = marker.Note
	token.ConsumedAt = marker.ConsumedAt
	return token, nil
}

func unmarshalToken(raw []byte) (*models.Token, error) {
	var token models.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return &token, nil
}
