package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const closingsKey = "auction:closings"

// RedisScheduleStore keeps the durable close-task index in a Redis
// sorted set scored by end time. Only the recovery path depends on it;
// whether an auction still needs closing is always derived from its
// lifecycle state.
type RedisScheduleStore struct {
	client *redis.Client
}

// NewRedisScheduleStore creates a Redis-backed schedule store
func NewRedisScheduleStore(client *redis.Client) *RedisScheduleStore {
	return &RedisScheduleStore{client: client}
}

// Add records a pending close task for the auction
func (s *RedisScheduleStore) Add(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error {
	err := s.client.ZAdd(ctx, closingsKey, redis.Z{
		Score:  float64(endTime.Unix()),
		Member: auctionID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record close schedule: %w", err)
	}
	return nil
}

// Remove drops the close task once it completed or was cancelled
func (s *RedisScheduleStore) Remove(ctx context.Context, auctionID uuid.UUID) error {
	if err := s.client.ZRem(ctx, closingsKey, auctionID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove close schedule: %w", err)
	}
	return nil
}

// Due returns auction IDs whose end time is at or before now
func (s *RedisScheduleStore) Due(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	members, err := s.client.ZRangeByScore(ctx, closingsKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due close schedules: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MemoryScheduleStore is a non-durable schedule store for single-process
// deployments and tests.
type MemoryScheduleStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]time.Time
}

// NewMemoryScheduleStore creates an in-memory schedule store
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{entries: make(map[uuid.UUID]time.Time)}
}

// Add records a pending close task for the auction
func (s *MemoryScheduleStore) Add(ctx context.Context, auctionID uuid.UUID, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[auctionID] = endTime
	return nil
}

// Remove drops the close task
func (s *MemoryScheduleStore) Remove(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, auctionID)
	return nil
}

// Due returns auction IDs whose end time is at or before now
func (s *MemoryScheduleStore) Due(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, endTime := range s.entries {
		if !endTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
