package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 5 * time.Minute

// Store keeps a short-lived online marker per user in Redis.
// Keys: <prefix>:presence:<userID> -> last seen unix time
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewStore(r redis.Cmdable, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: r, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID int) string { return fmt.Sprintf("%s:presence:%d", s.prefix, userID) }

// Touch marks the user online for another ttl.
func (s *Store) Touch(ctx context.Context, userID int) error {
	return s.client.Set(ctx, s.key(userID), time.Now().Unix(), s.ttl).Err()
}

func (s *Store) Online(ctx context.Context, userID int) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineMany reports presence for many users at once, in input order.
func (s *Store) OnlineMany(ctx context.Context, userIDs []int) ([]bool, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]bool, len(userIDs))
	for i, c := range cmds {
		out[i] = c.Val() > 0
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, userID int) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
