package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
)

// ValkeyStore keeps transcripts in Valkey lists that expire with the session.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "offlineqa"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Append(ctx context.Context, sessionID string, msgs []conversation.Message, ttl time.Duration, maxMessages int) error {
	if len(msgs) == 0 {
		return nil
	}
	elements := make([]string, len(msgs))
	for i, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		elements[i] = string(payload)
	}
	key := s.sessionKey(sessionID)
	cmds := valkey.Commands{s.client.B().Rpush().Key(key).Element(elements...).Build()}
	if maxMessages > 0 {
		cmds = append(cmds, s.client.B().Ltrim().Key(key).Start(int64(-maxMessages)).Stop(-1).Build())
	}
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmds = append(cmds, s.client.B().Expire().Key(key).Seconds(int64(ttl/time.Second)).Build())
	}
	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ValkeyStore) Messages(ctx context.Context, sessionID string) ([]conversation.Message, bool, error) {
	items, err := s.client.Do(ctx, s.client.B().Lrange().Key(s.sessionKey(sessionID)).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	out := make([]conversation.Message, 0, len(items))
	for _, item := range items {
		var msg conversation.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, false, fmt.Errorf("decode session message: %w", err)
		}
		out = append(out, msg)
	}
	return out, true, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(sessionID)).Build()).Error()
}

func (s *ValkeyStore) IncrementQuery(ctx context.Context, canonical, display string) error {
	if canonical == "" {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Zincrby().Key(s.trendingKey()).Increment(1).Member(canonical).Build()).Error(); err != nil {
		return err
	}
	if display != "" {
		_ = s.client.Do(ctx, s.client.B().Set().Key(s.displayKey(canonical)).Value(display).Nx().Build()).Error()
	}
	return nil
}

// TopQueries returns the highest scored queries. Scores arrive as RESP3
// doubles or RESP2 strings depending on the server protocol.
func (s *ValkeyStore) TopQueries(ctx context.Context, limit int) ([]conversation.TrendingQuery, error) {
	// limit <= 0 returns every entry, as MemoryStore does
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	resp := s.client.Do(ctx, s.client.B().Zrevrange().Key(s.trendingKey()).Start(0).Stop(stop).Withscores().Build())
	arr, err := resp.ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]conversation.TrendingQuery, 0, len(arr))
	for i := 0; i < len(arr); {
		var (
			member string
			score  float64
		)
		if tuple, tupleErr := arr[i].ToArray(); tupleErr == nil && len(tuple) == 2 {
			// RESP3 returns [member, score] per element
			if member, err = tuple[0].ToString(); err != nil {
				return nil, err
			}
			if score, err = tuple[1].AsFloat64(); err != nil {
				return nil, err
			}
			i++
		} else {
			// RESP2 returns a flat alternating array
			if i+1 >= len(arr) {
				break
			}
			if member, err = arr[i].ToString(); err != nil {
				return nil, err
			}
			if score, err = arr[i+1].AsFloat64(); err != nil {
				return nil, err
			}
			i += 2
		}
		out = append(out, conversation.TrendingQuery{Query: s.fetchDisplay(ctx, member), Count: int64(score)})
	}
	return out, nil
}

func (s *ValkeyStore) fetchDisplay(ctx context.Context, canonical string) string {
	display, err := s.client.Do(ctx, s.client.B().Get().Key(s.displayKey(canonical)).Build()).ToString()
	if err != nil || display == "" {
		return canonical
	}
	return display
}

func (s *ValkeyStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *ValkeyStore) trendingKey() string {
	return fmt.Sprintf("%s:trending", s.prefix)
}

func (s *ValkeyStore) displayKey(canonical string) string {
	return fmt.Sprintf("%s:display:%s", s.prefix, canonical)
}

var _ conversation.Store = (*ValkeyStore)(nil)
