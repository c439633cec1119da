package embedcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/offlineqa/internal/infra/embedder"
)

// ValkeyCache stores vectors as little-endian float32 blobs.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache constructs a cache backed by Valkey.
func NewValkeyCache(client valkey.Client, prefix string) *ValkeyCache {
	if prefix == "" {
		prefix = "offlineqa"
	}
	return &ValkeyCache{client: client, prefix: prefix}
}

func (c *ValkeyCache) GetMany(ctx context.Context, keys []string) (map[string][]float32, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.key(key)
	}
	arr, err := c.client.Do(ctx, c.client.B().Mget().Key(full...).Build()).ToArray()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(keys))
	for i, item := range arr {
		if i >= len(keys) {
			break
		}
		payload, err := item.ToString()
		if err != nil {
			if valkey.IsValkeyNil(err) {
				continue
			}
			return nil, err
		}
		vec, err := decodeVector([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode cached vector %s: %w", keys[i], err)
		}
		out[keys[i]] = vec
	}
	return out, nil
}

func (c *ValkeyCache) SetMany(ctx context.Context, items map[string][]float32, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	cmds := make(valkey.Commands, 0, len(items))
	for key, vec := range items {
		builder := c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(encodeVector(vec)))
		if ttl > 0 {
			if ttl < time.Second {
				ttl = time.Second
			}
			cmds = append(cmds, builder.Ex(ttl).Build())
		} else {
			cmds = append(cmds, builder.Build())
		}
	}
	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ValkeyCache) key(key string) string {
	return fmt.Sprintf("%s:emb:%s", c.prefix, key)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

var _ embedder.Cache = (*ValkeyCache)(nil)
