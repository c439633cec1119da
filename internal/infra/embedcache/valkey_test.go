package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func TestValkeyCacheRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	cache := NewValkeyCache(client, "")
	vec := []float32{0.25, -1.5, 3}

	var stored string
	client.EXPECT().DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...valkey.Completed) []valkey.ValkeyResult {
			require.Len(t, cmds, 1)
			args := cmds[0].Commands()
			require.Equal(t, []string{"SET", "offlineqa:emb:model:abc"}, args[:2])
			require.Equal(t, []string{"EX", "3600"}, args[3:])
			stored = args[2]
			return []valkey.ValkeyResult{mock.Result(mock.ValkeyString("OK"))}
		})
	require.NoError(t, cache.SetMany(context.Background(), map[string][]float32{"model:abc": vec}, time.Hour))

	client.EXPECT().Do(gomock.Any(), mock.Match("MGET", "offlineqa:emb:model:abc", "offlineqa:emb:model:missing")).
		DoAndReturn(func(context.Context, valkey.Completed) valkey.ValkeyResult {
			return mock.Result(mock.ValkeyArray(mock.ValkeyString(stored), mock.ValkeyNil()))
		})
	got, err := cache.GetMany(context.Background(), []string{"model:abc", "model:missing"})
	require.NoError(t, err)
	require.Equal(t, map[string][]float32{"model:abc": vec}, got)
}

func TestValkeyCacheSetWithoutTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	cache := NewValkeyCache(client, "qa")
	vec := []float32{1}

	client.EXPECT().DoMulti(gomock.Any(), mock.Match("SET", "qa:emb:k", string(encodeVector(vec)))).
		Return([]valkey.ValkeyResult{mock.Result(mock.ValkeyString("OK"))})
	require.NoError(t, cache.SetMany(context.Background(), map[string][]float32{"k": vec}, 0))
}

func TestValkeyCacheRejectsCorruptPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	cache := NewValkeyCache(client, "")

	client.EXPECT().Do(gomock.Any(), mock.Match("MGET", "offlineqa:emb:k")).
		Return(mock.Result(mock.ValkeyArray(mock.ValkeyString("abc"))))
	_, err := cache.GetMany(context.Background(), []string{"k"})
	require.ErrorContains(t, err, "not a multiple of 4")
}
