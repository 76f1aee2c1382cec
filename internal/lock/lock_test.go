package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNoop(t *testing.T) {
	release, err := Noop{}.Obtain(context.Background(), "k", time.Second)
	require.NoError(t, err)
	release()
}

func TestRedisLockerUnavailableBackend(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l := NewRedisLocker(rdb, 0, zap.NewNop())
	_, err := l.Obtain(context.Background(), "lock:order:a:1", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotObtained)
}
