package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "profile:u-1", ProfileKey("u-1"))
	assert.Equal(t, "meta:activity:u-1", UserActivityKey("u-1"))
}

func TestMockRecordActivity(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, m.Set(ctx, ProfileKey("u-1"), `{}`, time.Minute))
	require.NoError(t, m.RecordActivity(ctx, "u-1", "product_view", at, time.Hour))
	require.NoError(t, m.RecordActivity(ctx, "u-1", "product_view", at.Add(time.Second), time.Hour))

	_, err := m.Get(ctx, ProfileKey("u-1"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	h := m.Hashes[UserActivityKey("u-1")]
	assert.Equal(t, "2", h["product_view"])
	assert.Equal(t, "1700000001000", h[FieldLastInteraction])
	assert.Equal(t, time.Hour, m.TTLs[UserActivityKey("u-1")])

	m.ActivityErr = errors.New("down")
	assert.Error(t, m.RecordActivity(ctx, "u-1", "search_query", at, time.Hour))
}
