package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	empty, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.ByType)

	a := newRecord("a.txt", time.Now())
	b := newRecord("b.txt", time.Now())
	img := newRecord("c.png", time.Now())
	img.ContentType = "image/png"
	img.Size = 10

	require.NoError(t, c.Insert(ctx, a))
	require.NoError(t, c.Insert(ctx, b))
	require.NoError(t, c.Insert(ctx, img))

	ok, err := c.SetRemoteURL(ctx, a.UID, "http://remote/a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.MarkReplicationFailure(ctx, b.UID, "boom"))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 16, stats.TotalSize)
	assert.EqualValues(t, 1, stats.Replicated)
	assert.EqualValues(t, 2, stats.Unreplicated)
	assert.EqualValues(t, 1, stats.Failing)

	require.Len(t, stats.ByType, 2)
	assert.Equal(t, "text", stats.ByType[0].Type)
	assert.EqualValues(t, 2, stats.ByType[0].Count)
	assert.Equal(t, "image", stats.ByType[1].Type)
	assert.EqualValues(t, 10, stats.ByType[1].Size)
}
