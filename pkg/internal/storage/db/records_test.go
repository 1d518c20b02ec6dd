package db_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/storage/db"
)

func newTestClient(t *testing.T) *db.Client {
	t.Helper()

	cfg := &configs.DBConfig{
		Type:      configs.SQLite,
		Database:  "test",
		DSN:       "file:" + filepath.Join(t.TempDir(), "meta.db"),
		OpTimeout: 5 * time.Second,
	}

	client, err := db.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.AutoMigrate(context.Background()))

	return client
}

func newRecord(name string, created time.Time) *model.FileRecord {
	uid := uuid.NewString()

	return &model.FileRecord{
		UID:          uid,
		OriginalName: name,
		Size:         3,
		ContentType:  "text/plain",
		LocalPath:    filepath.Join("/srv/storage", uid+"_"+name),
		CreatedAt:    created,
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec := newRecord("a.txt", time.Now())
	require.NoError(t, c.Insert(ctx, rec))

	got, err := c.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
	assert.Equal(t, rec.LocalPath, got.LocalPath)
	assert.Nil(t, got.RemoteURL)
	assert.False(t, got.Replicated())

	_, err = c.GetByUID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestInsertDuplicateUID(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec := newRecord("a.txt", time.Now())
	require.NoError(t, c.Insert(ctx, rec))

	dup := *rec
	dup.ID = 0
	assert.Error(t, c.Insert(ctx, &dup))
}

func TestSetRemoteURLOnlyOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec := newRecord("a.txt", time.Now())
	require.NoError(t, c.Insert(ctx, rec))

	ok, err := c.SetRemoteURL(ctx, rec.UID, "http://s3/bucket/first")
	require.NoError(t, err)
	assert.True(t, ok)

	// remote_url 写入后不会被覆盖
	ok, err = c.SetRemoteURL(ctx, rec.UID, "http://s3/bucket/second")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteURL)
	assert.Equal(t, "http://s3/bucket/first", *got.RemoteURL)
	assert.Equal(t, rec.RemoteKey(), got.RemoteKey())
}

func TestSetRemoteURLAfterDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec := newRecord("a.txt", time.Now())
	require.NoError(t, c.Insert(ctx, rec))

	deleted, err := c.Delete(ctx, rec.UID)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err := c.SetRemoteURL(ctx, rec.UID, "http://s3/bucket/x")
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err = c.Delete(ctx, rec.UID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMarkReplicationFailureAndUnreplicated(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	now := time.Now()
	old := newRecord("old.bin", now.Add(-time.Hour))
	young := newRecord("young.bin", now)
	exhausted := newRecord("exhausted.bin", now.Add(-2*time.Hour))
	done := newRecord("done.bin", now.Add(-3*time.Hour))

	for _, r := range []*model.FileRecord{old, young, exhausted, done} {
		require.NoError(t, c.Insert(ctx, r))
	}

	_, err := c.SetRemoteURL(ctx, done.UID, "http://s3/bucket/done")
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, c.MarkReplicationFailure(ctx, exhausted.UID, "boom"))
	}

	got, err := c.GetByUID(ctx, exhausted.UID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ReplicationAttempts)
	assert.Equal(t, "boom", got.LastReplicationError)

	recs, err := c.ListUnreplicated(ctx, now.Add(-10*time.Minute), 3, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, old.UID, recs[0].UID)

	n, err := c.CountUnreplicated(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestMarkReplicationFailureTruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec := newRecord("long.bin", time.Now())
	require.NoError(t, c.Insert(ctx, rec))

	// 第 1024 字节落在多字节字符中间
	reason := "ab" + strings.Repeat("错", 400)
	require.NoError(t, c.MarkReplicationFailure(ctx, rec.UID, reason))

	got, err := c.GetByUID(ctx, rec.UID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got.LastReplicationError))
	assert.Len(t, got.LastReplicationError, 1022)
	assert.True(t, strings.HasPrefix(reason, got.LastReplicationError))
}

func TestAllAndList(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	base := time.Now().Add(-time.Hour)
	for i := range 25 {
		require.NoError(t, c.Insert(ctx, newRecord(fmt.Sprintf("f%02d.txt", i), base.Add(time.Duration(i)*time.Second))))
	}

	all, err := c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 25)

	for _, r := range all {
		assert.NotEmpty(t, r.UID)
		assert.NotEmpty(t, r.LocalPath)
	}

	page, total, err := c.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, page, 10)
	assert.Equal(t, "f24.txt", page[0].OriginalName)

	page, _, err = c.List(ctx, 20, 10)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestPingAndTables(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.Ping(ctx))

	tables, err := c.Tables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "file_metadata")
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := db.New(context.Background(), &configs.DBConfig{Type: "duckdb", DSN: "x"})
	assert.Error(t, err)
}
