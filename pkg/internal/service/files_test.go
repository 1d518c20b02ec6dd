package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	"github.com/yeisme/syncvault/pkg/queue"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"a.txt":              "a.txt",
		"dir/sub/b.bin":      "b.bin",
		"..\\..\\win.txt":    "win.txt",
		"../../etc/passwd":   "passwd",
		"  spaced name.md  ": "spaced name.md",
	}
	for in, want := range cases {
		got, err := service.SanitizeName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", ".", "..", "/", "   "} {
		_, err := service.SanitizeName(bad)
		assert.ErrorIs(t, err, service.ErrInvalidName, bad)
	}

	assert.Equal(t, 214, service.MaxNameLength)

	longest := strings.Repeat("n", service.MaxNameLength)
	got, err := service.SanitizeName(longest)
	require.NoError(t, err)
	assert.Equal(t, longest, got)

	_, err = service.SanitizeName(longest + "x")
	assert.ErrorIs(t, err, service.ErrInvalidName)
}

func TestUploadLongestName(t *testing.T) {
	env := newEnv(t)

	name := strings.Repeat("n", service.MaxNameLength-4) + ".txt"
	rec := env.upload(t, name, "edge")

	assert.Equal(t, name, rec.OriginalName)
	assert.Len(t, filepath.Base(rec.LocalPath), 255-len(local.TempSuffix))

	_, err := os.Stat(rec.LocalPath)
	require.NoError(t, err)
}

func TestUploadStoresFileBeforeReplication(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "a.txt", "0123456789")

	assert.Len(t, rec.UID, 36)
	assert.Equal(t, "a.txt", rec.OriginalName)
	assert.EqualValues(t, 10, rec.Size)
	assert.Equal(t, "text/plain", rec.ContentType)
	assert.NotEmpty(t, rec.Checksum)
	assert.Equal(t, filepath.Join(env.blobs.Root(), rec.UID+"_a.txt"), rec.LocalPath)

	data, err := os.ReadFile(rec.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	stored, err := env.records.GetByUID(context.Background(), rec.UID)
	require.NoError(t, err)
	assert.Nil(t, stored.RemoteURL)

	// worker 未启动：任务停在队列里，远端没有任何写入
	assert.Equal(t, 1, env.repl.Stats().Depth)
	assert.Zero(t, env.remote.puts())
}

func TestUploadSniffsContentType(t *testing.T) {
	env := newEnv(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	rec, err := env.files.Upload(context.Background(), service.UploadInput{
		Name:        "pic",
		ContentType: "application/octet-stream",
		Body:        bytes.NewReader(png),
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", rec.ContentType)
	assert.EqualValues(t, len(png), rec.Size)

	data, err := os.ReadFile(rec.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestUploadInvalidName(t *testing.T) {
	env := newEnv(t)

	_, err := env.files.Upload(context.Background(), service.UploadInput{Name: "..", Body: bytes.NewBufferString("x")})
	require.ErrorIs(t, err, service.ErrInvalidName)
	assert.Empty(t, env.localFiles(t))
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("connection reset")
	}

	n := min(len(p), f.n)
	f.n -= n

	return n, nil
}

func TestUploadLocalWriteFailure(t *testing.T) {
	env := newEnv(t)

	_, err := env.files.Upload(context.Background(), service.UploadInput{
		Name:        "broken.bin",
		ContentType: "application/x-test",
		Body:        &failingReader{n: 4096},
	})
	require.ErrorIs(t, err, service.ErrLocalWrite)

	var lwe *service.LocalWriteError
	require.ErrorAs(t, err, &lwe)
	assert.Equal(t, "broken.bin", lwe.Name)

	// 没有残留文件，也没有记录
	assert.Empty(t, env.localFiles(t))

	res, err := env.files.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Zero(t, env.repl.Stats().Depth)
}

func TestUploadCancelled(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.files.Upload(ctx, service.UploadInput{
		Name:        "c.txt",
		ContentType: "text/plain",
		Body:        bytes.NewBufferString("data"),
	})
	require.ErrorIs(t, err, service.ErrLocalWrite)
	assert.Empty(t, env.localFiles(t))
}

type failingInsert struct {
	service.RecordStore
}

func (failingInsert) Insert(context.Context, *model.FileRecord) error {
	return errors.New("database is locked")
}

func TestUploadInsertFailureRemovesFile(t *testing.T) {
	env := newEnv(t)
	files := service.NewFileService(failingInsert{env.records}, env.blobs, env.remote, env.repl, nil)

	_, err := files.Upload(context.Background(), service.UploadInput{
		Name: "a.txt", ContentType: "text/plain", Body: bytes.NewBufferString("abc"),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrLocalWrite)
	assert.Empty(t, env.localFiles(t))
	assert.Zero(t, env.repl.Stats().Depth)
}

func TestUploadPublishesEvent(t *testing.T) {
	env := newEnv(t)

	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx, queue.TopicFileStored)
	require.NoError(t, err)

	events := configs.EventsConfig{Enabled: true, File: configs.FileEventsConfig{Stored: true}}
	files := service.NewFileService(env.records, env.blobs, env.remote, env.repl, queue.NewEmitter(bus, events, time.Second))

	rec, err := files.Upload(ctx, service.UploadInput{Name: "e.txt", ContentType: "text/plain", Body: bytes.NewBufferString("evt")})
	require.NoError(t, err)

	select {
	case m := <-ch:
		m.Ack()

		msg, err := queue.ParseWatermillMessage[queue.FilePayload](m)
		require.NoError(t, err)
		assert.Equal(t, rec.UID, msg.Payload.File.UID)
		assert.Equal(t, rec.LocalPath, msg.Payload.File.LocalPath)
	case <-ctx.Done():
		t.Fatal("file stored event not received")
	}
}

func TestGetAndOpen(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "g.txt", "hello")

	got, err := env.files.Get(ctx, rec.UID)
	require.NoError(t, err)
	assert.Equal(t, rec.UID, got.UID)

	_, f, err := env.files.Open(ctx, rec.UID)
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "hello", string(data))

	_, err = env.files.Get(ctx, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, os.Remove(rec.LocalPath))

	_, err = env.files.Get(ctx, rec.UID)
	assert.ErrorIs(t, err, service.ErrMissingOnDisk)

	_, _, err = env.files.Open(ctx, rec.UID)
	assert.ErrorIs(t, err, service.ErrMissingOnDisk)
}

func TestList(t *testing.T) {
	env := newEnv(t)

	for _, name := range []string{"1.txt", "2.txt", "3.txt"} {
		env.upload(t, name, name)
	}

	res, err := env.files.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Len(t, res.Items, 2)

	res, err = env.files.List(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	res, err = env.files.List(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, service.MaxPageSize, res.Size)
}

func TestDeleteScenario(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "a.txt", "0123456789")
	env.replicate(t, rec)

	key := rec.UID + "_a.txt"
	_, ok := env.remote.get(key)
	require.True(t, ok)

	require.NoError(t, env.files.Delete(ctx, rec.UID))

	_, err := os.Stat(rec.LocalPath)
	assert.True(t, os.IsNotExist(err))

	_, ok = env.remote.get(key)
	assert.False(t, ok)

	_, err = env.records.GetByUID(ctx, rec.UID)
	assert.Error(t, err)

	assert.ErrorIs(t, env.files.Delete(ctx, rec.UID), service.ErrNotFound)
}

func TestDeleteUnreplicated(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "local-only.txt", "x")
	require.NoError(t, env.files.Delete(context.Background(), rec.UID))
	assert.Empty(t, env.localFiles(t))
}

func TestDeleteLocalAlreadyGone(t *testing.T) {
	env := newEnv(t)

	rec := env.upload(t, "gone.txt", "x")
	require.NoError(t, os.Remove(rec.LocalPath))

	require.NoError(t, env.files.Delete(context.Background(), rec.UID))
}

func TestDeleteRemoteFailureKeepsRecord(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rec := env.upload(t, "r.txt", "remote")
	env.replicate(t, rec)

	env.remote.mu.Lock()
	env.remote.failRemove[rec.UID+"_r.txt"] = true
	env.remote.mu.Unlock()

	err := env.files.Delete(ctx, rec.UID)
	require.ErrorIs(t, err, service.ErrRemoteDelete)

	_, err = env.records.GetByUID(ctx, rec.UID)
	require.NoError(t, err)

	env.remote.mu.Lock()
	delete(env.remote.failRemove, rec.UID+"_r.txt")
	env.remote.mu.Unlock()

	// 客户端重试即可完成删除
	require.NoError(t, env.files.Delete(ctx, rec.UID))
}
