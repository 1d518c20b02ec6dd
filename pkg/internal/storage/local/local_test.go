package local_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
)

func newStore(t *testing.T) *local.Store {
	t.Helper()

	s, err := local.New(&configs.StorageConfig{Root: t.TempDir(), Fsync: true})
	require.NoError(t, err)

	return s
}

func TestWriteAtomic(t *testing.T) {
	s := newStore(t)
	body := "hello syncvault"

	res, err := s.Write(context.Background(), "abc_hello.txt", strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.Root(), "abc_hello.txt"), res.Path)
	assert.EqualValues(t, len(body), res.Size)
	assert.Equal(t, strconv.FormatUint(xxhash.Sum64String(body), 16), res.Checksum)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	_, err = os.Stat(res.Path + local.TempSuffix)
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("client went away")
	}

	f.n--
	p[0] = 'x'

	return 1, nil
}

func TestWriteFailureLeavesNothing(t *testing.T) {
	s := newStore(t)

	_, err := s.Write(context.Background(), "abc_broken.bin", &failingReader{n: 10})
	require.Error(t, err)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteCancelled(t *testing.T) {
	s := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Write(ctx, "abc_cancel.bin", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	ok, err := s.Exists(s.Path("abc_cancel.bin"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteExisting(t *testing.T) {
	s := newStore(t)

	_, err := s.Write(context.Background(), "dup.txt", strings.NewReader("a"))
	require.NoError(t, err)

	_, err = s.Write(context.Background(), "dup.txt", strings.NewReader("b"))
	assert.ErrorIs(t, err, local.ErrExists)
}

func TestRemoveIdempotent(t *testing.T) {
	s := newStore(t)

	res, err := s.Write(context.Background(), "gone.txt", strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(res.Path))
	require.NoError(t, s.Remove(res.Path))

	ok, err := s.Exists(res.Path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutsideRoot(t *testing.T) {
	s := newStore(t)

	assert.ErrorIs(t, s.Remove("/etc/passwd"), local.ErrOutsideRoot)
	assert.ErrorIs(t, s.Remove(filepath.Join(s.Root(), "..", "x")), local.ErrOutsideRoot)

	_, err := s.Write(context.Background(), "../escape.txt", strings.NewReader("a"))
	assert.ErrorIs(t, err, local.ErrOutsideRoot)
}

func TestWalk(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := s.Write(ctx, name, strings.NewReader(name))
		require.NoError(t, err)
	}

	nested := filepath.Join(s.Root(), "sub", "c.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("c"), 0o600))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(nested, old, old))

	var got []local.Entry

	err := s.Walk(ctx, func(e local.Entry) error {
		got = append(got, e)

		return nil
	}, nil)
	require.NoError(t, err)

	sort.Slice(got, func(i, j int) bool { return got[i].Path < got[j].Path })
	require.Len(t, got, 3)
	assert.Equal(t, s.Path("a.txt"), got[0].Path)
	assert.Equal(t, nested, got[2].Path)
	assert.WithinDuration(t, old, got[2].ModTime, time.Second)
}

func TestWalkCancelled(t *testing.T) {
	s := newStore(t)

	_, err := s.Write(context.Background(), "a.txt", strings.NewReader("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Walk(ctx, func(local.Entry) error { return nil }, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	s := newStore(t)

	res, err := s.Write(context.Background(), "r.txt", strings.NewReader("read me"))
	require.NoError(t, err)

	f, err := s.Open(res.Path)
	require.NoError(t, err)

	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "read me", string(data))
	require.NoError(t, s.Ping())
}
