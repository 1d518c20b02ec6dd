package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/internal/model"
	"github.com/yeisme/syncvault/pkg/internal/service"
	"github.com/yeisme/syncvault/pkg/internal/storage/db"
	"github.com/yeisme/syncvault/pkg/internal/storage/local"
	"github.com/yeisme/syncvault/pkg/internal/storage/s3"
)

var errRemoteDown = errors.New("remote down")

type fakeObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// fakeRemote 内存版远端对象存储.
type fakeRemote struct {
	clock clockwork.Clock

	mu         sync.Mutex
	objects    map[string]fakeObject
	failPuts   int
	putCalls   int
	failRemove map[string]bool
	listErr    error
}

func newFakeRemote(clock clockwork.Clock) *fakeRemote {
	return &fakeRemote{clock: clock, objects: map[string]fakeObject{}, failRemove: map[string]bool{}}
}

func (f *fakeRemote) ObjectURL(key string) string {
	return "http://remote.test/bucket/" + key
}

func (f *fakeRemote) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	f.mu.Lock()
	f.putCalls++
	fail := f.failPuts > 0
	if fail {
		f.failPuts--
	}
	f.mu.Unlock()

	if fail {
		return errRemoteDown
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.objects[key] = fakeObject{data: data, contentType: contentType, modTime: f.clock.Now()}

	return nil
}

func (f *fakeRemote) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRemove[key] {
		return errRemoteDown
	}

	delete(f.objects, key)

	return nil
}

func (f *fakeRemote) List(ctx context.Context, fn func(s3.Object) error) error {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()

		return f.listErr
	}

	objs := make([]s3.Object, 0, len(f.objects))
	for k, o := range f.objects {
		objs = append(objs, s3.Object{Key: k, Size: int64(len(o.data)), LastModified: o.modTime})
	}
	f.mu.Unlock()

	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	for _, o := range objs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(o); err != nil {
			return err
		}
	}

	return nil
}

func (f *fakeRemote) put(key string, data []byte, mod time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.objects[key] = fakeObject{data: data, modTime: mod}
}

func (f *fakeRemote) get(key string) (fakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.objects[key]

	return o, ok
}

func (f *fakeRemote) puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.putCalls
}

type testEnv struct {
	dbCfg   *configs.DBConfig
	records *db.Client
	blobs   *local.Store
	remote  *fakeRemote
	clock   *clockwork.FakeClock
	repl    *service.Replicator
	files   *service.FileService
}

func replicationConfig() configs.ReplicationConfig {
	return configs.ReplicationConfig{
		Workers:        2,
		QueueSize:      16,
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		RequeueEnabled: true,
		RequeueAfter:   10 * time.Minute,
		MaxRequeues:    2,
		RequeueBatch:   100,
	}
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	dbCfg := &configs.DBConfig{
		Type:      configs.SQLite,
		Database:  "test",
		DSN:       "file:" + filepath.Join(dir, "meta.db") + "?_pragma=busy_timeout(5000)",
		OpTimeout: 5 * time.Second,
	}

	records, err := db.New(ctx, dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })
	require.NoError(t, records.AutoMigrate(ctx))

	blobs, err := local.New(&configs.StorageConfig{Root: filepath.Join(dir, "storage"), Fsync: true})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Now())
	remote := newFakeRemote(clock)
	repl := service.NewReplicator(replicationConfig(), records, blobs, remote, nil, clock)
	t.Cleanup(repl.Stop)

	return &testEnv{
		dbCfg:   dbCfg,
		records: records,
		blobs:   blobs,
		remote:  remote,
		clock:   clock,
		repl:    repl,
		files:   service.NewFileService(records, blobs, remote, repl, nil),
	}
}

func (e *testEnv) opener() service.Opener {
	return func(ctx context.Context) (service.ScopedRecords, error) {
		c, err := db.New(ctx, e.dbCfg, db.WithName("scoped"))
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}

func (e *testEnv) upload(t *testing.T, name, body string) *model.FileRecord {
	t.Helper()

	rec, err := e.files.Upload(context.Background(), service.UploadInput{
		Name:        name,
		ContentType: "text/plain",
		Body:        bytes.NewBufferString(body),
	})
	require.NoError(t, err)

	return rec
}

func (e *testEnv) replicate(t *testing.T, rec *model.FileRecord) {
	t.Helper()

	require.NoError(t, e.repl.Replicate(context.Background(), service.ReplicationTask{UID: rec.UID, LocalPath: rec.LocalPath}))
}

func (e *testEnv) localFiles(t *testing.T) []string {
	t.Helper()

	var out []string

	require.NoError(t, e.blobs.Walk(context.Background(), func(en local.Entry) error {
		out = append(out, filepath.Base(en.Path))

		return nil
	}, nil))

	sort.Strings(out)

	return out
}
