package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRedis struct {
	mu        sync.Mutex
	data      map[string]string
	published []string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return nil }
func (f *fakeRedis) StorageKey(key string) string { return "sp:storage:" + key }
func (f *fakeRedis) ChangesChannel() string { return "sp:changes:storage" }

func (f *fakeRedis) lastPublished() (changeMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return changeMessage{}, false
	}
	var msg changeMessage
	_ = json.Unmarshal([]byte(f.published[len(f.published)-1]), &msg)
	return msg, true
}

func TestRedis_SetPublishesChange(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	backend := NewRedis(client, nil, nil)
	defer backend.Close()

	require.NoError(t, backend.Set(ctx, "session:s:token", `"abc"`))
	v, ok, err := backend.Get(ctx, "session:s:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"abc"`, v)

	msg, ok := client.lastPublished()
	require.True(t, ok)
	assert.Equal(t, "session:s:token", msg.Key)
	assert.Equal(t, backend.origin, msg.Origin)

	require.NoError(t, backend.Delete(ctx, "session:s:token"))
	msg, _ = client.lastPublished()
	assert.True(t, msg.Deleted)
}

func TestRedis_RemoteChangesUpdateCells(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	messages := make(chan *goredis.Message, 4)
	backend := NewRedis(newFakeRedis(), messages, nil)
	cell := NewCell(backend, "prefs:s:sidebarCompact", false, nil)
	cell.Load(ctx)

	remote := func(msg changeMessage) {
		payload, _ := json.Marshal(msg)
		messages <- &goredis.Message{Channel: "sp:changes:storage", Payload: string(payload)}
	}

	remote(changeMessage{Origin: "other-instance", Key: "prefs:s:sidebarCompact", Value: "true"})
	require.Eventually(t, cell.Get, time.Second, 5*time.Millisecond)

	// our own echo is dropped
	remote(changeMessage{Origin: backend.origin, Key: "prefs:s:sidebarCompact", Value: "false"})
	messages <- &goredis.Message{Payload: "garbage"}
	remote(changeMessage{Origin: "other-instance", Key: "prefs:s:sidebarCompact", Deleted: true})
	require.Eventually(t, func() bool { return !cell.Present() }, time.Second, 5*time.Millisecond)

	cell.Close()
	require.NoError(t, backend.Close())
}
