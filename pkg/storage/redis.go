package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/redis"
)

// RedisClient is the slice of pkg/redis the backend needs.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message any) error
	Ping(ctx context.Context) error
	StorageKey(key string) string
	ChangesChannel() string
}

type changeMessage struct {
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Redis keeps values in redis and spreads change notices over pub/sub so
// every gateway instance sees the others' writes.
type Redis struct {
	client RedisClient
	origin string
	logg   *logger.Logger

	watch     watchers
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	closeSub  func() error
}

// OpenRedis subscribes to the change channel and starts the backend.
func OpenRedis(ctx context.Context, client *redis.Client, logg *logger.Logger) (*Redis, error) {
	sub, err := client.Subscribe(ctx, client.ChangesChannel())
	if err != nil {
		return nil, err
	}
	r := NewRedis(client, sub.Channel(), logg)
	r.closeSub = sub.Close
	return r, nil
}

// NewRedis builds the backend over an existing message stream.
func NewRedis(client RedisClient, messages <-chan *goredis.Message, logg *logger.Logger) *Redis {
	if logg == nil {
		logg = logger.Nop()
	}
	r := &Redis{
		client: client,
		origin: uuid.NewString(),
		logg:   logg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if messages == nil {
		close(r.doneCh)
		return r
	}
	go r.run(messages)
	return r
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.client.StorageKey(key))
	if redis.IsNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.client.StorageKey(key), value, 0); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	r.watch.notify(Change{Key: key, Value: value})
	r.publish(ctx, changeMessage{Key: key, Value: value})
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.client.StorageKey(key)); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	r.watch.notify(Change{Key: key, Deleted: true})
	r.publish(ctx, changeMessage{Key: key, Deleted: true})
	return nil
}

// publish failures only cost other instances their notification.
func (r *Redis) publish(ctx context.Context, msg changeMessage) {
	msg.Origin = r.origin
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logg.Error(ctx, "encode storage change", err)
		return
	}
	if err := r.client.Publish(ctx, r.client.ChangesChannel(), string(payload)); err != nil {
		r.logg.Error(r.logg.WithField(ctx, "storage_key", msg.Key), "publish storage change", err)
	}
}

func (r *Redis) Watch(fn func(Change)) func() {
	return r.watch.add(fn)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close stops listening for changes. The redis client itself stays open.
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		if r.closeSub != nil {
			err = r.closeSub()
		}
		<-r.doneCh
		r.watch.clear()
	})
	return err
}

func (r *Redis) run(messages <-chan *goredis.Message) {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			r.handle(msg)
		}
	}
}

func (r *Redis) handle(msg *goredis.Message) {
	if msg == nil {
		return
	}
	var change changeMessage
	if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
		r.logg.Warn(r.logg.WithField(context.Background(), "channel", msg.Channel), "ignoring malformed storage change")
		return
	}
	if change.Origin == r.origin || change.Key == "" {
		return
	}
	r.watch.notify(Change{Key: change.Key, Value: change.Value, Deleted: change.Deleted})
}
