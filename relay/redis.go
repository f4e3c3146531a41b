package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookline/resync/types"
)

// RedisConfig configures a Redis-backed relay.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string

	// Password is the optional Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// Channel is the pub/sub channel for invalidation notices.
	Channel string

	// InstanceID identifies this instance; its own notices are skipped.
	InstanceID string
}

// RedisRelay implements Relay over Redis Pub/Sub.
type RedisRelay struct {
	client         *redis.Client
	channel        string
	instanceID     string
	pubsub         *redis.PubSub
	callbacks      []func(notice types.InvalidationNotice)
	callbacksMutex sync.RWMutex
	done           chan struct{}
	wg             sync.WaitGroup
	closed         int32
}

// NewRedisRelay creates a relay and verifies the Redis connection.
func NewRedisRelay(cfg RedisConfig) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisRelay{
		client:     client,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		callbacks:  make([]func(notice types.InvalidationNotice), 0),
		done:       make(chan struct{}),
	}, nil
}

// Subscribe starts listening for invalidation notices.
func (r *RedisRelay) Subscribe(ctx context.Context) error {
	r.pubsub = r.client.Subscribe(ctx, r.channel)

	r.wg.Add(1)
	go r.listen()

	return nil
}

// Publish publishes an invalidation notice.
func (r *RedisRelay) Publish(ctx context.Context, notice types.InvalidationNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, string(data)).Err()
}

// OnNotice registers a callback for received notices.
func (r *RedisRelay) OnNotice(callback func(notice types.InvalidationNotice)) {
	r.callbacksMutex.Lock()
	defer r.callbacksMutex.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// Close closes the relay. Idempotent.
func (r *RedisRelay) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	close(r.done)
	r.wg.Wait()

	if r.pubsub != nil {
		if err := r.pubsub.Close(); err != nil {
			r.client.Close()
			return err
		}
	}
	return r.client.Close()
}

// listen dispatches received notices to the registered callbacks.
func (r *RedisRelay) listen() {
	defer r.wg.Done()

	if r.pubsub == nil {
		return
	}

	ch := r.pubsub.Channel()

	for {
		select {
		case <-r.done:
			return
		case msg := <-ch:
			if msg == nil {
				return
			}

			var notice types.InvalidationNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				continue
			}

			// Don't invalidate your own writes
			if notice.Sender == r.instanceID {
				continue
			}

			r.callbacksMutex.RLock()
			callbacks := r.callbacks
			r.callbacksMutex.RUnlock()

			for _, callback := range callbacks {
				callback(notice)
			}
		}
	}
}
