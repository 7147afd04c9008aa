package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisPublishTimeout = 2 * time.Second
	redisQueueSize      = 256
)

// RedisMirror republishes events as JSON on a redis pub/sub channel. Events
// are queued and sent from a single goroutine, so Publish never waits for
// redis. Events that find the queue full are dropped.
type RedisMirror struct {
	client  *redis.Client
	channel string

	queue     chan *Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisMirror creates a mirror to the redis server at url
// (redis://host:port/db) publishing on channel, and starts its sender
func NewRedisMirror(url string, channel string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redis url %s", url)
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm := &RedisMirror{
		client:  redis.NewClient(opts),
		channel: channel,
		queue:   make(chan *Event, redisQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	spawn("RedisMirror.send", rm.send)
	return rm, nil
}

// Ping checks that the redis server is reachable
func (rm *RedisMirror) Ping(ctx context.Context) error {
	return errors.WithStack(rm.client.Ping(ctx).Err())
}

// Publish implements Publisher
func (rm *RedisMirror) Publish(event *Event) {
	if rm.ctx.Err() != nil {
		return
	}
	select {
	case rm.queue <- event:
	default:
		log.Warnf("Redis mirror queue is full, dropping event %s", event)
	}
}

func (rm *RedisMirror) send() {
	defer close(rm.done)
	for {
		select {
		case <-rm.ctx.Done():
			return
		case event := <-rm.queue:
			rm.mirror(event)
		}
	}
}

func (rm *RedisMirror) mirror(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Failed to encode event %s: %s", event, err)
		return
	}

	ctx, cancel := context.WithTimeout(rm.ctx, redisPublishTimeout)
	defer cancel()
	receivers, err := rm.client.Publish(ctx, rm.channel, payload).Result()
	if err != nil {
		log.Warnf("Failed to mirror event %s to redis: %s", event, err)
		return
	}
	log.Tracef("Mirrored event %s to %d redis receivers", event, receivers)
}

// Subscribe returns a redis subscription to the mirrored channel. Close the
// returned PubSub when done.
func (rm *RedisMirror) Subscribe(ctx context.Context) *redis.PubSub {
	return rm.client.Subscribe(ctx, rm.channel)
}

// Close stops the sender, dropping queued events, and closes the redis
// client
func (rm *RedisMirror) Close() error {
	var err error
	rm.closeOnce.Do(func() {
		rm.cancel()
		<-rm.done
		err = errors.WithStack(rm.client.Close())
	})
	return err
}
