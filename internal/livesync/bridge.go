package livesync

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "livesync:"

// PubSub is the slice of the Redis client the bridge needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
}

// Bridge publishes through Redis so every instance sees every event, and
// feeds what it receives into the local broker.
type Bridge struct {
	rdb        PubSub
	local      *Broker
	log        *logrus.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewBridge(rdb PubSub, local *Broker, log *logrus.Logger) *Bridge {
	return &Bridge{
		rdb:        rdb,
		local:      local,
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Publish sends ev to Redis. When Redis is unreachable the event is still
// delivered to this instance.
func (b *Bridge) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, channelPrefix+ev.Topic, payload); err != nil {
		b.log.WithError(err).WithField("topic", ev.Topic).Warn("redis publish failed, delivering locally")
		b.local.Deliver(ev)
	}
	return nil
}

// Run consumes the Redis feed until ctx is done. Every resubscription after
// the first invalidates local subscriptions so their owners resync.
func (b *Bridge) Run(ctx context.Context) {
	backoff := b.minBackoff
	connected := false

	for ctx.Err() == nil {
		ps := b.rdb.PSubscribe(ctx, channelPrefix+"*")
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			if ctx.Err() != nil {
				return
			}
			b.log.WithError(err).WithField("retry_in", backoff.String()).Error("live sync subscribe failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, b.maxBackoff)
			continue
		}

		if connected {
			b.log.Warn("live sync feed reconnected, invalidating local subscriptions")
			b.local.Invalidate()
		}
		connected = true
		backoff = b.minBackoff

		b.consume(ctx, ps)
		_ = ps.Close()
	}
}

func (b *Bridge) consume(ctx context.Context, ps *redis.PubSub) {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.log.WithError(err).Warn("live sync feed interrupted")
			}
			return
		}
		b.handle(msg.Channel, msg.Payload)
	}
}

func (b *Bridge) handle(channel, payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.log.WithError(err).WithField("channel", channel).Warn("discarding malformed live sync payload")
		return
	}
	if ev.Topic == "" {
		ev.Topic = strings.TrimPrefix(channel, channelPrefix)
	}
	b.local.Deliver(ev)
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
