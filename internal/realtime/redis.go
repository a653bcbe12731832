package realtime

import (
	"context"
	"log/slog"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

const channelPrefix = "fanout:"

// RedisFabric extends the local fabric across nodes with Redis pub/sub.
// Every publish goes through Redis; the node's own subscription relays it
// back into the local fabric, so local and remote subscribers follow the
// same path and per-connection ordering is preserved by the channel.
type RedisFabric struct {
	local  *LocalFabric
	client *redis.Client
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*groupSub
}

type groupSub struct {
	pubsub  *redis.PubSub
	members map[string]struct{}
}

var _ Fabric = (*RedisFabric)(nil)

func NewRedisFabric(client *redis.Client, log *slog.Logger) *RedisFabric {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisFabric{
		local:  NewLocalFabric(),
		client: client,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*groupSub),
	}
}

// Join registers the subscriber locally and makes sure this node holds a
// Redis subscription for the group. Membership is a set of connection ids,
// mirroring the local fabric, so repeated Join or Leave calls for the same
// connection cannot tear the channel down while others are still joined.
func (f *RedisFabric) Join(group, connectionID string, sub Subscriber) {
	f.local.Join(group, connectionID, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gs, ok := f.subs[group]; ok {
		gs.members[connectionID] = struct{}{}
		return
	}
	pubsub := f.client.Subscribe(f.ctx, channelPrefix+group)
	f.subs[group] = &groupSub{
		pubsub:  pubsub,
		members: map[string]struct{}{connectionID: {}},
	}
	go f.relay(group, pubsub)
}

func (f *RedisFabric) relay(group string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		f.local.Publish(group, []byte(msg.Payload))
	}
}

// Leave removes one connection from the group's membership set. Leaves for
// connections that never joined are no-ops; only the last member's departure
// closes the Redis subscription.
func (f *RedisFabric) Leave(group, connectionID string) {
	f.local.Leave(group, connectionID)

	f.mu.Lock()
	defer f.mu.Unlock()
	gs, ok := f.subs[group]
	if !ok {
		return
	}
	if _, joined := gs.members[connectionID]; !joined {
		return
	}
	delete(gs.members, connectionID)
	if len(gs.members) > 0 {
		return
	}
	delete(f.subs, group)
	if err := gs.pubsub.Close(); err != nil {
		f.log.Warn("redis fabric: closing group subscription", "group", group, "err", err)
	}
}

// Publish sends through Redis and reports the number of subscribed receivers
// cluster-wide. Zero means no node holds a live connection for the group.
func (f *RedisFabric) Publish(group string, payload []byte) int {
	n, err := f.client.Publish(f.ctx, channelPrefix+group, payload).Result()
	if err != nil {
		f.log.Error("redis fabric: publish", "group", group, "err", err)
		return 0
	}
	return int(n)
}

func (f *RedisFabric) Close() {
	f.cancel()
	f.mu.Lock()
	for group, gs := range f.subs {
		_ = gs.pubsub.Close()
		delete(f.subs, group)
	}
	f.mu.Unlock()
	f.local.Close()
}
