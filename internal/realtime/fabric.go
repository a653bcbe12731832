package realtime

import "sync"

// Subscriber receives payloads published to a group it joined. Deliver must
// never block; a subscriber that cannot keep up should drop the payload and
// report an error.
type Subscriber interface {
	Deliver(payload []byte) error
}

// Fabric is the group-addressed message bus connecting the dispatcher to live
// sessions. Join and Leave are idempotent; Publish is best-effort with no
// persistence or replay, and reports how many subscribers took delivery.
type Fabric interface {
	Join(group, connectionID string, sub Subscriber)
	Leave(group, connectionID string)
	Publish(group string, payload []byte) int
	Close()
}

// LocalFabric is the in-process Fabric. Membership is a concurrent-safe set
// per group; publishes to different connections are independent, while the
// order of publishes to one connection follows publish order.
type LocalFabric struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

var _ Fabric = (*LocalFabric)(nil)

func NewLocalFabric() *LocalFabric {
	return &LocalFabric{groups: make(map[string]map[string]Subscriber)}
}

func (f *LocalFabric) Join(group, connectionID string, sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.groups[group]
	if members == nil {
		members = make(map[string]Subscriber)
		f.groups[group] = members
	}
	members[connectionID] = sub
}

func (f *LocalFabric) Leave(group, connectionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.groups[group]
	if members == nil {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(f.groups, group)
	}
}

// Publish delivers payload to every current member of the group. A failed
// delivery to one connection does not affect the others. With no members the
// payload is silently dropped.
func (f *LocalFabric) Publish(group string, payload []byte) int {
	f.mu.RLock()
	members := f.groups[group]
	if len(members) == 0 {
		f.mu.RUnlock()
		return 0
	}
	subs := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if err := sub.Deliver(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

func (f *LocalFabric) Close() {
	f.mu.Lock()
	f.groups = make(map[string]map[string]Subscriber)
	f.mu.Unlock()
}
