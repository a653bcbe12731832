package realtime

import (
	"context"
	"log/slog"

	"github.com/abdelslam1997/light-messages-backend/internal/infrastructure/queue/port"
	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
	"github.com/abdelslam1997/light-messages-backend/internal/notify"
)

// Dispatcher turns persisted-message and read-receipt domain events into
// fabric publishes. It is called directly by the use-case layer at the point
// of state change; both operations are fire-and-forget from the caller's
// perspective and only ever log their failures.
type Dispatcher struct {
	fabric Fabric
	queue  port.Client // optional; nil disables offline notifications
	log    *slog.Logger
}

func NewDispatcher(fabric Fabric, queue port.Client, log *slog.Logger) *Dispatcher {
	return &Dispatcher{fabric: fabric, queue: queue, log: log}
}

// MessageCreated publishes a new_message event to the receiver's group. When
// nobody took delivery and a queue is configured, an offline notification is
// enqueued instead.
func (d *Dispatcher) MessageCreated(ctx context.Context, m messenger.Message) {
	payload, err := NewMessageEvent(m)
	if err != nil {
		d.log.Error("dispatcher: encode new_message", "message_id", m.ID, "err", err)
		return
	}

	delivered := d.fabric.Publish(UserGroup(m.ReceiverID), payload)
	if delivered > 0 || d.queue == nil {
		return
	}

	task, err := notify.NewOfflineMessageTask(m)
	if err != nil {
		d.log.Error("dispatcher: build offline task", "message_id", m.ID, "err", err)
		return
	}
	if _, err := d.queue.Enqueue(ctx, task, port.Option{Queue: "notify", MaxRetry: 5}); err != nil {
		d.log.Error("dispatcher: enqueue offline task", "message_id", m.ID, "err", err)
	}
}

// MessagesRead publishes a read_receipt to the other party's group. Callers
// invoke it only after MarkRead reported at least one changed row, so
// redundant reads never emit an event.
func (d *Dispatcher) MessagesRead(ctx context.Context, conversationKey string, readerID, otherPartyID, lastMessageID int64) {
	payload, err := ReadMessageEvent(lastMessageID, readerID)
	if err != nil {
		d.log.Error("dispatcher: encode read_message", "conversation", conversationKey, "err", err)
		return
	}
	d.fabric.Publish(UserGroup(otherPartyID), payload)
}
