// Package notify pushes offline-message notifications: when a fan-out reaches
// zero live connections the dispatcher enqueues a task here, and the worker
// forwards it to the configured webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdelslam1997/light-messages-backend/internal/directory"
	"github.com/abdelslam1997/light-messages-backend/internal/infrastructure/queue/port"
	"github.com/abdelslam1997/light-messages-backend/internal/messenger"
)

// TaskTypeOfflineMessage is the queue task name for an undelivered message.
const TaskTypeOfflineMessage = "notify:offline_message"

const previewLength = 120

// OfflineMessagePayload is the JSON payload transported via the queue.
type OfflineMessagePayload struct {
	ReceiverID int64  `json:"receiver_id"`
	SenderID   int64  `json:"sender_id"`
	MessageID  int64  `json:"message_id"`
	Preview    string `json:"preview"`
}

// NewOfflineMessageTask builds the queue task for a message that reached no
// live connection.
func NewOfflineMessageTask(m messenger.Message) (port.Task, error) {
	preview := m.Body
	if runes := []rune(preview); len(runes) > previewLength {
		preview = string(runes[:previewLength])
	}
	b, err := json.Marshal(OfflineMessagePayload{
		ReceiverID: m.ReceiverID,
		SenderID:   m.SenderID,
		MessageID:  m.ID,
		Preview:    preview,
	})
	if err != nil {
		return port.Task{}, err
	}
	return port.Task{Type: TaskTypeOfflineMessage, Payload: b}, nil
}

// WebhookNotifier delivers offline notifications to an external push gateway
// with a plain JSON POST.
type WebhookNotifier struct {
	url       string
	client    *http.Client
	directory directory.Directory
	log       *slog.Logger
}

func NewWebhookNotifier(url string, dir directory.Directory, log *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:       url,
		client:    &http.Client{Timeout: 10 * time.Second},
		directory: dir,
		log:       log,
	}
}

// Register binds the offline-message handler to the worker server.
func Register(srv port.Server, n *WebhookNotifier) {
	srv.Register(TaskTypeOfflineMessage, n.Handle)
}

// Handle posts the notification to the webhook. With no webhook configured
// the task is acknowledged and dropped.
func (n *WebhookNotifier) Handle(ctx context.Context, task port.Task) error {
	var p OfflineMessagePayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		// Malformed payload; retrying cannot fix it.
		n.log.Error("offline notify: malformed payload", "err", err)
		return nil
	}
	if n.url == "" {
		return nil
	}

	senderName := ""
	if sender, err := n.directory.LookupUser(ctx, p.SenderID); err == nil {
		senderName = sender.DisplayName
	}

	body, err := json.Marshal(map[string]any{
		"receiver_id": p.ReceiverID,
		"sender_id":   p.SenderID,
		"sender_name": senderName,
		"message_id":  p.MessageID,
		"preview":     p.Preview,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}
