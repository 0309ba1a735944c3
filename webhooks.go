/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/notification"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/blnkfinance/tally/internal/request"
	"github.com/blnkfinance/tally/ledger"
)

// NewWebhook is the body posted to the configured webhook URL.
type NewWebhook struct {
	Event   string       `json:"event"`
	Payload ledger.Event `json:"data"`
}

// webhookTask is NewWebhook as read back from the queue.
type webhookTask struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

// LogSink writes every event to logrus.
func LogSink() ledger.EventSink {
	return ledger.EventSinkFunc(func(_ context.Context, e ledger.Event) {
		fields := logrus.Fields{
			"account_id": e.AccountID,
			"kind":       e.Kind,
			"amount":     e.Amount.String(),
			"balance":    e.Balance.String(),
		}
		if e.Transaction != nil {
			fields["transaction_id"] = e.Transaction.ID()
		}
		entry := logrus.WithFields(fields)
		if e.Reason != "" {
			entry.WithField("reason", e.Reason).Info(e.Type)
			return
		}
		entry.Info(e.Type)
	})
}

// QueueSink enqueues every event as a webhook delivery task.
type QueueSink struct {
	client *asynq.Client
	queue  string
	url    string
}

func NewQueueSink(conf *config.Configuration) (*QueueSink, error) {
	opt, err := redis_db.QueueOption(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}
	return &QueueSink{
		client: asynq.NewClient(opt),
		queue:  conf.Queue.WebhookQueue,
		url:    conf.Notification.Webhook.Url,
	}, nil
}

// Publish never fails the ledger operation; enqueue errors are reported
// through NotifyError.
func (s *QueueSink) Publish(ctx context.Context, e ledger.Event) {
	if err := s.SendWebhook(ctx, NewWebhook{Event: e.Type, Payload: e}); err != nil {
		notification.NotifyError(err, logrus.Fields{"event": e.Type, "account_id": e.AccountID})
	}
}

// SendWebhook enqueues w. It does nothing when no webhook URL is configured.
func (s *QueueSink) SendWebhook(ctx context.Context, w NewWebhook) error {
	if s.url == "" {
		return nil
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return err
	}
	task := asynq.NewTask(s.queue, payload, asynq.Queue(s.queue), asynq.MaxRetry(5))
	if _, err := s.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue webhook %s: %w", w.Event, err)
	}
	return nil
}

func (s *QueueSink) Close() error {
	return s.client.Close()
}

// ProcessWebhook delivers a queued webhook to the configured URL.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf := config.FetchOrDefault()
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload webhookTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("error unmarshaling webhook task payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logrus.WithField("event", payload.Event).Debug("processing webhook")
	return request.PostJSON(ctx, nil, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, payload)
}
