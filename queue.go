/*
Copyright 2025 Pagador Authors.

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

package pagador

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/pagadorhq/pagador/config"
	redis_db "github.com/pagadorhq/pagador/internal/redis-db"
	"github.com/sirupsen/logrus"
)

const NotificationTaskType = "notification:deliver"

// notificationTask is the queued payload for a deferred delivery attempt.
type notificationTask struct {
	TransactionID string `json:"transaction_id"`
	Force         bool   `json:"force"`
}

// Queue defers notification deliveries to the asynq workers. Unsent
// notifications picked up by the sweep land here so the API path never
// blocks on a slow merchant endpoint.
type Queue struct {
	client     *asynq.Client
	queueName  string
	maxRetries int
	statuses   []string
}

func NewQueue(conf *config.Configuration) *Queue {
	redisClient, err := redis_db.NewRedisClient([]string{conf.Redis.Dns}, conf.Redis.SkipTLSVerify)
	if err != nil {
		logrus.WithError(err).Error("failed to connect queue to redis")
		return &Queue{
			queueName:  conf.Queue.NotificationQueue,
			maxRetries: conf.Queue.MaxRetryAttempts,
			statuses:   conf.Notification.Webhook.NotifyStatuses,
		}
	}
	return &Queue{
		client:     asynq.NewClient(redisClient),
		queueName:  conf.Queue.NotificationQueue,
		maxRetries: conf.Queue.MaxRetryAttempts,
		statuses:   conf.Notification.Webhook.NotifyStatuses,
	}
}

// EnqueueNotification schedules a delivery for the given transaction. The
// transaction id doubles as the task id, so a payment already waiting in the
// queue is not enqueued twice.
func (q *Queue) EnqueueNotification(ctx context.Context, transactionID string, force bool) error {
	if q.client == nil {
		return errors.New("notification queue is not connected")
	}

	payload, err := json.Marshal(notificationTask{TransactionID: transactionID, Force: force})
	if err != nil {
		return err
	}

	task := asynq.NewTask(NotificationTaskType, payload)
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queueName),
		asynq.TaskID(transactionID),
		asynq.MaxRetry(q.maxRetries),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			logrus.WithField("transaction_id", transactionID).Debug("notification already queued")
			return nil
		}
		return err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"task_id":        info.ID,
		"queue":          info.Queue,
	}).Info("notification enqueued")
	return nil
}

// ProcessNotification is the asynq handler for queued deliveries. A failed
// delivery returns the error so asynq retries with its own backoff.
func (l *Pagador) ProcessNotification(ctx context.Context, task *asynq.Task) error {
	var payload notificationTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid notification task payload: %w", err)
	}

	payment, err := l.datasource.GetPayment(ctx, payload.TransactionID)
	if err != nil {
		return err
	}
	if payment.NotificationSent && !payload.Force {
		logrus.WithField("transaction_id", payment.TransactionID).Debug("notification already sent, skipping")
		return nil
	}

	attrs := payment.Attributes
	attrs.IsForce = payload.Force

	if _, deliveryErr := l.deliver(ctx, payment, attrs); deliveryErr != nil {
		return deliveryErr
	}
	return nil
}

// EnqueuePendingNotifications sweeps unsent notifications into the queue and
// returns how many were scheduled.
func (l *Pagador) EnqueuePendingNotifications(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	statuses := l.queue.statuses
	payments, err := l.datasource.GetPendingNotifications(ctx, statuses, limit)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, payment := range payments {
		if err := l.queue.EnqueueNotification(ctx, payment.TransactionID, false); err != nil {
			logrus.WithError(err).WithField("transaction_id", payment.TransactionID).Error("failed to enqueue pending notification")
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
