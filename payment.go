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
	"fmt"
	"time"

	"github.com/pagadorhq/pagador/database"
	"github.com/pagadorhq/pagador/internal/apierror"
	"github.com/pagadorhq/pagador/model"
	"github.com/sirupsen/logrus"
)

// deliver dispatches the payment's notification and, on success, flags the
// record as notified. A delivery failure leaves notification_sent false so
// the sweep can pick the payment up later.
func (l *Pagador) deliver(ctx context.Context, payment *model.Payment, attrs model.DeliveryAttributes) (*DeliveryResult, *DeliveryError) {
	result, deliveryErr := l.dispatcher.Dispatch(ctx, payment, attrs)
	if deliveryErr != nil {
		return nil, deliveryErr
	}

	if err := l.datasource.MarkAsNotified(ctx, payment.TransactionID, result.SentAt); err != nil {
		logrus.WithError(err).WithField("transaction_id", payment.TransactionID).Error("failed to flag payment as notified")
	} else {
		payment.NotificationSent = true
		sentAt := result.SentAt
		payment.NotificationSentAt = &sentAt
	}
	return result, nil
}

func (l *Pagador) recordWithOutcome(ctx context.Context, payment *model.Payment, outcome model.Outcome) (*model.Payment, *DeliveryError, error) {
	now := time.Now()
	if payment.TransactionID == "" {
		payment.TransactionID = database.GenerateUUIDWithSuffix("pay")
	}
	if payment.Currency == "" {
		payment.Currency = model.DefaultCurrency
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now
	payment.ApplyOutcome(outcome, now)

	saved, err := l.datasource.RecordPayment(ctx, payment)
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": saved.TransactionID,
		"status":         saved.Status,
		"response_code":  saved.ResponseCode,
		"amount":         saved.Amount,
	}).Info("payment recorded")

	if !l.dispatcher.ShouldNotify(saved.Status) {
		return saved, nil, nil
	}

	_, deliveryErr := l.deliver(ctx, saved, saved.Attributes)
	return saved, deliveryErr, nil
}

// CreatePayment decides the payment's outcome, persists it and delivers the
// outcome notification when the notify policy covers the resulting status.
// A delivery failure does not fail the creation: the payment is returned
// together with the classified *DeliveryError.
func (l *Pagador) CreatePayment(ctx context.Context, payment *model.Payment) (*model.Payment, *DeliveryError, error) {
	return l.recordWithOutcome(ctx, payment, DecideOutcome(payment.Amount))
}

func (l *Pagador) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return l.datasource.GetPayment(ctx, id)
}

func (l *Pagador) ListPayments(ctx context.Context, filter database.PaymentFilter, page, limit int) ([]*model.Payment, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.datasource.GetAllPayments(ctx, filter, page, limit)
}

// transition moves a payment to the target status, persists the patch and
// dispatches a notification regardless of the creation-time notify policy.
// The notification state resets so a failed dispatch leaves the transition
// pending for the sweep.
func (l *Pagador) transition(ctx context.Context, payment *model.Payment, status string) (*model.Payment, *DeliveryError, error) {
	now := time.Now()
	payment.Status = status
	payment.ReconcileMilestones(now)
	payment.NotificationSent = false
	payment.NotificationSentAt = nil
	payment.UpdatedAt = now

	if err := l.datasource.UpdatePaymentOutcome(ctx, payment); err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": payment.TransactionID,
		"status":         status,
	}).Info("payment transitioned")

	_, deliveryErr := l.deliver(ctx, payment, payment.Attributes)
	return payment, deliveryErr, nil
}

// RefundPayment refunds an approved payment. Any other current status is an
// invalid transition; the accreditation milestones survive the refund.
func (l *Pagador) RefundPayment(ctx context.Context, id string) (*model.Payment, *DeliveryError, error) {
	payment, err := l.datasource.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != model.StatusApproved {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("payment %s cannot be refunded from status %s, only approved payments can be refunded", id, payment.Status), nil)
	}
	return l.transition(ctx, payment, model.StatusRefunded)
}

// UpdatePaymentStatus is the manual override: it moves the payment to any
// valid status without transition checks. Meant for rehearsing downstream
// reactions to arbitrary state changes.
func (l *Pagador) UpdatePaymentStatus(ctx context.Context, id string, status string) (*model.Payment, *DeliveryError, error) {
	if !model.ValidStatus(status) {
		return nil, nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("invalid status %q", status), nil)
	}
	payment, err := l.datasource.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return l.transition(ctx, payment, status)
}

// ResendNotification re-delivers a payment's outcome notification. When a
// destination override is given it is persisted before dispatching. The
// delivery is labeled is_force=true unless the caller explicitly opts out,
// and a downstream failure surfaces as a bad gateway error.
func (l *Pagador) ResendNotification(ctx context.Context, id string, urlOverride string, force *bool) (*DeliveryResult, error) {
	payment, err := l.datasource.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	if urlOverride != "" {
		if err := l.datasource.UpdateNotificationURL(ctx, id, urlOverride); err != nil {
			return nil, err
		}
		payment.NotificationURL = urlOverride
	}

	attrs := payment.Attributes
	attrs.IsForce = true
	if force != nil {
		attrs.IsForce = *force
	}

	result, deliveryErr := l.deliver(ctx, payment, attrs)
	if deliveryErr != nil {
		return nil, apierror.NewAPIError(apierror.ErrBadGateway, deliveryErr.Error(), deliveryErr)
	}
	return result, nil
}

func (l *Pagador) MarkAsNotified(ctx context.Context, id string) error {
	return l.datasource.MarkAsNotified(ctx, id, time.Now())
}

func (l *Pagador) MarkMultipleAsNotified(ctx context.Context, ids []string) (int64, error) {
	return l.datasource.MarkMultipleAsNotified(ctx, ids, time.Now())
}

// GetPendingNotifications lists payments whose notification has not been
// delivered yet, oldest first, limited to the notify policy's statuses.
func (l *Pagador) GetPendingNotifications(ctx context.Context, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.datasource.GetPendingNotifications(ctx, l.queue.statuses, limit)
}
