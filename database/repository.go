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

package database

import (
	"context"
	"time"

	"github.com/pagadorhq/pagador/model"
)

// IDataSource defines the interface for data source operations.
type IDataSource interface {
	payment
}

// PaymentFilter narrows payment listings. Nil pointer fields are ignored.
type PaymentFilter struct {
	MerchantID       string
	Status           string
	NotificationSent *bool
	From             *time.Time
	To               *time.Time
}

// payment defines methods for handling payment records. Every mutation is a
// single statement keyed by transaction id and refreshes updated_at.
type payment interface {
	RecordPayment(ctx context.Context, payment *model.Payment) (*model.Payment, error)                                      // Records a new payment, CONFLICT on duplicate transaction id
	GetPayment(ctx context.Context, id string) (*model.Payment, error)                                                      // Retrieves a payment by transaction id
	GetAllPayments(ctx context.Context, filter PaymentFilter, page, limit int) ([]*model.Payment, int64, error)             // Lists payments with total count
	UpdatePaymentOutcome(ctx context.Context, payment *model.Payment) error                                                 // Patches status, response fields, milestones and notification state
	UpdateNotificationURL(ctx context.Context, id string, url string) error                                                 // Persists a destination override
	MarkAsNotified(ctx context.Context, id string, at time.Time) error                                                      // Flags a payment as notified
	MarkMultipleAsNotified(ctx context.Context, ids []string, at time.Time) (int64, error)                                  // Bulk version of MarkAsNotified
	GetPendingNotifications(ctx context.Context, statuses []string, limit int) ([]*model.Payment, error)                    // Oldest-first unsent notifications
}
