package pagador

import (
	"context"
	"sync"
	"time"

	"github.com/pagadorhq/pagador/database"
	"github.com/pagadorhq/pagador/internal/apierror"
	"github.com/pagadorhq/pagador/model"
)

// mockDataSource is an in-memory database.IDataSource for service tests.
type mockDataSource struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
	order    []string
}

func newMockDataSource() *mockDataSource {
	return &mockDataSource{payments: make(map[string]*model.Payment)}
}

var _ database.IDataSource = (*mockDataSource)(nil)

func (m *mockDataSource) RecordPayment(_ context.Context, payment *model.Payment) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.TransactionID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "transaction already exists", nil)
	}
	stored := *payment
	m.payments[payment.TransactionID] = &stored
	m.order = append(m.order, payment.TransactionID)
	return payment, nil
}

func (m *mockDataSource) GetPayment(_ context.Context, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "payment not found", nil)
	}
	copied := *stored
	return &copied, nil
}

func (m *mockDataSource) GetAllPayments(_ context.Context, filter database.PaymentFilter, page, limit int) ([]*model.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]*model.Payment, 0, len(m.order))
	for _, id := range m.order {
		p := m.payments[id]
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.MerchantID != "" && p.Merchant.ID != filter.MerchantID {
			continue
		}
		if filter.NotificationSent != nil && p.NotificationSent != *filter.NotificationSent {
			continue
		}
		copied := *p
		matched = append(matched, &copied)
	}
	total := int64(len(matched))
	offset := (page - 1) * limit
	if offset >= len(matched) {
		return []*model.Payment{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockDataSource) UpdatePaymentOutcome(_ context.Context, payment *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.TransactionID]; !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "payment not found", nil)
	}
	stored := *payment
	m.payments[payment.TransactionID] = &stored
	return nil
}

func (m *mockDataSource) UpdateNotificationURL(_ context.Context, id string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[id]
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "payment not found", nil)
	}
	stored.NotificationURL = url
	return nil
}

func (m *mockDataSource) MarkAsNotified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[id]
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "payment not found", nil)
	}
	stored.NotificationSent = true
	sentAt := at
	stored.NotificationSentAt = &sentAt
	return nil
}

func (m *mockDataSource) MarkMultipleAsNotified(ctx context.Context, ids []string, at time.Time) (int64, error) {
	var updated int64
	for _, id := range ids {
		if err := m.MarkAsNotified(ctx, id, at); err == nil {
			updated++
		}
	}
	return updated, nil
}

func (m *mockDataSource) GetPendingNotifications(_ context.Context, statuses []string, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	pending := make([]*model.Payment, 0)
	for _, id := range m.order {
		p := m.payments[id]
		if p.NotificationSent || !allowed[p.Status] {
			continue
		}
		copied := *p
		pending = append(pending, &copied)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}
