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
	"net/http"
	"syscall"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/pagadorhq/pagador/database"
	"github.com/pagadorhq/pagador/internal/apierror"
	"github.com/pagadorhq/pagador/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPagador(t *testing.T) (*Pagador, *mockDataSource) {
	t.Helper()
	dispatcher := newTestDispatcher(t)
	mock := newMockDataSource()
	service := &Pagador{
		datasource: mock,
		dispatcher: dispatcher,
		queue:      &Queue{statuses: []string{model.StatusApproved, model.StatusRejected, model.StatusPending}},
	}
	return service, mock
}

func okResponder() httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"message_id": "msg_ok"})
}

func newPaymentRequest(amount string) *model.Payment {
	return &model.Payment{
		Merchant: model.Merchant{ID: "mch_1", Name: "Tienda Uno", Email: "pagos@tiendauno.com"},
		Amount:   decimal.RequireFromString(amount),
		Currency: "ARS",
		Payer:    model.Payer{Name: "Ana Díaz", Email: "ana@example.com", DocumentNumber: "30123456"},
		PaymentMethods: []model.PaymentMethod{
			{Type: "credit_card", Brand: "visa", LastFourDigits: "4242", Token: "tok_1"},
		},
	}
}

func TestCreatePaymentApprovedAndNotified(t *testing.T) {
	service, mock := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	require.Nil(t, deliveryErr)

	assert.Equal(t, model.StatusApproved, payment.Status)
	assert.Equal(t, "00", payment.ResponseCode)
	assert.NotEmpty(t, payment.TransactionID)
	assert.NotNil(t, payment.ProcessedAt)
	assert.NotNil(t, payment.PaidAt)
	assert.NotNil(t, payment.AccreditedAt)
	assert.True(t, payment.NotificationSent)
	require.NotNil(t, payment.NotificationSentAt)

	stored, err := mock.GetPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestCreatePaymentRejectedHasNoMilestones(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1999.99"))
	require.NoError(t, err)
	require.Nil(t, deliveryErr)

	assert.Equal(t, model.StatusRejected, payment.Status)
	assert.Contains(t, []string{"51", "54", "57", "91"}, payment.ResponseCode)
	assert.Nil(t, payment.ProcessedAt)
	assert.Nil(t, payment.PaidAt)
	assert.Nil(t, payment.AccreditedAt)
	assert.True(t, payment.NotificationSent)
}

func TestCreatePaymentDeliveryFailureStillPersists(t *testing.T) {
	service, mock := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		httpmock.NewErrorResponder(syscall.ECONNREFUSED))

	payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	require.NotNil(t, deliveryErr)
	assert.Equal(t, ErrKindConnection, deliveryErr.Kind)

	stored, err := mock.GetPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.False(t, stored.NotificationSent)

	pending, err := service.GetPendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, payment.TransactionID, pending[0].TransactionID)
}

func TestCreatePaymentDefaultsCurrency(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	req := newPaymentRequest("100.00")
	req.Currency = ""
	payment, _, err := service.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCurrency, payment.Currency)
}

func TestRefundApprovedPayment(t *testing.T) {
	service, mock := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, payment.Status)

	refunded, deliveryErr, err := service.RefundPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	require.Nil(t, deliveryErr)

	assert.Equal(t, model.StatusRefunded, refunded.Status)
	// Refunds keep the accreditation history.
	assert.NotNil(t, refunded.ProcessedAt)
	assert.NotNil(t, refunded.AccreditedAt)

	stored, err := mock.GetPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, stored.Status)
	// Creation plus the refund transition notification.
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestRefundNonApprovedIsInvalidTransition(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("150"))
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, payment.Status)

	_, _, err = service.RefundPayment(context.Background(), payment.TransactionID)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
}

func TestRefundUnknownPaymentNotFound(t *testing.T) {
	service, _ := newTestPagador(t)
	_, _, err := service.RefundPayment(context.Background(), "pay_missing")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdatePaymentStatusOverridesAnyTransition(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1999.99"))
	require.NoError(t, err)
	require.Equal(t, model.StatusRejected, payment.Status)

	// rejected -> refunded is not a legal refund path, the override allows it.
	updated, deliveryErr, err := service.UpdatePaymentStatus(context.Background(), payment.TransactionID, model.StatusRefunded)
	require.NoError(t, err)
	require.Nil(t, deliveryErr)
	assert.Equal(t, model.StatusRefunded, updated.Status)
}

func TestUpdatePaymentStatusRejectsUnknownStatus(t *testing.T) {
	service, _ := newTestPagador(t)
	_, _, err := service.UpdatePaymentStatus(context.Background(), "pay_any", "sideways")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestResendNotificationDefaultsToForce(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()

	var lastPayload model.NotificationPayload
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&lastPayload); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"message_id": "msg_ok"})
		})

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	assert.Equal(t, "false", lastPayload.Attributes.IsForce)

	result, err := service.ResendNotification(context.Background(), payment.TransactionID, "", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "true", lastPayload.Attributes.IsForce)
}

func TestResendNotificationPersistsDestinationOverride(t *testing.T) {
	service, mock := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	override := "https://override.example.com/hook"
	httpmock.RegisterResponder(http.MethodPost, override, okResponder())

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)

	_, err = service.ResendNotification(context.Background(), payment.TransactionID, override, nil)
	require.NoError(t, err)

	stored, err := mock.GetPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, override, stored.NotificationURL)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+override])
}

func TestResendNotificationDownstreamFailureIsBadGateway(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)

	httpmock.Reset()
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		httpmock.NewStringResponder(http.StatusBadGateway, "down"))

	_, err = service.ResendNotification(context.Background(), payment.TransactionID, "", nil)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrBadGateway, apiErr.Code)
}

func TestResendNotificationExplicitForceFalse(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()

	var lastPayload model.NotificationPayload
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&lastPayload); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"message_id": "msg_ok"})
		})

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)

	force := false
	_, err = service.ResendNotification(context.Background(), payment.TransactionID, "", &force)
	require.NoError(t, err)
	assert.Equal(t, "false", lastPayload.Attributes.IsForce)
}

func TestListPaymentsFilters(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	for _, amount := range []string{"1000.00", "2000.00", "1999.99"} {
		_, _, err := service.CreatePayment(context.Background(), newPaymentRequest(amount))
		require.NoError(t, err)
	}

	approved, total, err := service.ListPayments(context.Background(),
		database.PaymentFilter{Status: model.StatusApproved}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, approved, 2)
}

func TestMarkMultipleAsNotified(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		httpmock.NewErrorResponder(syscall.ECONNREFUSED))

	ids := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
		require.NoError(t, err)
		require.NotNil(t, deliveryErr)
		ids = append(ids, payment.TransactionID)
	}

	updated, err := service.MarkMultipleAsNotified(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	pending, err := service.GetPendingNotifications(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
