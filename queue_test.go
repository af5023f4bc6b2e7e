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

	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/pagadorhq/pagador/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationTaskFor(t *testing.T, transactionID string, force bool) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(notificationTask{TransactionID: transactionID, Force: force})
	require.NoError(t, err)
	return asynq.NewTask(NotificationTaskType, payload)
}

func TestProcessNotificationDeliversUnsent(t *testing.T) {
	service, mock := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()

	// Creation fails to deliver, leaving the notification pending.
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		httpmock.NewErrorResponder(syscall.ECONNREFUSED))
	payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	require.NotNil(t, deliveryErr)

	httpmock.Reset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	err = service.ProcessNotification(context.Background(), notificationTaskFor(t, payment.TransactionID, false))
	require.NoError(t, err)

	stored, err := mock.GetPayment(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)
}

func TestProcessNotificationSkipsAlreadySent(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination, okResponder())

	payment, deliveryErr, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)
	require.Nil(t, deliveryErr)
	require.Equal(t, 1, httpmock.GetTotalCallCount())

	err = service.ProcessNotification(context.Background(), notificationTaskFor(t, payment.TransactionID, false))
	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessNotificationForceRedelivers(t *testing.T) {
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

	err = service.ProcessNotification(context.Background(), notificationTaskFor(t, payment.TransactionID, true))
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
	assert.Equal(t, "true", lastPayload.Attributes.IsForce)
}

func TestProcessNotificationFailureReturnsError(t *testing.T) {
	service, _ := newTestPagador(t)
	httpmock.ActivateNonDefault(service.dispatcher.client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, testDestination,
		httpmock.NewErrorResponder(syscall.ECONNREFUSED))

	payment, _, err := service.CreatePayment(context.Background(), newPaymentRequest("1000.00"))
	require.NoError(t, err)

	err = service.ProcessNotification(context.Background(), notificationTaskFor(t, payment.TransactionID, false))
	require.Error(t, err)
}

func TestProcessNotificationBadPayload(t *testing.T) {
	service, _ := newTestPagador(t)
	err := service.ProcessNotification(context.Background(), asynq.NewTask(NotificationTaskType, []byte("not json")))
	require.Error(t, err)
}

func TestProcessNotificationUnknownPayment(t *testing.T) {
	service, _ := newTestPagador(t)
	err := service.ProcessNotification(context.Background(), notificationTaskFor(t, "pay_missing", false))
	require.Error(t, err)
}
