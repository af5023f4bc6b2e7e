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

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pagadorhq/pagador"
	model2 "github.com/pagadorhq/pagador/api/model"
	"github.com/pagadorhq/pagador/database"
	"github.com/wacul/ptr"
)

// CreatePayment records a new payment. The outcome engine decides its status
// and, when the notify policy covers that status, the outcome notification is
// delivered before responding. A delivery failure does not fail the request;
// it is reported in the response body next to the created payment.
func (a Api) CreatePayment(c *gin.Context) {
	var newPayment model2.CreatePayment
	if err := c.ShouldBindJSON(&newPayment); err != nil {
		logrus.Error(err)
		badRequest(c, "invalid request body")
		return
	}

	if err := newPayment.ValidateCreatePayment(); err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, deliveryErr, err := a.pagador.CreatePayment(c.Request.Context(), newPayment.ToPayment())
	if err != nil {
		errorResponse(c, err)
		return
	}

	body := gin.H{"payment": payment}
	if deliveryErr != nil {
		body["notification_error"] = deliveryErr
	}
	successResponse(c, http.StatusCreated, body)
}

func (a Api) GetPayment(c *gin.Context) {
	id, passed := c.Params.Get("transaction_id")
	if !passed {
		badRequest(c, "transaction_id is required. pass id in the route /:transaction_id")
		return
	}

	payment, err := a.pagador.GetPayment(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusOK, payment)
}

func listFilter(c *gin.Context) database.PaymentFilter {
	filter := database.PaymentFilter{
		MerchantID: c.Query("merchant_id"),
		Status:     c.Query("status"),
	}
	if sent := c.Query("notification_sent"); sent != "" {
		value, err := strconv.ParseBool(sent)
		if err == nil {
			filter.NotificationSent = ptr.Bool(value)
		}
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}

func (a Api) GetAllPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	payments, total, err := a.pagador.ListPayments(c.Request.Context(), listFilter(c), page, limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	pagedResponse(c, payments, paginate(page, limit, total))
}

// RefundPayment refunds an approved payment and notifies the merchant of the
// transition. Refunding from any other status is rejected.
func (a Api) RefundPayment(c *gin.Context) {
	id, passed := c.Params.Get("transaction_id")
	if !passed {
		badRequest(c, "transaction_id is required. pass id in the route /:transaction_id")
		return
	}

	payment, deliveryErr, err := a.pagador.RefundPayment(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err)
		return
	}

	body := gin.H{"payment": payment}
	if deliveryErr != nil {
		body["notification_error"] = deliveryErr
	}
	successResponse(c, http.StatusOK, body)
}

// UpdateStatus manually overrides a payment's status without transition
// checks, for rehearsing downstream reactions to arbitrary state changes.
func (a Api) UpdateStatus(c *gin.Context) {
	id, passed := c.Params.Get("transaction_id")
	if !passed {
		badRequest(c, "transaction_id is required. pass id in the route /:transaction_id")
		return
	}

	var update model2.UpdateStatus
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := update.ValidateUpdateStatus(); err != nil {
		badRequest(c, err.Error())
		return
	}

	payment, deliveryErr, err := a.pagador.UpdatePaymentStatus(c.Request.Context(), id, update.Status)
	if err != nil {
		errorResponse(c, err)
		return
	}

	body := gin.H{"payment": payment}
	if deliveryErr != nil {
		body["notification_error"] = deliveryErr
	}
	successResponse(c, http.StatusOK, body)
}

// ResendNotification re-delivers a payment's outcome notification, optionally
// persisting a new destination first. A downstream failure maps to 502.
func (a Api) ResendNotification(c *gin.Context) {
	id, passed := c.Params.Get("transaction_id")
	if !passed {
		badRequest(c, "transaction_id is required. pass id in the route /:transaction_id")
		return
	}

	var resend model2.ResendNotification
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&resend); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	if err := resend.ValidateResendNotification(); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := a.pagador.ResendNotification(c.Request.Context(), id, resend.NotificationURL, resend.Force)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusOK, result)
}

func (a Api) MarkAsNotified(c *gin.Context) {
	id, passed := c.Params.Get("transaction_id")
	if !passed {
		badRequest(c, "transaction_id is required. pass id in the route /:transaction_id")
		return
	}

	if err := a.pagador.MarkAsNotified(c.Request.Context(), id); err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"transaction_id": id, "notified": true})
}

func (a Api) MarkMultipleAsNotified(c *gin.Context) {
	var mark model2.MarkNotifiedBulk
	if err := c.ShouldBindJSON(&mark); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := mark.ValidateMarkNotifiedBulk(); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := a.pagador.MarkMultipleAsNotified(c.Request.Context(), mark.TransactionIDs)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusOK, gin.H{"requested": len(mark.TransactionIDs), "updated": updated})
}

func (a Api) GetPendingNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	payments, err := a.pagador.GetPendingNotifications(c.Request.Context(), limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusOK, payments)
}

func (a Api) bulkOptions(c *gin.Context) (*pagador.BulkOptions, bool) {
	bulk := model2.BulkGenerate{Count: 10}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&bulk); err != nil {
			badRequest(c, "invalid request body")
			return nil, false
		}
	}
	if err := bulk.ValidateBulkGenerate(); err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return &pagador.BulkOptions{
		Count:         bulk.Count,
		OmitPanTokens: bulk.OmitPanTokens,
		Destination:   bulk.Destination,
	}, true
}

// GenerateBulk fabricates a batch of payments through the regular creation
// path, outcomes and notifications included.
func (a Api) GenerateBulk(c *gin.Context) {
	opts, ok := a.bulkOptions(c)
	if !ok {
		return
	}

	result, err := a.pagador.GenerateBulk(c.Request.Context(), *opts)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusCreated, result)
}

// GenerateBulkApproved fabricates a batch whose payments all approve.
func (a Api) GenerateBulkApproved(c *gin.Context) {
	opts, ok := a.bulkOptions(c)
	if !ok {
		return
	}
	opts.ForceApproved = true

	result, err := a.pagador.GenerateBulk(c.Request.Context(), *opts)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusCreated, result)
}

// GenerateBulkDuplicates runs the duplicate-delivery scenario: ten payments,
// with the fifth one's notification re-sent flagged is_force=true.
func (a Api) GenerateBulkDuplicates(c *gin.Context) {
	var bulk model2.BulkGenerate
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&bulk); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	result, err := a.pagador.GenerateDuplicateScenario(c.Request.Context(), bulk.Destination)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, http.StatusCreated, result)
}
