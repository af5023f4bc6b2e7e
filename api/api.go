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

	"github.com/gin-gonic/gin"
	"github.com/pagadorhq/pagador"
	"github.com/pagadorhq/pagador/config"
	"github.com/pagadorhq/pagador/internal/apierror"
)

type Api struct {
	pagador *pagador.Pagador
	router  *gin.Engine
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func paginate(page, limit int, total int64) pagination {
	p := pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.Pages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}

func successResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func pagedResponse(c *gin.Context, data interface{}, p pagination) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": p})
}

func errorResponse(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	body := gin.H{"success": false, "message": err.Error()}
	if apiErr, ok := err.(apierror.APIError); ok {
		body["error"] = string(apiErr.Code)
		body["message"] = apiErr.Message
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": string(apierror.ErrBadRequest), "message": message})
}

func (a Api) Router() *gin.Engine {
	router := a.router

	payments := router.Group("/api/payments")
	payments.POST("", a.CreatePayment)
	payments.GET("", a.GetAllPayments)
	payments.GET("/pending-notifications", a.GetPendingNotifications)

	payments.POST("/bulk/test", a.GenerateBulk)
	payments.POST("/bulk/test-approved", a.GenerateBulkApproved)
	payments.POST("/bulk/test-duplicates", a.GenerateBulkDuplicates)
	payments.PATCH("/bulk/notified", a.MarkMultipleAsNotified)

	payments.GET("/:transaction_id", a.GetPayment)
	payments.PATCH("/:transaction_id/notified", a.MarkAsNotified)
	payments.POST("/:transaction_id/refund", a.RefundPayment)
	payments.POST("/:transaction_id/resend-notification", a.ResendNotification)
	payments.PUT("/:transaction_id/status", a.UpdateStatus)

	return a.router
}

func NewAPI(p *pagador.Pagador) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    conf.ProjectName,
			"message": "payment simulator api",
		})
	})

	return &Api{pagador: p, router: r}
}
