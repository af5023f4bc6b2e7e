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
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/pagadorhq/pagador/config"
	"github.com/pagadorhq/pagador/internal/request"
	"github.com/pagadorhq/pagador/model"
	"github.com/sirupsen/logrus"
)

// Delivery error kinds. They classify why a notification could not be
// delivered so callers and logs can distinguish merchant-side faults.
const (
	ErrKindTimeout         = "timeout"
	ErrKindConnection      = "connection"
	ErrKindConnectionReset = "connectionReset"
	ErrKindNetwork         = "network"
	ErrKindHTTPStatus      = "httpStatus"
)

// DeliveryError describes a failed notification delivery.
type DeliveryError struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notification delivery failed (%s): status %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("notification delivery failed (%s): %s", e.Kind, e.Message)
}

// DeliveryResult captures a successful delivery acknowledgement.
type DeliveryResult struct {
	StatusCode int       `json:"status_code"`
	MessageID  string    `json:"message_id,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

type deliveryAck struct {
	MessageID string `json:"message_id"`
}

// Dispatcher posts outcome notifications to merchant endpoints. It carries
// its own client and timeout so deliveries never depend on ambient state.
type Dispatcher struct {
	client         *http.Client
	destination    string
	headers        map[string]string
	timeout        time.Duration
	notifyStatuses map[string]bool
}

// NewDispatcher builds a dispatcher from the webhook configuration.
func NewDispatcher(conf *config.Configuration) *Dispatcher {
	timeout := time.Duration(conf.Notification.Webhook.TimeoutSeconds) * time.Second
	statuses := make(map[string]bool, len(conf.Notification.Webhook.NotifyStatuses))
	for _, status := range conf.Notification.Webhook.NotifyStatuses {
		statuses[status] = true
	}
	return &Dispatcher{
		client:         &http.Client{},
		destination:    conf.Notification.Webhook.Url,
		headers:        conf.Notification.Webhook.Headers,
		timeout:        timeout,
		notifyStatuses: statuses,
	}
}

// ShouldNotify reports whether payments in the given status are delivered
// on creation. Lifecycle transitions notify regardless of this policy.
func (d *Dispatcher) ShouldNotify(status string) bool {
	return d.notifyStatuses[status]
}

// Dispatch delivers the payment's outcome notification. The destination is
// the payment merchant's notification URL, falling back to the configured
// default. A *DeliveryError is returned for any classified failure; the
// payload is sent exactly once with no local retry.
func (d *Dispatcher) Dispatch(ctx context.Context, payment *model.Payment, attrs model.DeliveryAttributes) (*DeliveryResult, *DeliveryError) {
	destination := payment.Destination(d.destination)
	if destination == "" {
		return nil, &DeliveryError{Kind: ErrKindNetwork, Message: "no notification destination configured"}
	}

	now := time.Now()
	payload := payment.ToWirePayload(attrs, now)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return nil, &DeliveryError{Kind: ErrKindNetwork, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, body)
	if err != nil {
		return nil, &DeliveryError{Kind: ErrKindNetwork, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pagador-Transaction", payment.TransactionID)
	for key, value := range d.headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		deliveryErr := classifyDeliveryError(err)
		logrus.WithFields(logrus.Fields{
			"transaction_id": payment.TransactionID,
			"destination":    destination,
			"kind":           deliveryErr.Kind,
		}).Warn("notification delivery failed")
		return nil, deliveryErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveryErr := &DeliveryError{
			Kind:       ErrKindHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("destination responded %d", resp.StatusCode),
		}
		logrus.WithFields(logrus.Fields{
			"transaction_id": payment.TransactionID,
			"destination":    destination,
			"status":         resp.StatusCode,
		}).Warn("notification rejected by destination")
		return nil, deliveryErr
	}

	// The acknowledgement body is optional; an empty or non-JSON body is
	// still a successful delivery.
	var ack deliveryAck
	_ = json.NewDecoder(resp.Body).Decode(&ack)

	logrus.WithFields(logrus.Fields{
		"transaction_id": payment.TransactionID,
		"destination":    destination,
		"status":         resp.StatusCode,
	}).Info("notification delivered")

	return &DeliveryResult{
		StatusCode: resp.StatusCode,
		MessageID:  ack.MessageID,
		SentAt:     now,
	}, nil
}

func classifyDeliveryError(err error) *DeliveryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Kind: ErrKindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &DeliveryError{Kind: ErrKindTimeout, Message: err.Error()}
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return &DeliveryError{Kind: ErrKindConnectionReset, Message: err.Error()}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &DeliveryError{Kind: ErrKindConnection, Message: err.Error()}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeliveryError{Kind: ErrKindConnection, Message: err.Error()}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &DeliveryError{Kind: ErrKindConnection, Message: err.Error()}
	}
	return &DeliveryError{Kind: ErrKindNetwork, Message: err.Error()}
}
