package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
)

// SupportedCurrencies is the set of currency codes the simulator accepts.
var SupportedCurrencies = []string{"ARS", "USD", "EUR", "BRL"}

const DefaultCurrency = "ARS"

func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

func ValidCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Merchant is the collector a payment belongs to. NotificationURL, when set,
// overrides the globally configured webhook destination for this merchant's
// payments.
type Merchant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	NotificationURL string `json:"notification_url,omitempty"`
}

type Payer struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number"`
}

// PaymentMethod is one payment instrument attached to a payment. The token
// fields are optional; an empty string means absent and is omitted from every
// serialized form, never sent as null.
type PaymentMethod struct {
	Type           string `json:"type"`
	Brand          string `json:"brand,omitempty"`
	LastFourDigits string `json:"last_four_digits,omitempty"`
	Token          string `json:"token,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	PanToken       string `json:"pan_token,omitempty"`
	CommerceToken  string `json:"commerce_token,omitempty"`
}

// DeliveryAttributes are per-payment delivery inputs replayed verbatim on
// every dispatch, including resends. IsForce has no local effect: it is a
// label for the downstream consumer's dedup logic.
type DeliveryAttributes struct {
	AllowCommercePanToken bool `json:"allow_commerce_pan_token"`
	FromBatch             bool `json:"from_batch"`
	IsForce               bool `json:"is_force"`
}

// WireAttributes is the typed key/value form of the delivery attributes, each
// value serialized as the string "true" or "false".
type WireAttributes struct {
	AllowCommercePanToken string `json:"allow_commerce_pan_token"`
	FromBatch             string `json:"from_batch"`
	IsForce               string `json:"is_force"`
}

func (a DeliveryAttributes) ToWire() WireAttributes {
	return WireAttributes{
		AllowCommercePanToken: strconv.FormatBool(a.AllowCommercePanToken),
		FromBatch:             strconv.FormatBool(a.FromBatch),
		IsForce:               strconv.FormatBool(a.IsForce),
	}
}

// Outcome is the result of the outcome engine for one payment.
type Outcome struct {
	Status          string `json:"status"`
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
}

type Payment struct {
	ID                 int64                  `json:"-"`
	TransactionID      string                 `json:"transaction_id"`
	Merchant           Merchant               `json:"merchant"`
	Amount             decimal.Decimal        `json:"amount"`
	Currency           string                 `json:"currency"`
	Payer              Payer                  `json:"payer"`
	PaymentMethods     []PaymentMethod        `json:"payment_methods"`
	Status             string                 `json:"status"`
	ResponseCode       string                 `json:"response_code,omitempty"`
	ResponseMessage    string                 `json:"response_message,omitempty"`
	ExternalReference  string                 `json:"external_reference,omitempty"`
	Description        string                 `json:"description,omitempty"`
	NotificationURL    string                 `json:"notification_url,omitempty"`
	Attributes         DeliveryAttributes     `json:"attributes"`
	NotificationSent   bool                   `json:"notification_sent"`
	NotificationSentAt *time.Time             `json:"notification_sent_at,omitempty"`
	ProcessedAt        *time.Time             `json:"processed_at,omitempty"`
	PaidAt             *time.Time             `json:"paid_at,omitempty"`
	AccreditedAt       *time.Time             `json:"accredited_at,omitempty"`
	MetaData           map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ApplyOutcome writes the engine's decision onto the payment and reconciles
// the milestone timestamps.
func (p *Payment) ApplyOutcome(outcome Outcome, now time.Time) {
	p.Status = outcome.Status
	p.ResponseCode = outcome.ResponseCode
	p.ResponseMessage = outcome.ResponseMessage
	p.ReconcileMilestones(now)
}

// ReconcileMilestones populates the processed/paid/accredited timestamps when
// the payment is approved and clears them when it regresses to rejected or
// cancelled. Refunds keep the original accreditation history.
func (p *Payment) ReconcileMilestones(now time.Time) {
	switch p.Status {
	case StatusApproved:
		if p.ProcessedAt == nil {
			t := now
			p.ProcessedAt = &t
		}
		if p.PaidAt == nil {
			t := now
			p.PaidAt = &t
		}
		if p.AccreditedAt == nil {
			t := now
			p.AccreditedAt = &t
		}
	case StatusRejected, StatusCancelled:
		p.ProcessedAt = nil
		p.PaidAt = nil
		p.AccreditedAt = nil
	}
}

// Destination returns where this payment's notifications are POSTed: the
// per-payment override, the merchant's configured URL, or the fallback.
func (p *Payment) Destination(fallback string) string {
	if p.NotificationURL != "" {
		return p.NotificationURL
	}
	if p.Merchant.NotificationURL != "" {
		return p.Merchant.NotificationURL
	}
	return fallback
}

// WirePaymentMethod is the normalized instrument summary delivered to the
// notification consumer. Token fields are omitted entirely when absent.
type WirePaymentMethod struct {
	Type           string `json:"type"`
	Brand          string `json:"brand,omitempty"`
	LastFourDigits string `json:"last_four_digits,omitempty"`
	Token          string `json:"token,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	PanToken       string `json:"pan_token,omitempty"`
	CommerceToken  string `json:"commerce_token,omitempty"`
}

// NotificationPayload is the wire format of one outcome notification.
type NotificationPayload struct {
	DestinationRef  string            `json:"destination_ref"`
	TransactionID   string            `json:"transaction_id"`
	Status          string            `json:"status"`
	ResponseCode    string            `json:"response_code,omitempty"`
	ResponseMessage string            `json:"response_message,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethod   WirePaymentMethod `json:"payment_method"`
	Attributes      WireAttributes    `json:"attributes"`
	SentAt          time.Time         `json:"sent_at"`
}

// ToWirePayload builds the notification payload for a delivery attempt. The
// attributes are taken from the caller, not the stored payment, so a forced
// resend is labeled as such without mutating the record.
func (p *Payment) ToWirePayload(attrs DeliveryAttributes, now time.Time) NotificationPayload {
	var method WirePaymentMethod
	if len(p.PaymentMethods) > 0 {
		m := p.PaymentMethods[0]
		method = WirePaymentMethod{
			Type:           m.Type,
			Brand:          m.Brand,
			LastFourDigits: m.LastFourDigits,
			Token:          m.Token,
			TokenID:        m.TokenID,
			PanToken:       m.PanToken,
			CommerceToken:  m.CommerceToken,
		}
	}

	return NotificationPayload{
		DestinationRef:  p.Merchant.ID,
		TransactionID:   p.TransactionID,
		Status:          p.Status,
		ResponseCode:    p.ResponseCode,
		ResponseMessage: p.ResponseMessage,
		Amount:          p.Amount,
		Currency:        p.Currency,
		PaymentMethod:   method,
		Attributes:      attrs.ToWire(),
		SentAt:          now,
	}
}
