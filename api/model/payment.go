package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pagadorhq/pagador/model"
	"github.com/shopspring/decimal"
)

// FlexBool unmarshals from a JSON boolean or its "true"/"false" string form,
// matching the string-typed delivery attributes merchants send on create.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*b = false
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q", raw)
	}
	*b = FlexBool(parsed)
	return nil
}

type CreatePaymentMerchant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	NotificationURL string `json:"notification_url,omitempty"`
}

type CreatePaymentPayer struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number"`
}

type CreatePaymentMethod struct {
	Type           string `json:"type"`
	Brand          string `json:"brand,omitempty"`
	LastFourDigits string `json:"last_four_digits,omitempty"`
	Token          string `json:"token,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	PanToken       string `json:"pan_token,omitempty"`
	CommerceToken  string `json:"commerce_token,omitempty"`
}

type CreatePaymentAttributes struct {
	AllowCommercePanToken FlexBool `json:"allow_commerce_pan_token"`
	FromBatch             FlexBool `json:"from_batch"`
	IsForce               FlexBool `json:"is_force"`
}

type CreatePayment struct {
	Merchant          CreatePaymentMerchant   `json:"merchant"`
	Amount            decimal.Decimal         `json:"amount"`
	Currency          string                  `json:"currency"`
	Payer             CreatePaymentPayer      `json:"payer"`
	PaymentMethod     *CreatePaymentMethod    `json:"payment_method,omitempty"`
	PaymentMethods    []CreatePaymentMethod   `json:"payment_methods,omitempty"`
	ExternalReference string                  `json:"external_reference,omitempty"`
	Description       string                  `json:"description,omitempty"`
	NotificationURL   string                  `json:"notification_url,omitempty"`
	Attributes        CreatePaymentAttributes `json:"attributes"`
	MetaData          map[string]interface{}  `json:"meta_data,omitempty"`
}

type UpdateStatus struct {
	Status string `json:"status"`
}

type ResendNotification struct {
	NotificationURL string `json:"notification_url,omitempty"`
	Force           *bool  `json:"force,omitempty"`
}

type BulkGenerate struct {
	Count         int    `json:"count"`
	OmitPanTokens string `json:"omit_pan_tokens,omitempty"`
	Destination   string `json:"destination,omitempty"`
}

type MarkNotifiedBulk struct {
	TransactionIDs []string `json:"transaction_ids"`
}

func toModelMethod(m CreatePaymentMethod) model.PaymentMethod {
	return model.PaymentMethod{
		Type:           m.Type,
		Brand:          m.Brand,
		LastFourDigits: m.LastFourDigits,
		Token:          m.Token,
		TokenID:        m.TokenID,
		PanToken:       m.PanToken,
		CommerceToken:  m.CommerceToken,
	}
}
