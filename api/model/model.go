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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pagadorhq/pagador/model"
)

func methodOrMethodsValidation(p *CreatePayment) validation.RuleFunc {
	return func(value interface{}) error {
		if (p.PaymentMethod == nil && len(p.PaymentMethods) == 0) || (p.PaymentMethod != nil && len(p.PaymentMethods) > 0) {
			return errors.New("either payment_method or payment_methods is required, not both")
		}
		return nil
	}
}

func methodTypeValidation(p *CreatePayment) validation.RuleFunc {
	return func(value interface{}) error {
		if p.PaymentMethod != nil && p.PaymentMethod.Type == "" {
			return errors.New("payment_method type is required")
		}
		for _, m := range p.PaymentMethods {
			if m.Type == "" {
				return errors.New("every payment method requires a type")
			}
		}
		return nil
	}
}

func currencyValidation(value interface{}) error {
	code, _ := value.(string)
	if code == "" {
		return nil
	}
	if !model.ValidCurrency(code) {
		return errors.New("currency must be one of ARS, USD, EUR, BRL")
	}
	return nil
}

func (p *CreatePayment) ValidateCreatePayment() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Merchant, validation.By(func(interface{}) error {
			return validation.ValidateStruct(&p.Merchant,
				validation.Field(&p.Merchant.ID, validation.Required),
				validation.Field(&p.Merchant.Name, validation.Required),
				validation.Field(&p.Merchant.Email, validation.Required, is.EmailFormat),
				validation.Field(&p.Merchant.NotificationURL, is.URL),
			)
		})),
		validation.Field(&p.Amount, validation.Required, validation.By(func(interface{}) error {
			if !p.Amount.IsPositive() {
				return errors.New("amount must be greater than zero")
			}
			return nil
		})),
		validation.Field(&p.Currency, validation.By(currencyValidation)),
		validation.Field(&p.Payer, validation.By(func(interface{}) error {
			return validation.ValidateStruct(&p.Payer,
				validation.Field(&p.Payer.Name, validation.Required),
				validation.Field(&p.Payer.Email, validation.Required, is.EmailFormat),
				validation.Field(&p.Payer.DocumentNumber, validation.Required),
			)
		})),
		validation.Field(&p.PaymentMethod, validation.By(methodOrMethodsValidation(p)), validation.By(methodTypeValidation(p))),
		validation.Field(&p.NotificationURL, is.URL),
	)
}

func (u *UpdateStatus) ValidateUpdateStatus() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Status, validation.Required, validation.By(func(value interface{}) error {
			status, _ := value.(string)
			if !model.ValidStatus(status) {
				return errors.New("status must be one of pending, approved, rejected, refunded or cancelled")
			}
			return nil
		})),
	)
}

func (r *ResendNotification) ValidateResendNotification() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.NotificationURL, is.URL),
	)
}

func (b *BulkGenerate) ValidateBulkGenerate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.Count, validation.Required, validation.Min(1), validation.Max(10000)),
		validation.Field(&b.OmitPanTokens, validation.In("", "none", "half", "all")),
		validation.Field(&b.Destination, is.URL),
	)
}

func (m *MarkNotifiedBulk) ValidateMarkNotifiedBulk() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.TransactionIDs, validation.Required, validation.Length(1, 0)),
	)
}

// ToPayment converts the request body to a payment record. A single
// payment_method is folded into the payment_methods list.
func (p *CreatePayment) ToPayment() *model.Payment {
	methods := make([]model.PaymentMethod, 0, len(p.PaymentMethods)+1)
	if p.PaymentMethod != nil {
		methods = append(methods, toModelMethod(*p.PaymentMethod))
	}
	for _, m := range p.PaymentMethods {
		methods = append(methods, toModelMethod(m))
	}

	return &model.Payment{
		Merchant: model.Merchant{
			ID:              p.Merchant.ID,
			Name:            p.Merchant.Name,
			Email:           p.Merchant.Email,
			NotificationURL: p.Merchant.NotificationURL,
		},
		Amount:   p.Amount,
		Currency: p.Currency,
		Payer: model.Payer{
			Name:           p.Payer.Name,
			Email:          p.Payer.Email,
			DocumentType:   p.Payer.DocumentType,
			DocumentNumber: p.Payer.DocumentNumber,
		},
		PaymentMethods:    methods,
		ExternalReference: p.ExternalReference,
		Description:       p.Description,
		NotificationURL:   p.NotificationURL,
		Attributes: model.DeliveryAttributes{
			AllowCommercePanToken: bool(p.Attributes.AllowCommercePanToken),
			FromBatch:             bool(p.Attributes.FromBatch),
			IsForce:               bool(p.Attributes.IsForce),
		},
		MetaData: p.MetaData,
	}
}
