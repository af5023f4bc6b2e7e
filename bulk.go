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
	"fmt"
	"math/rand"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/pagadorhq/pagador/internal/apierror"
	"github.com/pagadorhq/pagador/model"
	"github.com/shopspring/decimal"
)

const (
	MaxBulkCount = 10000

	OmitPanTokensNone = "none"
	OmitPanTokensHalf = "half"
	OmitPanTokensAll  = "all"

	duplicateScenarioCount = 10
	duplicateScenarioIndex = 4
)

// BulkOptions controls a generated batch. OmitPanTokens selects how many of
// the generated payment methods carry pan/commerce tokens: none omitted,
// every other one omitted, or all omitted.
type BulkOptions struct {
	Count         int
	ForceApproved bool
	OmitPanTokens string
	Destination   string
}

type BulkItemError struct {
	Index         int    `json:"index"`
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error"`
}

// BulkResult summarizes a generated batch. NotificationsSent counts actual
// deliveries, which exceeds Created when a scenario re-sends an item.
type BulkResult struct {
	Created                 int             `json:"created"`
	Approved                int             `json:"approved"`
	Rejected                int             `json:"rejected"`
	Pending                 int             `json:"pending"`
	NotificationsSent       int             `json:"notificationsSent"`
	Errors                  []BulkItemError `json:"errors,omitempty"`
	DuplicatedTransactionID string          `json:"duplicated_transaction_id,omitempty"`
	DuplicateSends          int             `json:"duplicate_sends,omitempty"`
}

func validateBulkOptions(opts *BulkOptions) error {
	if opts.Count < 1 || opts.Count > MaxBulkCount {
		return apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("count must be between 1 and %d, got %d", MaxBulkCount, opts.Count), nil)
	}
	if opts.OmitPanTokens == "" {
		opts.OmitPanTokens = OmitPanTokensNone
	}
	switch opts.OmitPanTokens {
	case OmitPanTokensNone, OmitPanTokensHalf, OmitPanTokensAll:
	default:
		return apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("omit_pan_tokens must be one of none, half or all, got %q", opts.OmitPanTokens), nil)
	}
	return nil
}

// fakePayment fabricates one realistic payment for the batch. The index
// decides token omission under the "half" mode.
func fakePayment(opts BulkOptions, index int) *model.Payment {
	card := gofakeit.CreditCard()
	number := card.Number
	lastFour := number
	if len(number) > 4 {
		lastFour = number[len(number)-4:]
	}

	method := model.PaymentMethod{
		Type:           "credit_card",
		Brand:          strings.ToLower(card.Type),
		LastFourDigits: lastFour,
		Token:          uuid.New().String(),
	}

	omit := opts.OmitPanTokens == OmitPanTokensAll ||
		(opts.OmitPanTokens == OmitPanTokensHalf && index%2 == 1)
	if !omit {
		method.TokenID = uuid.New().String()
		method.PanToken = uuid.New().String()
		method.CommerceToken = uuid.New().String()
	}

	// Cents in 01..49 or 51..98 keep the amount off the deterministic
	// suffixes when the batch is meant to exercise the random split.
	cents := 1 + rand.Intn(48)
	if rand.Intn(2) == 0 {
		cents += 50
	}
	whole := 1 + rand.Intn(99999)
	if opts.ForceApproved {
		// Whole hundreds normalize to a string ending in "00".
		cents = 0
		whole = 100 * (1 + rand.Intn(999))
	}
	amount := decimal.NewFromInt(int64(whole)).Add(decimal.New(int64(cents), -2))

	return &model.Payment{
		Merchant: model.Merchant{
			ID:              uuid.New().String(),
			Name:            gofakeit.Company(),
			Email:           gofakeit.Email(),
			NotificationURL: opts.Destination,
		},
		Amount:   amount,
		Currency: model.DefaultCurrency,
		Payer: model.Payer{
			Name:           gofakeit.Name(),
			Email:          gofakeit.Email(),
			DocumentType:   "DNI",
			DocumentNumber: fmt.Sprintf("%08d", gofakeit.Number(10000000, 99999999)),
		},
		PaymentMethods: []model.PaymentMethod{method},
		Description:    fmt.Sprintf("generated payment %d", index+1),
		Attributes: model.DeliveryAttributes{
			AllowCommercePanToken: !omit,
			FromBatch:             true,
		},
		MetaData: map[string]interface{}{
			"generated":   true,
			"batch_index": index,
		},
	}
}

// GenerateBulk creates opts.Count fabricated payments, running each through
// the regular creation path so outcomes, persistence and notifications all
// behave exactly as individually created payments do.
func (l *Pagador) GenerateBulk(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	result, _, err := l.generateBatch(ctx, opts)
	return result, err
}

func (l *Pagador) generateBatch(ctx context.Context, opts BulkOptions) (*BulkResult, []*model.Payment, error) {
	if err := validateBulkOptions(&opts); err != nil {
		return nil, nil, err
	}

	result := &BulkResult{}
	created := make([]*model.Payment, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		payment := fakePayment(opts, i)

		outcome := DecideOutcome(payment.Amount)
		if opts.ForceApproved {
			outcome = approvedOutcome()
		}

		saved, deliveryErr, err := l.recordWithOutcome(ctx, payment, outcome)
		if err != nil {
			result.Errors = append(result.Errors, BulkItemError{Index: i, Error: err.Error()})
			continue
		}

		result.Created++
		created = append(created, saved)
		switch saved.Status {
		case model.StatusApproved:
			result.Approved++
		case model.StatusRejected:
			result.Rejected++
		case model.StatusPending:
			result.Pending++
		}

		if deliveryErr != nil {
			result.Errors = append(result.Errors, BulkItemError{
				Index:         i,
				TransactionID: saved.TransactionID,
				Error:         deliveryErr.Error(),
			})
		} else if saved.NotificationSent {
			result.NotificationsSent++
		}
	}
	return result, created, nil
}

// GenerateDuplicateScenario creates a batch of ten payments and re-delivers
// the fifth one's notification flagged is_force=true, so the downstream
// consumer can rehearse its dedup handling of a repeated transaction.
func (l *Pagador) GenerateDuplicateScenario(ctx context.Context, destination string) (*BulkResult, error) {
	result, created, err := l.generateBatch(ctx, BulkOptions{
		Count:       duplicateScenarioCount,
		Destination: destination,
	})
	if err != nil {
		return nil, err
	}
	if len(created) <= duplicateScenarioIndex {
		return result, nil
	}

	target := created[duplicateScenarioIndex]
	result.DuplicatedTransactionID = target.TransactionID
	attrs := target.Attributes
	attrs.IsForce = true

	if _, deliveryErr := l.deliver(ctx, target, attrs); deliveryErr != nil {
		result.Errors = append(result.Errors, BulkItemError{
			Index:         duplicateScenarioIndex,
			TransactionID: target.TransactionID,
			Error:         deliveryErr.Error(),
		})
		return result, nil
	}

	result.NotificationsSent++
	result.DuplicateSends++
	return result, nil
}
