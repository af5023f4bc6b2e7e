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
	"math/rand"
	"strings"

	"github.com/pagadorhq/pagador/model"
	"github.com/shopspring/decimal"
)

// rejectionReason pairs an ISO-8583 style response code with its message.
type rejectionReason struct {
	code    string
	message string
}

var rejectionReasons = []rejectionReason{
	{"51", "insufficient funds"},
	{"54", "expired card"},
	{"57", "transaction not permitted"},
	{"91", "issuer unavailable"},
}

func approvedOutcome() model.Outcome {
	return model.Outcome{
		Status:          model.StatusApproved,
		ResponseCode:    "00",
		ResponseMessage: "authorized",
	}
}

func pendingOutcome() model.Outcome {
	return model.Outcome{
		Status:          model.StatusPending,
		ResponseCode:    "PE",
		ResponseMessage: "awaiting validation",
	}
}

func rejectedOutcome() model.Outcome {
	reason := rejectionReasons[rand.Intn(len(rejectionReasons))]
	return model.Outcome{
		Status:          model.StatusRejected,
		ResponseCode:    reason.code,
		ResponseMessage: reason.message,
	}
}

// DecideOutcome maps an amount to a payment outcome. The last two characters
// of the normalized amount string (trailing fractional zeros dropped, so
// 1999.00 reads as "1999") select the path: "00" always approves, "99" always
// rejects and "50" stays pending. Any other suffix draws randomly with an
// 80/15/5 approved/rejected/pending split.
func DecideOutcome(amount decimal.Decimal) model.Outcome {
	normalized := amount.String()

	// Negative amounts never hit a deterministic suffix.
	if strings.HasPrefix(normalized, "-") {
		return rejectedOutcome()
	}

	if len(normalized) >= 2 {
		switch normalized[len(normalized)-2:] {
		case "00":
			return approvedOutcome()
		case "99":
			return rejectedOutcome()
		case "50":
			return pendingOutcome()
		}
	}

	r := rand.Float64()
	switch {
	case r < 0.80:
		return approvedOutcome()
	case r < 0.95:
		return rejectedOutcome()
	default:
		return pendingOutcome()
	}
}
