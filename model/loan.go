/*
Copyright 2024 Blnk Finance Authors.

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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanRequested LoanStatus = "requested"
	LoanApproved  LoanStatus = "approved"
	LoanRepaid    LoanStatus = "repaid"
)

// LoanRequest asks for Amount to be lent into AccountID. InterestRate is
// recorded on the loan and never accrued automatically.
type LoanRequest struct {
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
}

// Loan tracks what is still owed. Outstanding starts at Principal and only
// shrinks through repayments.
type Loan struct {
	LoanID       string          `json:"loan_id"`
	AccountID    string          `json:"account_id"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	Status       LoanStatus      `json:"status"`
	RequestedAt  time.Time       `json:"requested_at"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	RepaidAt     *time.Time      `json:"repaid_at,omitempty"`
}

func (r *LoanRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AccountID, validation.Required),
		validation.Field(&r.Amount, validation.By(positive)),
		validation.Field(&r.InterestRate, validation.By(notNegative)),
	)
}

// Repayment returns the part of amount that is applied to the loan. Anything
// above the outstanding amount is not taken.
func (l Loan) Repayment(amount decimal.Decimal) decimal.Decimal {
	return decimal.Min(amount, l.Outstanding)
}

func positive(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if !amount.IsPositive() {
		return errors.New("must be positive")
	}
	return nil
}
