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

	"github.com/blnkfinance/tally/ledger"
)

type AccountType string

const (
	AccountTypeSavings AccountType = "savings"
	AccountTypeCurrent AccountType = "current"
)

// OpenAccountRequest describes a new account. OverdraftLimit is only honoured
// for current accounts; when nil the configured default applies.
type OpenAccountRequest struct {
	AccountID      string                 `json:"account_id"`
	Type           AccountType            `json:"type"`
	HolderName     string                 `json:"holder_name"`
	InitialBalance decimal.Decimal        `json:"initial_balance"`
	OverdraftLimit *decimal.Decimal       `json:"overdraft_limit,omitempty"`
	InterestRate   decimal.Decimal        `json:"interest_rate"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// AccountProfile is the static part of an account held by the registry.
type AccountProfile struct {
	AccountID      string                 `json:"account_id"`
	Type           AccountType            `json:"type"`
	HolderName     string                 `json:"holder_name"`
	InterestRate   decimal.Decimal        `json:"interest_rate"`
	OverdraftLimit decimal.Decimal        `json:"overdraft_limit"`
	OpenedAt       time.Time              `json:"opened_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

type AccountSummary struct {
	AccountID      string          `json:"account_id"`
	Type           AccountType     `json:"type"`
	HolderName     string          `json:"holder_name"`
	Balance        decimal.Decimal `json:"balance"`
	OverdraftLimit decimal.Decimal `json:"overdraft_limit"`
	Transactions   int             `json:"transactions"`
}

// ArchivedAccount is what remains of an account after it is closed.
type ArchivedAccount struct {
	Profile      AccountProfile       `json:"profile"`
	FinalBalance decimal.Decimal      `json:"final_balance"`
	ClosedAt     time.Time            `json:"closed_at"`
	History      []ledger.Transaction `json:"history"`
}

func (r *OpenAccountRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.In(AccountTypeSavings, AccountTypeCurrent)),
		validation.Field(&r.HolderName, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.InitialBalance, validation.By(notNegative)),
		validation.Field(&r.InterestRate, validation.By(notNegative), validation.By(func(value interface{}) error {
			rate, _ := value.(decimal.Decimal)
			if !rate.IsZero() && r.Type != AccountTypeSavings {
				return errors.New("only savings accounts earn interest")
			}
			return nil
		})),
		validation.Field(&r.OverdraftLimit, validation.By(func(value interface{}) error {
			limit, _ := value.(*decimal.Decimal)
			if limit == nil {
				return nil
			}
			if limit.IsNegative() {
				return errors.New("must not be negative")
			}
			if !limit.IsZero() && r.Type == AccountTypeSavings {
				return errors.New("savings accounts cannot overdraw")
			}
			return nil
		})),
	)
}

func notNegative(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if amount.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
