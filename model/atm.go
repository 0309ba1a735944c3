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
	"time"

	"github.com/shopspring/decimal"
)

type ATMOperation string

const (
	ATMWithdraw     ATMOperation = "withdraw"
	ATMDeposit      ATMOperation = "deposit"
	ATMTransfer     ATMOperation = "transfer"
	ATMBalanceCheck ATMOperation = "balance"
)

// ATMTransaction is one journal line of an ATM. CardNumber is masked.
type ATMTransaction struct {
	ID         string          `json:"id"`
	Location   string          `json:"location"`
	Operation  ATMOperation    `json:"operation"`
	CardNumber string          `json:"card_number"`
	AccountID  string          `json:"account_id"`
	Target     string          `json:"target,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	Reference  string          `json:"reference,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}
