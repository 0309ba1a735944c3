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

package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a balance mutation.
type Kind string

const (
	KindDeposit     Kind = "DEPOSIT"
	KindWithdrawal  Kind = "WITHDRAWAL"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindTransferOut Kind = "TRANSFER_OUT"
	KindInterest    Kind = "INTEREST"
	KindFee         Kind = "FEE"
)

// IsCredit reports whether records of this kind increase the balance.
func (k Kind) IsCredit() bool {
	switch k {
	case KindDeposit, KindTransferIn, KindInterest:
		return true
	}
	return false
}

// Transaction is an immutable record of one committed balance mutation.
// Records are only created by Account; the account id is a back reference.
type Transaction struct {
	id           string
	amount       decimal.Decimal
	kind         Kind
	timestamp    time.Time
	accountID    string
	counterparty string
	reference    string
	balanceAfter decimal.Decimal
}

func (t Transaction) ID() string                    { return t.id }
func (t Transaction) Amount() decimal.Decimal       { return t.amount }
func (t Transaction) Kind() Kind                    { return t.kind }
func (t Transaction) Timestamp() time.Time          { return t.timestamp }
func (t Transaction) AccountID() string             { return t.accountID }
func (t Transaction) BalanceAfter() decimal.Decimal { return t.balanceAfter }

// CounterpartyID is the other account of a transfer leg, empty otherwise.
func (t Transaction) CounterpartyID() string { return t.counterparty }

// Reference is the transfer id shared by both legs of a transfer.
func (t Transaction) Reference() string { return t.reference }

// SignedAmount returns the amount with the sign of its effect on the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.kind.IsCredit() {
		return t.amount
	}
	return t.amount.Neg()
}

type transactionJSON struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Kind         Kind            `json:"kind"`
	Timestamp    time.Time       `json:"timestamp"`
	AccountID    string          `json:"account_id"`
	Counterparty string          `json:"counterparty_id,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// MarshalJSON encodes the record for event payloads and statements.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:           t.id,
		Amount:       t.amount,
		Kind:         t.kind,
		Timestamp:    t.timestamp,
		AccountID:    t.accountID,
		Counterparty: t.counterparty,
		Reference:    t.reference,
		BalanceAfter: t.balanceAfter,
	})
}
