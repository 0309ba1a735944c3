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

	"github.com/blnkfinance/tally/ledger"
)

type StatementLine struct {
	TransactionID  string          `json:"transaction_id"`
	Kind           ledger.Kind     `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Statement summarises an account's history. Line amounts are signed and
// Balance on each line is the running balance after that line.
type Statement struct {
	AccountID      string          `json:"account_id"`
	HolderName     string          `json:"holder_name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []StatementLine `json:"lines"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// NewStatement folds records, oldest first, into a statement ending at closing.
func NewStatement(accountID string, closing decimal.Decimal, records []ledger.Transaction) Statement {
	st := Statement{
		AccountID:      accountID,
		TotalCredits:   decimal.Zero,
		TotalDebits:    decimal.Zero,
		ClosingBalance: closing,
		Lines:          make([]StatementLine, 0, len(records)),
	}
	net := decimal.Zero
	for _, rec := range records {
		net = net.Add(rec.SignedAmount())
		if rec.Kind().IsCredit() {
			st.TotalCredits = st.TotalCredits.Add(rec.Amount())
		} else {
			st.TotalDebits = st.TotalDebits.Add(rec.Amount())
		}
	}
	st.OpeningBalance = closing.Sub(net)

	running := st.OpeningBalance
	for _, rec := range records {
		running = running.Add(rec.SignedAmount())
		st.Lines = append(st.Lines, StatementLine{
			TransactionID:  rec.ID(),
			Kind:           rec.Kind(),
			Amount:         rec.SignedAmount(),
			CounterpartyID: rec.CounterpartyID(),
			Reference:      rec.Reference(),
			Balance:        running,
			Timestamp:      rec.Timestamp(),
		})
	}
	return st
}
