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

package tally

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

func TestLoanLifecycle(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "100")

	loan, err := tl.RequestLoan(ctx, model.LoanRequest{AccountID: "acc_a", Amount: d("1000"), InterestRate: d("0.05")})
	require.NoError(t, err)
	assert.Contains(t, loan.LoanID, "loan_")
	assert.Equal(t, model.LoanRequested, loan.Status)
	assert.True(t, d("1000").Equal(loan.Outstanding))
	assert.Equal(t, testNow, loan.RequestedAt)

	balance, _ := tl.Balance(ctx, "acc_a")
	assert.True(t, d("100").Equal(balance), "requesting moves nothing")

	_, _, err = tl.RepayLoan(ctx, loan.LoanID, d("10"))
	assert.ErrorIs(t, err, ErrLoanNotApproved)

	approved, rec, err := tl.ApproveLoan(ctx, loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, ledger.KindDeposit, rec.Kind())
	assert.True(t, d("1100").Equal(rec.BalanceAfter()))

	_, _, err = tl.ApproveLoan(ctx, loan.LoanID)
	assert.ErrorIs(t, err, ErrLoanNotPending)

	partial, rec, err := tl.RepayLoan(ctx, loan.LoanID, d("400"))
	require.NoError(t, err)
	assert.Equal(t, ledger.KindWithdrawal, rec.Kind())
	assert.True(t, d("600").Equal(partial.Outstanding))
	assert.Equal(t, model.LoanApproved, partial.Status)

	settled, rec, err := tl.RepayLoan(ctx, loan.LoanID, d("900"))
	require.NoError(t, err)
	assert.True(t, d("600").Equal(rec.Amount()), "only the outstanding amount is taken")
	assert.True(t, settled.Outstanding.IsZero())
	assert.Equal(t, model.LoanRepaid, settled.Status)
	require.NotNil(t, settled.RepaidAt)

	_, _, err = tl.RepayLoan(ctx, loan.LoanID, d("1"))
	assert.ErrorIs(t, err, ErrLoanRepaid)

	balance, _ = tl.Balance(ctx, "acc_a")
	assert.True(t, d("100").Equal(balance))

	loans := tl.Loans("acc_a")
	require.Len(t, loans, 1)
	assert.Equal(t, model.LoanRepaid, loans[0].Status)
	assert.Empty(t, tl.Loans("acc_b"))
}

func TestRequestLoanErrors(t *testing.T) {
	tl := newTestTally(t)
	openSavings(t, tl, "acc_a", "0")

	tests := []struct {
		name    string
		req     model.LoanRequest
		wantErr error
	}{
		{name: "missing account", req: model.LoanRequest{Amount: d("10")}, wantErr: ErrInvalidRequest},
		{name: "zero amount", req: model.LoanRequest{AccountID: "acc_a", Amount: d("0")}, wantErr: ErrInvalidRequest},
		{name: "negative rate", req: model.LoanRequest{AccountID: "acc_a", Amount: d("10"), InterestRate: d("-0.1")}, wantErr: ErrInvalidRequest},
		{name: "unknown account", req: model.LoanRequest{AccountID: "acc_z", Amount: d("10")}, wantErr: ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tl.RequestLoan(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, tl.Loans("acc_a"))
}

func TestRepayLoanInsufficientFunds(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "0")

	loan, err := tl.RequestLoan(ctx, model.LoanRequest{AccountID: "acc_a", Amount: d("500")})
	require.NoError(t, err)
	_, _, err = tl.ApproveLoan(ctx, loan.LoanID)
	require.NoError(t, err)
	_, err = tl.Withdraw(ctx, "acc_a", d("450"))
	require.NoError(t, err)

	_, _, err = tl.RepayLoan(ctx, loan.LoanID, d("100"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := tl.GetLoan(loan.LoanID)
	require.NoError(t, err)
	assert.True(t, d("500").Equal(got.Outstanding), "a rejected repayment changes nothing")

	got, _, err = tl.RepayLoan(ctx, loan.LoanID, d("50"))
	require.NoError(t, err)
	assert.True(t, d("450").Equal(got.Outstanding))
}

func TestRepayLoanInvalid(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()

	_, _, err := tl.RepayLoan(ctx, "loan_x", d("0"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, _, err = tl.RepayLoan(ctx, "loan_x", d("1"))
	assert.ErrorIs(t, err, ErrLoanNotFound)

	_, _, err = tl.ApproveLoan(ctx, "loan_x")
	assert.ErrorIs(t, err, ErrLoanNotFound)

	_, err = tl.GetLoan("loan_x")
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestApproveLoanForClosedAccount(t *testing.T) {
	tl := newTestTally(t)
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "0")

	loan, err := tl.RequestLoan(ctx, model.LoanRequest{AccountID: "acc_a", Amount: d("50")})
	require.NoError(t, err)
	_, err = tl.CloseAccount(ctx, "acc_a")
	require.NoError(t, err)

	_, _, err = tl.ApproveLoan(ctx, loan.LoanID)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	got, err := tl.GetLoan(loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanRequested, got.Status)
}

func TestLoanSinkCallsBack(t *testing.T) {
	var tl *Tally
	var inSink []error
	var seen []model.Loan
	sink := ledger.EventSinkFunc(func(ctx context.Context, e ledger.Event) {
		if e.Type != ledger.EventTransactionApplied || e.Kind != ledger.KindDeposit {
			return
		}
		loans := tl.Loans(e.AccountID)
		seen = append(seen, loans...)
		for _, l := range loans {
			_, _, err := tl.ApproveLoan(ctx, l.LoanID)
			inSink = append(inSink, err)
		}
	})
	tl = newTestTally(t, WithEventSink(sink))
	ctx := context.Background()
	openSavings(t, tl, "acc_a", "0")

	loan, err := tl.RequestLoan(ctx, model.LoanRequest{AccountID: "acc_a", Amount: d("75")})
	require.NoError(t, err)
	_, _, err = tl.ApproveLoan(ctx, loan.LoanID)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, model.LoanRequested, seen[0].Status, "sink runs before the loan is settled")
	require.Len(t, inSink, 1)
	assert.ErrorIs(t, inSink[0], ErrLoanInUse)

	balance, _ := tl.Balance(ctx, "acc_a")
	assert.True(t, d("75").Equal(balance), "principal credited once")
}
