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
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

const loanPrefix = "loan"

// loanEntry is owned by whoever set busy until it is settled. Only the owner
// mutates loan.
type loanEntry struct {
	loan model.Loan
	busy bool
}

// RequestLoan records a loan against an open account. Nothing moves until
// the loan is approved.
func (t *Tally) RequestLoan(ctx context.Context, req model.LoanRequest) (model.Loan, error) {
	_, span := tracer.Start(ctx, "RequestLoan")
	defer span.End()

	if err := req.Validate(); err != nil {
		err = invalidRequest(err)
		span.RecordError(err)
		return model.Loan{}, err
	}
	if _, err := t.lookup(req.AccountID); err != nil {
		span.RecordError(err)
		return model.Loan{}, err
	}

	loan := model.Loan{
		LoanID:       t.ids.NewID(loanPrefix),
		AccountID:    req.AccountID,
		Principal:    req.Amount,
		InterestRate: req.InterestRate,
		Outstanding:  req.Amount,
		Status:       model.LoanRequested,
		RequestedAt:  t.clock.Now(),
	}
	t.loansMu.Lock()
	t.loans[loan.LoanID] = &loanEntry{loan: loan}
	t.loansMu.Unlock()

	span.AddEvent("Loan requested", trace.WithAttributes(
		attribute.String("loan.id", loan.LoanID),
		attribute.String("account.id", loan.AccountID),
	))
	logrus.WithFields(logrus.Fields{"loan_id": loan.LoanID, "account_id": loan.AccountID, "amount": loan.Principal.String()}).Debug("loan requested")
	return loan, nil
}

// ApproveLoan credits the principal to the borrowing account.
func (t *Tally) ApproveLoan(ctx context.Context, loanID string) (model.Loan, ledger.Transaction, error) {
	ctx, span := tracer.Start(ctx, "ApproveLoan")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", loanID))

	e, err := t.claimLoan(loanID)
	if err != nil {
		span.RecordError(err)
		return model.Loan{}, ledger.Transaction{}, err
	}
	if e.loan.Status != model.LoanRequested {
		err := fmt.Errorf("%w: %s is %s", ErrLoanNotPending, loanID, e.loan.Status)
		span.RecordError(err)
		return t.settleLoan(e, nil), ledger.Transaction{}, err
	}

	rec, err := t.apply(ctx, "DisburseLoan", e.loan.AccountID, e.loan.Principal, (*ledger.Account).Credit)
	if err != nil {
		span.RecordError(err)
		return t.settleLoan(e, nil), ledger.Transaction{}, err
	}

	now := t.clock.Now()
	loan := t.settleLoan(e, func(l *model.Loan) {
		l.Status = model.LoanApproved
		l.ApprovedAt = &now
	})
	logrus.WithFields(logrus.Fields{"loan_id": loanID, "account_id": loan.AccountID}).Info("loan approved")
	return loan, rec, nil
}

// RepayLoan debits the borrowing account and reduces what is owed. Only the
// outstanding amount is ever taken; a larger amount settles the loan.
func (t *Tally) RepayLoan(ctx context.Context, loanID string, amount decimal.Decimal) (model.Loan, ledger.Transaction, error) {
	ctx, span := tracer.Start(ctx, "RepayLoan")
	defer span.End()
	span.SetAttributes(attribute.String("loan.id", loanID), attribute.String("amount", amount.String()))

	if !amount.IsPositive() {
		err := fmt.Errorf("%w: got %s", ledger.ErrInvalidAmount, amount)
		span.RecordError(err)
		return model.Loan{}, ledger.Transaction{}, err
	}
	e, err := t.claimLoan(loanID)
	if err != nil {
		span.RecordError(err)
		return model.Loan{}, ledger.Transaction{}, err
	}
	switch e.loan.Status {
	case model.LoanRequested:
		err = fmt.Errorf("%w: %s", ErrLoanNotApproved, loanID)
	case model.LoanRepaid:
		err = fmt.Errorf("%w: %s", ErrLoanRepaid, loanID)
	}
	if err != nil {
		span.RecordError(err)
		return t.settleLoan(e, nil), ledger.Transaction{}, err
	}

	payment := e.loan.Repayment(amount)
	rec, err := t.apply(ctx, "CollectRepayment", e.loan.AccountID, payment, (*ledger.Account).Debit)
	if err != nil {
		span.RecordError(err)
		return t.settleLoan(e, nil), ledger.Transaction{}, err
	}

	now := t.clock.Now()
	loan := t.settleLoan(e, func(l *model.Loan) {
		l.Outstanding = l.Outstanding.Sub(payment)
		if l.Outstanding.IsZero() {
			l.Status = model.LoanRepaid
			l.RepaidAt = &now
		}
	})
	span.SetAttributes(attribute.String("loan.outstanding", loan.Outstanding.String()))
	return loan, rec, nil
}

func (t *Tally) GetLoan(loanID string) (model.Loan, error) {
	t.loansMu.Lock()
	defer t.loansMu.Unlock()
	e, ok := t.loans[loanID]
	if !ok {
		return model.Loan{}, fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
	}
	return e.loan, nil
}

// Loans lists the loans of one account in request order.
func (t *Tally) Loans(accountID string) []model.Loan {
	t.loansMu.Lock()
	out := []model.Loan{}
	for _, e := range t.loans {
		if e.loan.AccountID == accountID {
			out = append(out, e.loan)
		}
	}
	t.loansMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].LoanID < out[j].LoanID
	})
	return out
}

// claimLoan marks the loan busy so its ledger mutation can run without
// loansMu held. Event sinks may therefore read loans.
func (t *Tally) claimLoan(loanID string) (*loanEntry, error) {
	t.loansMu.Lock()
	defer t.loansMu.Unlock()
	e, ok := t.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
	}
	if e.busy {
		return nil, fmt.Errorf("%w: %s", ErrLoanInUse, loanID)
	}
	e.busy = true
	return e, nil
}

func (t *Tally) settleLoan(e *loanEntry, update func(*model.Loan)) model.Loan {
	t.loansMu.Lock()
	defer t.loansMu.Unlock()
	if update != nil {
		update(&e.loan)
	}
	e.busy = false
	return e.loan
}
