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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/ledger"
	"github.com/blnkfinance/tally/model"
)

func demoCommands(app *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "run a scripted scenario against an in-memory tally",
	}
	scenarios := []struct {
		use, short string
		run        func(ctx context.Context, out io.Writer, app *tallyInstance) error
	}{
		{"bank", "open, fund, transfer, accrue interest and close accounts", runBankDemo},
		{"atm", "use debit cards at an ATM", runATMDemo},
		{"shop", "pay for shopping carts with idempotent transfers", runShopDemo},
	}
	for _, s := range scenarios {
		s := s
		cmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.run(cmd.Context(), cmd.OutOrStdout(), app)
			},
		})
	}
	return cmd
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// report prints the outcome of one step; expected rejections are not fatal.
func report(out io.Writer, step string, err error) {
	if err != nil {
		fmt.Fprintf(out, "  %-40s rejected: %v\n", step, err)
		return
	}
	fmt.Fprintf(out, "  %-40s ok\n", step)
}

func printBalances(ctx context.Context, out io.Writer, t *tally.Tally) {
	fmt.Fprintln(out, "Balances:")
	for _, s := range t.ListAccounts(ctx) {
		fmt.Fprintf(out, "  %-10s %-14s %10s (overdraft %s, %d records)\n",
			s.AccountID, s.HolderName, s.Balance.StringFixed(2), s.OverdraftLimit.StringFixed(2), s.Transactions)
	}
}

func printStatement(out io.Writer, st model.Statement) {
	fmt.Fprintf(out, "Statement for %s (%s)\n", st.AccountID, st.HolderName)
	fmt.Fprintf(out, "  opening %s\n", st.OpeningBalance.StringFixed(2))
	for _, l := range st.Lines {
		fmt.Fprintf(out, "  %-13s %10s  balance %10s %s\n", l.Kind, l.Amount.StringFixed(2), l.Balance.StringFixed(2), l.CounterpartyID)
	}
	fmt.Fprintf(out, "  credits %s, debits %s, closing %s\n",
		st.TotalCredits.StringFixed(2), st.TotalDebits.StringFixed(2), st.ClosingBalance.StringFixed(2))
}

func runBankDemo(ctx context.Context, out io.Writer, app *tallyInstance) error {
	t := app.tally
	fmt.Fprintln(out, "--- Banking ---")

	limit := money("200")
	requests := []model.OpenAccountRequest{
		{AccountID: "SA001", Type: model.AccountTypeSavings, HolderName: "Alice Smith", InitialBalance: money("1000"), InterestRate: money("0.015")},
		{AccountID: "CA001", Type: model.AccountTypeCurrent, HolderName: "Alice Smith", InitialBalance: money("500"), OverdraftLimit: &limit},
		{AccountID: "SA002", Type: model.AccountTypeSavings, HolderName: "Bob Johnson", InitialBalance: money("2500"), InterestRate: money("0.018")},
	}
	for _, req := range requests {
		if _, err := t.OpenAccount(ctx, req); err != nil {
			return err
		}
	}

	_, err := t.Deposit(ctx, "CA001", money("150"))
	report(out, "deposit 150 into CA001", err)
	_, err = t.Withdraw(ctx, "CA001", money("800"))
	report(out, "withdraw 800 from CA001 (overdraft)", err)
	_, err = t.Withdraw(ctx, "CA001", money("100"))
	report(out, "withdraw 100 more from CA001", err)
	_, err = t.Withdraw(ctx, "SA001", money("5000"))
	report(out, "withdraw 5000 from SA001", err)

	_, err = t.Transfer(ctx, model.TransferRequest{Source: "SA002", Destination: "CA001", Amount: money("300"), Description: "Bob pays Alice"})
	report(out, "transfer 300 SA002 -> CA001", err)
	_, err = t.Transfer(ctx, model.TransferRequest{Source: "SA001", Destination: "SA001", Amount: money("1")})
	report(out, "transfer SA001 -> SA001", err)

	for _, id := range []string{"SA001", "SA002", "CA001"} {
		rec, err := t.ApplyInterest(ctx, id)
		if err == nil {
			report(out, fmt.Sprintf("interest %s on %s", rec.Amount().StringFixed(2), id), nil)
			continue
		}
		report(out, "interest on "+id, err)
	}

	_, err = t.ChargeFee(ctx, "CA001", money("2.50"))
	report(out, "monthly fee on CA001", err)

	if err := runLoan(ctx, out, t); err != nil {
		return err
	}

	printBalances(ctx, out, t)

	st, err := t.Statement(ctx, "CA001")
	if err != nil {
		return err
	}
	printStatement(out, st)

	archived, err := t.CloseAccount(ctx, "SA002")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Closed SA002 with final balance %s and %d records\n", archived.FinalBalance.StringFixed(2), len(archived.History))
	_, err = t.Deposit(ctx, "SA002", money("1"))
	report(out, "deposit into closed SA002", err)
	return nil
}

// runLoan lends Bob 1000 into SA002. The second repayment overpays and
// settles the loan, so the third is rejected.
func runLoan(ctx context.Context, out io.Writer, t *tally.Tally) error {
	loan, err := t.RequestLoan(ctx, model.LoanRequest{AccountID: "SA002", Amount: money("1000"), InterestRate: money("0.05")})
	if err != nil {
		return err
	}
	_, _, err = t.RepayLoan(ctx, loan.LoanID, money("100"))
	report(out, "repay a loan before approval", err)

	if _, _, err := t.ApproveLoan(ctx, loan.LoanID); err != nil {
		return err
	}
	report(out, "approve loan of 1000 into SA002", nil)
	for _, amount := range []string{"400", "900", "50"} {
		updated, _, err := t.RepayLoan(ctx, loan.LoanID, money(amount))
		if err != nil {
			report(out, "repay "+amount, err)
			continue
		}
		loan = updated
		report(out, fmt.Sprintf("repay %s, outstanding %s", amount, loan.Outstanding.StringFixed(2)), nil)
	}
	fmt.Fprintf(out, "Loan %s is %s\n", loan.LoanID, loan.Status)
	return nil
}

func runATMDemo(ctx context.Context, out io.Writer, app *tallyInstance) error {
	t := app.tally
	fmt.Fprintln(out, "--- ATM ---")

	for _, req := range []model.OpenAccountRequest{
		{AccountID: "ATM-A", Type: model.AccountTypeSavings, HolderName: "Alice Smith", InitialBalance: money("1200")},
		{AccountID: "ATM-B", Type: model.AccountTypeSavings, HolderName: "Bob Johnson", InitialBalance: money("300")},
	} {
		if _, err := t.OpenAccount(ctx, req); err != nil {
			return err
		}
	}

	atm := tally.NewATM("Downtown Plaza", t, app.locks, tally.WithCashOnHand(money("1000")))
	cards := []struct {
		card model.DebitCard
		pin  string
	}{
		{model.DebitCard{CardNumber: "4000000000001111", AccountID: "ATM-A", HolderName: "Alice Smith"}, "1234"},
		{model.DebitCard{CardNumber: "4000000000002222", AccountID: "ATM-B", HolderName: "Bob Johnson"}, "5678"},
	}
	for _, c := range cards {
		if err := atm.IssueCard(ctx, c.card, c.pin); err != nil {
			return err
		}
	}
	alice, bob := cards[0].card.CardNumber, cards[1].card.CardNumber

	_, err := atm.Withdraw(ctx, alice, "1234", money("200"))
	report(out, "Alice withdraws 200", err)
	_, err = atm.Transfer(ctx, alice, "1234", "ATM-B", money("150"))
	report(out, "Alice sends 150 to Bob", err)
	_, err = atm.Transfer(ctx, alice, "1234", "ATM-Z", money("10"))
	report(out, "Alice sends 10 to an unknown account", err)
	_, err = atm.Withdraw(ctx, bob, "5678", money("900"))
	report(out, "Bob withdraws 900", err)
	_, err = atm.Deposit(ctx, bob, "5678", money("40"))
	report(out, "Bob deposits 40", err)

	for i := 1; ; i++ {
		_, err := atm.CheckBalance(ctx, bob, "0000")
		report(out, fmt.Sprintf("Bob enters a wrong PIN (%d)", i), err)
		if errors.Is(err, tally.ErrCardBlocked) || i >= 10 {
			break
		}
	}
	_, err = atm.CheckBalance(ctx, bob, "5678")
	report(out, "Bob retries with the right PIN", err)

	balance, err := atm.CheckBalance(ctx, alice, "1234")
	if err != nil {
		return err
	}
	cash, _ := atm.CashOnHand()
	fmt.Fprintf(out, "Alice's balance is %s, the machine holds %s\n", balance.StringFixed(2), cash.StringFixed(2))

	fmt.Fprintln(out, "Journal:")
	for _, j := range atm.Journal() {
		fmt.Fprintf(out, "  %-8s %s %-6s %10s balance %10s\n", j.Operation, j.CardNumber, j.AccountID, j.Amount.StringFixed(2), j.Balance.StringFixed(2))
	}
	return nil
}

type product struct {
	name  string
	price decimal.Decimal
}

type lineItem struct {
	product  product
	quantity int64
}

func cartTotal(items []lineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.product.price.Mul(decimal.NewFromInt(item.quantity)))
	}
	return total
}

func runShopDemo(ctx context.Context, out io.Writer, app *tallyInstance) error {
	t := app.tally
	fmt.Fprintln(out, "--- Shop ---")

	for _, req := range []model.OpenAccountRequest{
		{AccountID: "CUST001", Type: model.AccountTypeCurrent, HolderName: "John Doe", InitialBalance: money("1300")},
		{AccountID: "MERCHANT", Type: model.AccountTypeSavings, HolderName: "Tech Store"},
	} {
		if _, err := t.OpenAccount(ctx, req); err != nil {
			return err
		}
	}

	laptop := product{"Gaming Laptop", money("1200.00")}
	mouse := product{"Wireless Mouse", money("25.00")}
	keyboard := product{"Mechanical Keyboard", money("75.00")}

	orders := []struct {
		number string
		items  []lineItem
	}{
		{"ORD-1", []lineItem{{laptop, 1}, {mouse, 2}}},
		{"ORD-1", []lineItem{{laptop, 1}, {mouse, 2}}},
		{"ORD-2", []lineItem{{keyboard, 2}}},
		{"ORD-3", []lineItem{{mouse, 1}}},
	}
	for _, o := range orders {
		total := cartTotal(o.items)
		_, err := t.Transfer(ctx, model.TransferRequest{
			Source:      "CUST001",
			Destination: "MERCHANT",
			Amount:      total,
			Reference:   o.number,
			Description: "payment for " + o.number,
		})
		report(out, fmt.Sprintf("pay %s (%s)", o.number, total.StringFixed(2)), err)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			fmt.Fprintf(out, "  %s can be paid again once funds arrive\n", o.number)
		}
	}

	printBalances(ctx, out, t)
	return nil
}
