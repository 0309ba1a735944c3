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

import "errors"

var (
	// ErrInvalidAmount is returned when an amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds is returned when a debit would take the balance
	// below the overdraft floor. It is a routine outcome callers branch on.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount is returned when a transfer names one account as both
	// source and destination.
	ErrSameAccount = errors.New("source and destination must be different accounts")

	// ErrOperationTimedOut is returned when a transfer could not acquire an
	// account lock within its bounded wait. The caller may retry.
	ErrOperationTimedOut = errors.New("timed out waiting for account lock")

	// ErrInvalidAccount is returned when an account id is empty or a
	// transfer is given a nil account.
	ErrInvalidAccount = errors.New("account id is required")

	// ErrInvalidOverdraftLimit is returned for a negative overdraft limit.
	ErrInvalidOverdraftLimit = errors.New("overdraft limit cannot be negative")

	// ErrAccountClosed is returned when a closed account is mutated or
	// closed again.
	ErrAccountClosed = errors.New("account is closed")
)
