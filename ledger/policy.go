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
	"fmt"

	"github.com/shopspring/decimal"
)

// OverdraftPolicy decides how far below zero a debit may take a balance.
// The zero value allows no overdraft.
type OverdraftPolicy struct {
	limit decimal.Decimal
}

// NoOverdraft is the policy of savings-style accounts.
func NoOverdraft() OverdraftPolicy {
	return OverdraftPolicy{limit: decimal.Zero}
}

// OverdraftUpTo allows the balance to reach -limit.
func OverdraftUpTo(limit decimal.Decimal) (OverdraftPolicy, error) {
	if limit.IsNegative() {
		return OverdraftPolicy{}, fmt.Errorf("%w: %s", ErrInvalidOverdraftLimit, limit)
	}
	return OverdraftPolicy{limit: limit}, nil
}

// Limit returns the magnitude of the most negative balance allowed.
func (p OverdraftPolicy) Limit() decimal.Decimal {
	return p.limit
}

// Allows is the debit guard: balance - amount >= -limit.
func (p OverdraftPolicy) Allows(balance, amount decimal.Decimal) bool {
	return balance.Sub(amount).GreaterThanOrEqual(p.limit.Neg())
}
