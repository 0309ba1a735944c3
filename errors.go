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
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrDuplicateReference = errors.New("reference has already been used")
	ErrNoInterestDue      = errors.New("no interest due")

	ErrCardNotFound = errors.New("card not found")
	ErrCardExists   = errors.New("card already issued")
	ErrCardExpired  = errors.New("card has expired")
	ErrInvalidPIN   = errors.New("invalid PIN")
	ErrCardBlocked  = errors.New("card is blocked")
	ErrCardInUse    = errors.New("card is in use")

	ErrInsufficientCash = errors.New("not enough cash in the machine")

	ErrLoanNotFound    = errors.New("loan not found")
	ErrLoanNotPending  = errors.New("loan is not awaiting approval")
	ErrLoanNotApproved = errors.New("loan is not approved")
	ErrLoanRepaid      = errors.New("loan is already repaid")
	ErrLoanInUse       = errors.New("loan is being updated")
)

func accountNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}
