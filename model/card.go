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
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{16}$`)
	pinPattern        = regexp.MustCompile(`^[0-9]{4,6}$`)
)

// DebitCard links a card number to the account it draws on.
type DebitCard struct {
	CardNumber string    `json:"card_number"`
	AccountID  string    `json:"account_id"`
	HolderName string    `json:"holder_name"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (c *DebitCard) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CardNumber, validation.Required, validation.Match(cardNumberPattern).Error("must be 16 digits")),
		validation.Field(&c.AccountID, validation.Required),
		validation.Field(&c.HolderName, validation.Required),
	)
}

// Expired reports whether the card has an expiry date before now.
func (c *DebitCard) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ValidatePIN checks the PIN format only.
func ValidatePIN(pin string) error {
	return validation.Validate(pin, validation.Required, validation.Match(pinPattern).Error("must be 4 to 6 digits"))
}

// MaskCardNumber keeps the last four digits.
func MaskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
