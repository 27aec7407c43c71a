// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/account.go -package=mocks . CredentialProvider
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAccountUnknown        = errors.New("account unknown")
	ErrCredentialUnavailable = errors.New("credential unavailable")
)

type Account struct {
	UserId        string
	Username      string
	CheckInterval time.Duration
}

type AccountSource interface {
	ActiveAccounts() []Account
	Account(userId string) (Account, bool)
	IsActive(userId string) bool
}

// Credential is an already decrypted mailbox login.
type Credential struct {
	Username string
	Password string
}

type CredentialProvider interface {
	Credential(ctx context.Context, account Account) (*Credential, error)
}
