// SPDX-License-Identifier: GPL-3.0-or-later
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrawX/go-imap-sentinel/domain"

	"github.com/99designs/keyring"
)

// Static serves passwords given in the configuration.
type Static struct {
	passwords map[string]string
}

func NewStatic(passwords map[string]string) *Static {
	return &Static{passwords: passwords}
}

func (s *Static) Credential(ctx context.Context, account domain.Account) (*domain.Credential, error) {
	password, ok := s.passwords[account.UserId]
	if !ok {
		return nil, fmt.Errorf("no password configured for user %s: %w", account.UserId, domain.ErrCredentialUnavailable)
	}
	return &domain.Credential{Username: account.Username, Password: password}, nil
}

// Keyring reads passwords from the OS keyring, keyed by the imap username.
type Keyring struct {
	ring keyring.Keyring
}

func OpenKeyring(service string) (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) Credential(ctx context.Context, account domain.Account) (*domain.Credential, error) {
	item, err := k.ring.Get(account.Username)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("no keyring entry for %s: %w", account.Username, domain.ErrCredentialUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read keyring entry for %s: %v: %w", account.Username, err, domain.ErrCredentialUnavailable)
	}
	return &domain.Credential{Username: account.Username, Password: string(item.Data)}, nil
}

// Store saves a password for the username, used by the cli.
func (k *Keyring) Store(username, password string) error {
	err := k.ring.Set(keyring.Item{
		Key:   username,
		Data:  []byte(password),
		Label: "imap password for " + username,
	})
	if err != nil {
		return fmt.Errorf("could not store keyring entry for %s: %w", username, err)
	}
	return nil
}

// Chain asks each provider in turn until one has a credential.
type Chain []domain.CredentialProvider

func (c Chain) Credential(ctx context.Context, account domain.Account) (*domain.Credential, error) {
	var lastErr error = fmt.Errorf("no credential provider for user %s: %w", account.UserId, domain.ErrCredentialUnavailable)
	for _, provider := range c {
		credential, err := provider.Credential(ctx, account)
		if err == nil {
			return credential, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
