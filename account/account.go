// SPDX-License-Identifier: GPL-3.0-or-later
package account

import (
	"fmt"
	"sort"
	"sync"

	"github.com/CrawX/go-imap-sentinel/domain"
)

// Registry is the in-memory set of known accounts and which of them are logged in. It stands in
// for the user table of the surrounding api.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	active   map[string]bool
}

// NewRegistry registers the accounts as active.
func NewRegistry(accounts []domain.Account) *Registry {
	r := &Registry{
		accounts: map[string]domain.Account{},
		active:   map[string]bool{},
	}
	for _, a := range accounts {
		r.accounts[a.UserId] = a
		r.active[a.UserId] = true
	}
	return r
}

func (r *Registry) Register(account domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.UserId] = account
}

func (r *Registry) setActive(userId string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[userId]; !ok {
		return fmt.Errorf("user %s: %w", userId, domain.ErrAccountUnknown)
	}
	r.active[userId] = active
	return nil
}

func (r *Registry) Activate(userId string) error {
	return r.setActive(userId, true)
}

func (r *Registry) Deactivate(userId string) error {
	return r.setActive(userId, false)
}

func (r *Registry) Remove(userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, userId)
	delete(r.active, userId)
}

// ActiveAccounts returns the logged in accounts ordered by user id.
func (r *Registry) ActiveAccounts() []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := []domain.Account{}
	for userId, active := range r.active {
		if active {
			accounts = append(accounts, r.accounts[userId])
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserId < accounts[j].UserId })
	return accounts
}

func (r *Registry) Account(userId string) (domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[userId]
	return a, ok
}

func (r *Registry) IsActive(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[userId]
}
