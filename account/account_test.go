// SPDX-License-Identifier: GPL-3.0-or-later
package account

import (
	"testing"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	alice := domain.Account{UserId: "2", Username: "alice", CheckInterval: time.Minute}
	bob := domain.Account{UserId: "1", Username: "bob", CheckInterval: 2 * time.Minute}
	r := NewRegistry([]domain.Account{alice, bob})

	assert.Equal(t, []domain.Account{bob, alice}, r.ActiveAccounts())
	assert.True(t, r.IsActive("1"))

	assert.NoError(t, r.Deactivate("1"))
	assert.False(t, r.IsActive("1"))
	assert.Equal(t, []domain.Account{alice}, r.ActiveAccounts())

	a, ok := r.Account("1")
	assert.True(t, ok)
	assert.Equal(t, bob, a)

	assert.NoError(t, r.Activate("1"))
	assert.True(t, r.IsActive("1"))

	assert.ErrorIs(t, r.Activate("3"), domain.ErrAccountUnknown)

	r.Register(domain.Account{UserId: "3", Username: "carol"})
	assert.False(t, r.IsActive("3"))
	assert.NoError(t, r.Activate("3"))
	assert.Len(t, r.ActiveAccounts(), 3)

	r.Remove("3")
	_, ok = r.Account("3")
	assert.False(t, ok)
	assert.False(t, r.IsActive("3"))
}
