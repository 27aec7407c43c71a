// SPDX-License-Identifier: GPL-3.0-or-later
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemoryManager is a domain.LeaseManager for a single process. Expired leases are replaced lazily
// on the next Acquire.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]domain.Lease
	now    func() time.Time
	l      *logrus.Logger
}

type ConfigFunc func(m *MemoryManager)

func WithClock(now func() time.Time) ConfigFunc {
	return func(m *MemoryManager) {
		m.now = now
	}
}

func NewMemoryManager(configFuncs ...ConfigFunc) *MemoryManager {
	m := &MemoryManager{
		leases: map[string]domain.Lease{},
		now:    time.Now,
		l:      log.Logger(log.LOG_LEASE),
	}
	for _, configFunc := range configFuncs {
		configFunc(m)
	}
	return m
}

func (m *MemoryManager) Acquire(ctx context.Context, userId string, ttl time.Duration) (*domain.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[userId]; ok && now.Before(held.ExpiresAt) {
		return nil, domain.ErrBusy
	}

	lease := domain.Lease{
		UserId:      userId,
		HolderToken: uuid.NewString(),
		ExpiresAt:   now.Add(ttl),
	}
	m.leases[userId] = lease

	m.l.WithFields(logrus.Fields{"user": userId, "expires": lease.ExpiresAt}).Debug("Acquired lease")
	return &lease, nil
}

func (m *MemoryManager) Renew(ctx context.Context, lease *domain.Lease, ttl time.Duration) (*domain.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	held, ok := m.leases[lease.UserId]
	if !ok || held.HolderToken != lease.HolderToken || !now.Before(held.ExpiresAt) {
		return nil, domain.ErrLeaseExpired
	}

	held.ExpiresAt = now.Add(ttl)
	m.leases[lease.UserId] = held
	return &held, nil
}

func (m *MemoryManager) Release(ctx context.Context, lease *domain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.leases[lease.UserId]; ok && held.HolderToken == lease.HolderToken {
		delete(m.leases, lease.UserId)
		m.l.WithField("user", lease.UserId).Debug("Released lease")
	}
	return nil
}
