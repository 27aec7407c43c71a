// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LeaseStore is a domain.LeaseManager shared by every process using the same database. Acquire is
// a single upsert that only replaces an expired row, so concurrent acquirers race on the primary key.
type LeaseStore struct {
	*Persistence
}

func (p *Persistence) Leases() *LeaseStore {
	return &LeaseStore{p}
}

func (ls *LeaseStore) Acquire(ctx context.Context, userId string, ttl time.Duration) (*domain.Lease, error) {
	now := ls.now()
	lease := &domain.Lease{
		UserId:      userId,
		HolderToken: uuid.NewString(),
		ExpiresAt:   now.Add(ttl),
	}

	result, err := ls.db.ExecContext(
		ctx,
		ls.db.Rebind(`INSERT INTO leases (user_id, holder_token, expires_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET holder_token = excluded.holder_token, expires_at = excluded.expires_at
			WHERE leases.expires_at <= ?`),
		userId, lease.HolderToken, lease.ExpiresAt.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not acquire lease: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not get num of affected rows: %w", err))
	}
	if affected == 0 {
		return nil, domain.ErrBusy
	}

	ls.l.WithFields(logrus.Fields{"user": userId, "expires": lease.ExpiresAt}).Debug("Acquired lease")
	return lease, nil
}

func (ls *LeaseStore) Renew(ctx context.Context, lease *domain.Lease, ttl time.Duration) (*domain.Lease, error) {
	now := ls.now()
	renewed := &domain.Lease{
		UserId:      lease.UserId,
		HolderToken: lease.HolderToken,
		ExpiresAt:   now.Add(ttl),
	}

	result, err := ls.db.ExecContext(
		ctx,
		ls.db.Rebind(`UPDATE leases SET expires_at = ? WHERE user_id = ? AND holder_token = ? AND expires_at > ?`),
		renewed.ExpiresAt.UnixMilli(), lease.UserId, lease.HolderToken, now.UnixMilli(),
	)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not renew lease: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not get num of affected rows: %w", err))
	}
	if affected == 0 {
		return nil, domain.ErrLeaseExpired
	}

	return renewed, nil
}

func (ls *LeaseStore) Release(ctx context.Context, lease *domain.Lease) error {
	_, err := ls.db.ExecContext(
		ctx,
		ls.db.Rebind(`DELETE FROM leases WHERE user_id = ? AND holder_token = ?`),
		lease.UserId, lease.HolderToken,
	)
	if err != nil {
		return fmt.Errorf("could not release lease: %w", err)
	}

	ls.l.WithField("user", lease.UserId).Debug("Released lease")
	return nil
}
