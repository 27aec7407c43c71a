// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBusy         = errors.New("lease is held by another run")
	ErrLeaseExpired = errors.New("lease expired")
)

type Lease struct {
	UserId      string
	HolderToken string
	ExpiresAt   time.Time
}

// LeaseManager grants at most one live lease per user. Acquire returns ErrBusy while another
// lease is live, Renew returns ErrLeaseExpired once the lease is gone or taken over.
type LeaseManager interface {
	Acquire(ctx context.Context, userId string, ttl time.Duration) (*Lease, error)
	Renew(ctx context.Context, lease *Lease, ttl time.Duration) (*Lease, error)
	Release(ctx context.Context, lease *Lease) error
}
