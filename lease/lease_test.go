// SPDX-License-Identifier: GPL-3.0-or-later
package lease

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager() (*MemoryManager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryManager(WithClock(clock.Now)), clock
}

func TestAcquire_BusyUntilRelease(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	first, err := m.Acquire(ctx, "1", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.NoError(t, m.Release(ctx, first))

	_, err = m.Acquire(ctx, "1", time.Minute)
	assert.NoError(t, err)
}

func TestAcquire_ExpirySelfHeals(t *testing.T) {
	m, clock := newManager()
	ctx := context.Background()

	abandoned, err := m.Acquire(ctx, "1", 5*time.Second)
	require.NoError(t, err)

	clock.Advance(4999 * time.Millisecond)
	_, err = m.Acquire(ctx, "1", 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrBusy)

	clock.Advance(time.Millisecond)
	_, err = m.Acquire(ctx, "1", 5*time.Second)
	require.NoError(t, err)

	_, err = m.Renew(ctx, abandoned, 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrLeaseExpired)
}

func TestRenew(t *testing.T) {
	m, clock := newManager()
	ctx := context.Background()

	lease, err := m.Acquire(ctx, "1", 5*time.Second)
	require.NoError(t, err)

	clock.Advance(4 * time.Second)
	renewed, err := m.Renew(ctx, lease, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Second), renewed.ExpiresAt)

	clock.Advance(4 * time.Second)
	_, err = m.Acquire(ctx, "1", 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrBusy, "renewed lease must still be live")
}

func TestRelease_StaleHandleKeepsNewLease(t *testing.T) {
	m, clock := newManager()
	ctx := context.Background()

	stale, err := m.Acquire(ctx, "1", time.Second)
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = m.Acquire(ctx, "1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, stale))
	_, err = m.Acquire(ctx, "1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrBusy)
}

func TestAcquire_ConcurrentExactlyOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, _ := newManager()
		callers := rapid.IntRange(2, 32).Draw(t, "callers")

		var wg sync.WaitGroup
		results := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = m.Acquire(context.Background(), "1", time.Minute)
			}(i)
		}
		wg.Wait()

		granted := 0
		for _, err := range results {
			if err == nil {
				granted++
			} else if err != domain.ErrBusy {
				t.Fatalf("unexpected error %v", err)
			}
		}
		if granted != 1 {
			t.Fatalf("%d callers acquired the lease", granted)
		}
	})
}

func TestAcquire_NeverWhileLive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, clock := newManager()
		ctx := context.Background()
		var last *domain.Lease

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				liveBefore := last != nil && clock.Now().Before(last.ExpiresAt)
				lease, err := m.Acquire(ctx, "1", time.Duration(rapid.IntRange(1, 10).Draw(t, "ttl"))*time.Second)
				if err == nil && liveBefore {
					t.Fatalf("acquired while %s was live", last.HolderToken)
				}
				if err != nil && !liveBefore {
					t.Fatalf("busy without a live lease: %v", err)
				}
				if err == nil {
					last = lease
				}
			case 1:
				if last != nil {
					m.Release(ctx, last)
					last = nil
				}
			case 2:
				clock.Advance(time.Duration(rapid.IntRange(0, 6).Draw(t, "advance")) * time.Second)
			}
		}
	})
}
