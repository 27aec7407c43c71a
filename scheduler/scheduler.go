// SPDX-License-Identifier: GPL-3.0-or-later
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"
	"github.com/CrawX/go-imap-sentinel/monitor"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultTick       = 5 * time.Second
	DefaultWorkers    = 8
	DefaultMaxBackoff = time.Hour

	maxBackoffExponent = 16
	stateLeaseTTL      = 30 * time.Second
)

type CycleRunner interface {
	RunMonitorCycle(ctx context.Context, userId string) (*monitor.Result, error)
}

type Registry interface {
	domain.AccountSource
	Activate(userId string) error
	Deactivate(userId string) error
	Remove(userId string)
}

// Topics drops what the event bus keeps for a removed user.
type Topics interface {
	Forget(userId string)
}

type ConfigFunc func(s *Scheduler) error

func Tick(tick time.Duration) ConfigFunc {
	return func(s *Scheduler) error {
		if tick < time.Second {
			return fmt.Errorf("tick must be at least one second, got %v", tick)
		}
		s.tick = tick
		return nil
	}
}

func Workers(workers int) ConfigFunc {
	return func(s *Scheduler) error {
		if workers < 1 {
			return fmt.Errorf("workers must be positive, got %d", workers)
		}
		s.workers = workers
		return nil
	}
}

func MaxBackoff(maxBackoff time.Duration) ConfigFunc {
	return func(s *Scheduler) error {
		s.maxBackoff = maxBackoff
		return nil
	}
}

func WithTopics(topics Topics) ConfigFunc {
	return func(s *Scheduler) error {
		s.topics = topics
		return nil
	}
}

func WithClock(now func() time.Time) ConfigFunc {
	return func(s *Scheduler) error {
		s.now = now
		return nil
	}
}

// Scheduler starts a monitor cycle for every due user on each tick. Runs execute on a bounded
// pool; a user whose previous run has not finished is skipped until it has.
type Scheduler struct {
	states   domain.StateStore
	leases   domain.LeaseManager
	accounts Registry
	runner   CycleRunner
	topics   Topics

	tick       time.Duration
	workers    int
	maxBackoff time.Duration
	now        func() time.Time

	pool    *semaphore.Weighted
	mu      sync.Mutex
	running map[string]bool
	// pending holds state changes that found the lease taken, true for activation. Every tick
	// retries them until they got applied.
	pending map[string]bool
	wg      sync.WaitGroup

	cron *cron.Cron

	l *logrus.Logger
}

func NewScheduler(states domain.StateStore, leases domain.LeaseManager, accounts Registry, runner CycleRunner, configFuncs ...ConfigFunc) (*Scheduler, error) {
	s := &Scheduler{
		states:     states,
		leases:     leases,
		accounts:   accounts,
		runner:     runner,
		tick:       DefaultTick,
		workers:    DefaultWorkers,
		maxBackoff: DefaultMaxBackoff,
		now:        time.Now,
		running:    map[string]bool{},
		pending:    map[string]bool{},
		l:          log.Logger(log.LOG_SCHEDULER),
	}
	for _, f := range configFuncs {
		err := f(s)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}
	s.pool = semaphore.NewWeighted(int64(s.workers))
	return s, nil
}

// Backoff is the effective check interval after the given number of consecutive failures.
func Backoff(interval time.Duration, failures int, maxBackoff time.Duration) time.Duration {
	if failures <= 0 {
		return interval
	}
	if failures > maxBackoffExponent {
		failures = maxBackoffExponent
	}
	limit := maxBackoff
	if limit < interval {
		limit = interval
	}
	// compared before multiplying, interval * 2^failures overflows for long intervals
	if interval > limit>>failures {
		return limit
	}
	return interval << failures
}

func (s *Scheduler) due(account domain.Account, state *domain.MonitoringState, now time.Time) bool {
	if !state.Schedulable() {
		return false
	}
	if state.LastCheckedAt.IsZero() {
		return true
	}
	return now.Sub(state.LastCheckedAt) >= Backoff(account.CheckInterval, state.ConsecutiveFailures, s.maxBackoff)
}

// Sync aligns the persisted states with the account registry: every active account gets a state
// and users paused before a restart stay paused.
func (s *Scheduler) Sync(ctx context.Context) error {
	states, err := s.states.AllStates(ctx)
	if err != nil {
		return fmt.Errorf("could not load monitoring states: %w", err)
	}

	known := map[string]bool{}
	for _, state := range states {
		known[state.UserId] = true
		if state.Status != domain.StatusPaused {
			continue
		}
		if _, ok := s.accounts.Account(state.UserId); !ok {
			continue
		}
		err = s.accounts.Deactivate(state.UserId)
		if err != nil {
			return err
		}
	}

	for _, account := range s.accounts.ActiveAccounts() {
		if known[account.UserId] {
			continue
		}
		_, err = s.states.CreateState(ctx, account.UserId)
		if err != nil {
			return fmt.Errorf("could not create state for %s: %w", account.UserId, err)
		}
	}

	return nil
}

// Tick dispatches a run for every due user and returns the dispatched user ids. It does not wait
// for the runs to finish.
func (s *Scheduler) Tick(ctx context.Context) ([]string, error) {
	s.ApplyPending(ctx)

	states, err := s.states.AllStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load monitoring states: %w", err)
	}
	byUser := map[string]*domain.MonitoringState{}
	for _, state := range states {
		byUser[state.UserId] = state
	}

	now := s.now()
	dispatched := []string{}
	for _, account := range s.accounts.ActiveAccounts() {
		l := s.l.WithField("user", account.UserId)
		state, ok := byUser[account.UserId]
		if !ok {
			l.Warn("Active account without monitoring state, not scheduling")
			continue
		}
		if !s.due(account, state, now) {
			continue
		}

		s.mu.Lock()
		if s.running[account.UserId] {
			s.mu.Unlock()
			l.Trace("Previous run still in progress")
			continue
		}
		if !s.pool.TryAcquire(1) {
			s.mu.Unlock()
			l.Debug("All workers busy, user stays due")
			continue
		}
		s.running[account.UserId] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go s.run(ctx, account.UserId)
		dispatched = append(dispatched, account.UserId)
	}

	sort.Strings(dispatched)
	return dispatched, nil
}

func (s *Scheduler) run(ctx context.Context, userId string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, userId)
		s.mu.Unlock()
		s.pool.Release(1)
	}()

	l := s.l.WithField("user", userId)
	result, err := s.runner.RunMonitorCycle(ctx, userId)
	if err != nil {
		l.WithError(err).Debug("Monitor run ended with error")
		return
	}
	l.WithField("outcome", result.Outcome).Trace("Monitor run ended")
}

// Wait blocks until all dispatched runs finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Start syncs the states and ticks on the configured cadence until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	err := s.Sync(ctx)
	if err != nil {
		return err
	}

	cronLogger := cron.PrintfLogger(s.l)
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	_, err = s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), func() {
		_, err := s.Tick(ctx)
		if err != nil {
			s.l.WithError(err).Error("Tick failed")
		}
	})
	if err != nil {
		return fmt.Errorf("could not schedule tick: %w", err)
	}

	s.cron.Start()
	s.l.WithFields(logrus.Fields{"tick": s.tick, "workers": s.workers}).Info("Started scheduler")
	return nil
}

// Stop ends ticking and waits for in-flight runs. Cancelling the context passed to Start makes
// them end early.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.Wait()
	s.l.Info("Stopped scheduler")
}

// Activate (re)enables monitoring for a known account, clearing a Failed status. When another
// holder has the user's lease the reset is kept pending and applied by a later tick, see Pending.
func (s *Scheduler) Activate(ctx context.Context, userId string) (*domain.MonitoringState, error) {
	err := s.accounts.Activate(userId)
	if err != nil {
		return nil, err
	}
	return s.change(ctx, userId, true)
}

// Deactivate stops scheduling for the user immediately. An in-flight run is not aborted, the
// state is paused once the lease is free again.
func (s *Scheduler) Deactivate(ctx context.Context, userId string) (*domain.MonitoringState, error) {
	err := s.accounts.Deactivate(userId)
	if err != nil {
		return nil, err
	}
	return s.change(ctx, userId, false)
}

func (s *Scheduler) change(ctx context.Context, userId string, activate bool) (*domain.MonitoringState, error) {
	state, err := s.apply(ctx, userId, activate)
	if errors.Is(err, domain.ErrBusy) {
		s.mu.Lock()
		s.pending[userId] = activate
		s.mu.Unlock()
		s.l.WithFields(logrus.Fields{"user": userId, "activate": activate}).Info("Lease is held, state change stays pending")
		return s.states.GetState(ctx, userId)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.pending, userId)
	s.mu.Unlock()
	return state, nil
}

func (s *Scheduler) apply(ctx context.Context, userId string, activate bool) (*domain.MonitoringState, error) {
	l := s.l.WithField("user", userId)
	if activate {
		state, err := s.withStateLease(ctx, userId, func() (*domain.MonitoringState, error) {
			return s.states.CreateState(ctx, userId)
		})
		if err == nil {
			l.Info("Activated monitoring")
		}
		return state, err
	}

	state, err := s.withStateLease(ctx, userId, func() (*domain.MonitoringState, error) {
		state, err := s.states.GetState(ctx, userId)
		if err != nil {
			return nil, err
		}
		if state.Status != domain.StatusFailed {
			state.Status = domain.StatusPaused
		}
		return state, s.states.SaveState(ctx, state)
	})
	if err == nil {
		l.Info("Deactivated monitoring")
	}
	return state, err
}

// Pending reports whether an activation or deactivation of the user still waits for the lease.
func (s *Scheduler) Pending(userId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userId]
	return ok
}

// ApplyPending retries the state changes that found the lease taken. Changes that still find it
// taken stay pending.
func (s *Scheduler) ApplyPending(ctx context.Context) {
	s.mu.Lock()
	pending := make(map[string]bool, len(s.pending))
	for userId, activate := range s.pending {
		pending[userId] = activate
	}
	s.mu.Unlock()

	for userId, activate := range pending {
		_, err := s.apply(ctx, userId, activate)
		if errors.Is(err, domain.ErrBusy) {
			continue
		}
		if err != nil {
			s.l.WithError(err).WithField("user", userId).Warn("Could not apply pending state change")
		}

		s.mu.Lock()
		if current, ok := s.pending[userId]; ok && current == activate {
			delete(s.pending, userId)
		}
		s.mu.Unlock()
	}
}

// Remove forgets the user entirely, used when an account is deleted.
func (s *Scheduler) Remove(ctx context.Context, userId string) error {
	s.accounts.Remove(userId)
	s.mu.Lock()
	delete(s.pending, userId)
	s.mu.Unlock()

	err := s.states.DeleteState(ctx, userId)
	if err != nil {
		return fmt.Errorf("could not remove monitoring state: %w", err)
	}
	if s.topics != nil {
		s.topics.Forget(userId)
	}
	return nil
}

// withStateLease runs f while holding the user's lease so it never races a monitor run.
func (s *Scheduler) withStateLease(ctx context.Context, userId string, f func() (*domain.MonitoringState, error)) (*domain.MonitoringState, error) {
	lease, err := s.leases.Acquire(ctx, userId, stateLeaseTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.leases.Release(context.Background(), lease); err != nil {
			s.l.WithError(err).WithField("user", userId).Warn("Could not release lease")
		}
	}()

	return f()
}
