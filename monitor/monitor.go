// SPDX-License-Identifier: GPL-3.0-or-later
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrawX/go-imap-sentinel/classifier"
	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"
	"github.com/CrawX/go-imap-sentinel/mail"

	"github.com/sirupsen/logrus"
)

// finalizeTimeout bounds the state write and the lease release after a run. Both use a fresh
// context since the run context may be done already.
const finalizeTimeout = 10 * time.Second

type Phase string

const (
	PhaseIdle        = Phase("idle")
	PhaseFetching    = Phase("fetching")
	PhaseClassifying = Phase("classifying")
	PhaseActing      = Phase("acting")
	PhaseAdvancing   = Phase("advancing")
	PhaseDone        = Phase("done")
	PhaseErrored     = Phase("errored")
)

type Outcome string

const (
	// OutcomeDone means every unseen message of every folder was processed.
	OutcomeDone = Outcome("done")
	// OutcomeBusy means another run holds the lease and this cycle was skipped.
	OutcomeBusy = Outcome("busy")
	// OutcomeSkipped means monitoring is paused or failed for the user.
	OutcomeSkipped = Outcome("skipped")
	OutcomeErrored = Outcome("errored")
	// OutcomeInterrupted means the caller cancelled the cycle, it does not count as a failure.
	OutcomeInterrupted = Outcome("interrupted")
)

type Result struct {
	Outcome Outcome
	Phase   Phase
	// FailedIn is the phase an errored cycle was in when it failed.
	FailedIn  Phase
	Processed int
	Spam      int
	Moved     int
	// MessageErrors counts messages whose fetch, classification or move failed.
	MessageErrors int
}

var errLeaseLost = errors.New("lease lost, aborting run without further mailbox changes")

type Runner struct {
	states      domain.StateStore
	leases      domain.LeaseManager
	accounts    domain.AccountSource
	credentials domain.CredentialProvider
	dialer      domain.MailboxDialer
	classifier  *classifier.Batch
	events      domain.Publisher

	configuration *configuration

	l *logrus.Logger
}

func NewRunner(
	states domain.StateStore,
	leases domain.LeaseManager,
	accounts domain.AccountSource,
	credentials domain.CredentialProvider,
	dialer domain.MailboxDialer,
	spamClassifier domain.Classifier,
	events domain.Publisher,
	configFunc ...ConfigFunc,
) (*Runner, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	for _, f := range config.Folders {
		if f == config.SpamFolder {
			return nil, fmt.Errorf("spam folder %s cannot be monitored", f)
		}
	}

	return &Runner{
		states:        states,
		leases:        leases,
		accounts:      accounts,
		credentials:   credentials,
		dialer:        dialer,
		classifier:    &classifier.Batch{Classifier: spamClassifier, Concurrency: config.ClassifyConcurrency},
		events:        events,
		configuration: config,
		l:             log.Logger(log.LOG_MONITOR),
	}, nil
}

// run carries the mutable state of one cycle.
type run struct {
	userId  string
	lease   *domain.Lease
	state   *domain.MonitoringState
	gateway domain.MailboxGateway
	result  *Result
	l       *logrus.Entry
}

func (r *run) enter(phase Phase) {
	r.result.Phase = phase
}

// fetched is one message of a batch after the fetch phase, either msg or err is set.
type fetched struct {
	uid uint32
	msg *domain.RawMessage
	err error
}

// RunMonitorCycle checks every monitored folder of the user once. It may be invoked more often
// than needed: a held lease yields OutcomeBusy and no error. The returned error describes why an
// errored cycle failed.
func (m *Runner) RunMonitorCycle(ctx context.Context, userId string) (*Result, error) {
	result := &Result{Phase: PhaseIdle}
	l := m.l.WithField("user", userId)

	account, ok := m.accounts.Account(userId)
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userId, domain.ErrAccountUnknown)
	}

	// paused and failed users are skipped without touching their lease
	state, err := m.states.GetState(ctx, userId)
	if err != nil {
		result.Outcome = OutcomeErrored
		return result, fmt.Errorf("could not load monitoring state: %w", err)
	}
	if m.schedulable(userId, state) == notSchedulable {
		l.WithField("status", state.Status).Debug("Monitoring is paused or failed, skipping")
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	lease, err := m.leases.Acquire(ctx, userId, m.configuration.LeaseTTL)
	if errors.Is(err, domain.ErrBusy) {
		l.Debug("Previous run still holds the lease, skipping")
		result.Outcome = OutcomeBusy
		return result, nil
	}
	if err != nil {
		result.Outcome = OutcomeErrored
		return result, fmt.Errorf("could not acquire lease: %w", err)
	}

	r := &run{
		userId: userId,
		lease:  lease,
		result: result,
		l:      l,
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()
		if err := m.leases.Release(releaseCtx, r.lease); err != nil {
			l.WithError(err).Warn("Could not release lease, it will expire on its own")
		}
	}()

	r.state, err = m.states.GetState(ctx, userId)
	if err != nil {
		result.Outcome = OutcomeErrored
		return result, fmt.Errorf("could not load monitoring state: %w", err)
	}

	// the state may have changed before the lease was taken
	if ready := m.schedulable(userId, r.state); ready != runnable {
		if ready == needsPause {
			r.state.Status = domain.StatusPaused
			if err := m.states.SaveState(ctx, r.state); err != nil {
				result.Outcome = OutcomeErrored
				return result, fmt.Errorf("could not pause monitoring: %w", err)
			}
		}
		l.WithField("status", r.state.Status).Debug("Monitoring is paused or failed, skipping")
		result.Outcome = OutcomeSkipped
		return result, nil
	}

	r.state.Status = domain.StatusRunning
	if err := m.states.SaveState(ctx, r.state); err != nil {
		result.Outcome = OutcomeErrored
		return result, fmt.Errorf("could not mark run as started: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, m.configuration.RunTimeout)
	defer cancel()

	start := m.configuration.Now()
	runErr := m.check(runCtx, r, account)
	if runErr != nil {
		result.FailedIn = result.Phase
		result.Phase = PhaseErrored
		result.Outcome = OutcomeErrored
	} else {
		result.Outcome = OutcomeDone
	}

	if errors.Is(runErr, errLeaseLost) {
		// the state belongs to whoever holds the lease now
		m.events.Publish(userId, domain.MonitorError, domain.EventPayload{Error: runErr.Error()})
		l.WithField("phase", result.FailedIn).Warn("Lease lost, aborted run")
		return result, runErr
	}

	interrupted := runErr != nil && errors.Is(ctx.Err(), context.Canceled)
	if interrupted {
		result.Outcome = OutcomeInterrupted
	}
	m.finish(r, runErr, interrupted)

	l.WithFields(logrus.Fields{
		"duration":  m.configuration.Now().Sub(start),
		"outcome":   result.Outcome,
		"processed": result.Processed,
		"spam":      result.Spam,
		"moved":     result.Moved,
		"errors":    result.MessageErrors,
	}).Info("Finished monitor run")

	return result, runErr
}

type readiness int

const (
	runnable readiness = iota
	// needsPause is a deactivated account whose state does not show it yet.
	needsPause
	notSchedulable
)

func (m *Runner) schedulable(userId string, state *domain.MonitoringState) readiness {
	if !m.accounts.IsActive(userId) {
		if state.Status == domain.StatusPaused || state.Status == domain.StatusFailed {
			return notSchedulable
		}
		return needsPause
	}
	if !state.Schedulable() {
		return notSchedulable
	}
	return runnable
}

// check runs the phases and returns the error that ended the cycle abnormally.
func (m *Runner) check(ctx context.Context, r *run, account domain.Account) error {
	credential, err := m.credentials.Credential(ctx, account)
	if err != nil {
		return fmt.Errorf("could not load credential: %w", err)
	}

	r.enter(PhaseFetching)
	gateway, err := m.dialer.Dial(ctx, credential)
	if err != nil {
		return fmt.Errorf("could not connect to mailbox: %w", err)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			r.l.WithError(err).Debug("Could not close mailbox connection")
		}
	}()
	r.gateway = gateway

	for _, folder := range m.configuration.Folders {
		err = m.checkFolder(ctx, r, folder)
		if err != nil {
			return fmt.Errorf("folder %s: %w", folder, err)
		}
	}

	r.enter(PhaseDone)
	return nil
}

func (m *Runner) checkFolder(ctx context.Context, r *run, folder string) error {
	r.enter(PhaseFetching)
	previous := r.state.Cursor(folder)
	uids, cursor, err := r.gateway.ListUnseenSince(ctx, previous)
	if err != nil {
		return fmt.Errorf("could not list unseen mails: %w", err)
	}

	if cursor != previous {
		err = m.saveCursor(ctx, r, cursor)
		if err != nil {
			return err
		}
	}

	if len(uids) == 0 {
		r.l.WithField("folder", folder).Debug("Folder contains no new mails")
		return nil
	}

	batches := partitionUids(uids, m.configuration.BatchSize)
	r.l.WithFields(logrus.Fields{"folder": folder, "newmails": len(uids), "batches": len(batches)}).Info("Found mails to check")

	for _, batch := range batches {
		cursor, err = m.checkBatch(ctx, r, cursor, batch)
		if err != nil {
			return err
		}
	}

	return nil
}

// checkBatch processes the uids of one batch in order and returns the advanced cursor. A fetch
// failure of the connection stops the batch after the messages fetched so far were processed.
func (m *Runner) checkBatch(ctx context.Context, r *run, cursor domain.Cursor, batch []uint32) (domain.Cursor, error) {
	err := m.renew(ctx, r)
	if err != nil {
		return cursor, err
	}

	r.enter(PhaseFetching)
	start := m.configuration.Now()
	var abortErr error
	messages := make([]fetched, 0, len(batch))
	for _, uid := range batch {
		msg, err := r.gateway.Fetch(ctx, cursor.Folder, uid)
		if err != nil && (ctx.Err() != nil || domain.IsTransient(err)) {
			abortErr = fmt.Errorf("could not fetch mail %d: %w", uid, err)
			break
		}
		messages = append(messages, fetched{uid: uid, msg: msg, err: err})
	}
	r.l.WithFields(logrus.Fields{"duration": m.configuration.Now().Sub(start), "batchsize": len(messages)}).Debug("Fetched mail batch")

	r.enter(PhaseClassifying)
	inputs := []domain.ScoreInput{}
	for _, f := range messages {
		if f.err == nil {
			inputs = append(inputs, domain.ScoreInput{Text: f.msg.Text, RawMail: f.msg.RawMail})
		}
	}
	scores := m.classifier.ScoreAll(ctx, inputs)

	next := 0
	for _, f := range messages {
		if ctx.Err() != nil {
			return cursor, fmt.Errorf("run deadline reached: %w", ctx.Err())
		}

		if f.err != nil {
			m.fetchFailed(r, cursor.Folder, f)
		} else {
			err = m.act(ctx, r, f.msg, scores[next])
			next++
			if err != nil {
				return cursor, err
			}
		}

		r.enter(PhaseAdvancing)
		cursor = cursor.Advance(f.uid)
		err = m.saveCursor(ctx, r, cursor)
		if err != nil {
			return cursor, err
		}
		r.result.Processed++
	}

	return cursor, abortErr
}

func (m *Runner) fetchFailed(r *run, folder string, f fetched) {
	l := r.l.WithFields(logrus.Fields{"folder": folder, "uid": f.uid})
	if errors.Is(f.err, domain.ErrMessageGone) {
		l.Debug("Mail vanished before it could be fetched")
		return
	}

	l.WithError(f.err).Warn("Could not fetch mail")
	r.result.MessageErrors++
	m.events.Publish(r.userId, domain.MonitorError, domain.EventPayload{
		Uid:    f.uid,
		Folder: folder,
		Error:  f.err.Error(),
	})
}

// act applies the verdict to one message and publishes its event. Only a lost lease or the run
// deadline is returned as error, a rejected move is a per message error.
func (m *Runner) act(ctx context.Context, r *run, msg *domain.RawMessage, score *domain.SpamResult) error {
	l := r.l.WithFields(logrus.Fields{
		"folder":  msg.Folder,
		"uid":     msg.Uid,
		"subject": mail.ShortSubject(msg.Subject),
	})

	payload := domain.EventPayload{
		Uid:     msg.Uid,
		Folder:  msg.Folder,
		Subject: msg.Subject,
		From:    msg.From,
	}

	verdict := score.Verdict
	if score.Error != nil {
		l.WithError(score.Error).Warn("Could not classify mail, treating it as ham")
		r.result.MessageErrors++
		m.events.Publish(r.userId, domain.MonitorError, domain.EventPayload{
			Uid:     msg.Uid,
			Folder:  msg.Folder,
			Subject: msg.Subject,
			Error:   fmt.Sprintf("could not classify mail: %v", score.Error),
		})
		verdict = &domain.Verdict{IsSpam: false, Confidence: 0}
	}
	payload.Confidence = verdict.Confidence

	if !verdict.IsSpam || verdict.Confidence < m.configuration.Threshold {
		l.WithFields(logrus.Fields{"spam": verdict.IsSpam, "confidence": verdict.Confidence}).Debug("Mail is ham")
		m.events.Publish(r.userId, domain.NewMessage, payload)
		return nil
	}

	r.enter(PhaseActing)
	r.result.Spam++
	l = l.WithField("confidence", verdict.Confidence)

	if m.configuration.DryRun {
		l.Info("Mail is spam, dry run is enabled so not moving it")
		m.events.Publish(r.userId, domain.SpamDetected, payload)
		return nil
	}

	err := m.renew(ctx, r)
	if err != nil {
		return err
	}

	err = r.gateway.Move(ctx, msg.Folder, msg.Uid, m.configuration.SpamFolder)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("run deadline reached while moving mail %d: %w", msg.Uid, err)
		}
		l.WithError(err).Warn("Could not move spam")
		r.result.MessageErrors++
		m.events.Publish(r.userId, domain.MonitorError, domain.EventPayload{
			Uid:     msg.Uid,
			Folder:  msg.Folder,
			Subject: msg.Subject,
			Error:   fmt.Sprintf("could not move mail to %s: %v", m.configuration.SpamFolder, err),
		})
	} else {
		l.Info("Moved spam")
		r.result.Moved++
		payload.Moved = true
	}

	m.events.Publish(r.userId, domain.SpamDetected, payload)
	return nil
}

func (m *Runner) renew(ctx context.Context, r *run) error {
	lease, err := m.leases.Renew(ctx, r.lease, m.configuration.LeaseTTL)
	if errors.Is(err, domain.ErrLeaseExpired) {
		return errLeaseLost
	}
	if err != nil {
		return fmt.Errorf("could not renew lease: %w", err)
	}
	r.lease = lease
	return nil
}

func (m *Runner) saveCursor(ctx context.Context, r *run, cursor domain.Cursor) error {
	err := m.states.SaveCursor(ctx, r.userId, cursor)
	if err != nil {
		return fmt.Errorf("could not save cursor: %w", err)
	}
	if r.state.Cursors == nil {
		r.state.Cursors = map[string]domain.Cursor{}
	}
	r.state.Cursors[cursor.Folder] = cursor
	return nil
}

// finish writes the outcome of the run into the state and reports an abnormal end. An interrupted
// run leaves failures and the last check untouched so the user is due again right away.
func (m *Runner) finish(r *run, runErr error, interrupted bool) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	state := r.state
	state.Status = domain.StatusIdle

	if interrupted {
		r.l.WithError(runErr).WithField("phase", r.result.FailedIn).Info("Monitor run interrupted")
	} else if runErr == nil {
		state.LastCheckedAt = m.configuration.Now()
		state.ConsecutiveFailures = 0
		state.LastError = ""
	} else {
		state.LastCheckedAt = m.configuration.Now()
		state.ConsecutiveFailures++
		state.LastError = runErr.Error()
		if state.ConsecutiveFailures >= m.configuration.MaxFailures || errors.Is(runErr, domain.ErrCredentialUnavailable) {
			state.Status = domain.StatusFailed
		}

		r.l.WithError(runErr).WithFields(logrus.Fields{
			"phase":    r.result.FailedIn,
			"failures": state.ConsecutiveFailures,
			"status":   state.Status,
		}).Warn("Monitor run failed")

		m.events.Publish(r.userId, domain.MonitorError, domain.EventPayload{Error: runErr.Error()})
	}

	if !m.accounts.IsActive(r.userId) && state.Status != domain.StatusFailed {
		state.Status = domain.StatusPaused
	}

	err := m.states.SaveState(ctx, state)
	if err != nil {
		r.l.WithError(err).Error("Could not save monitoring state")
	}
}

func partitionUids(uids []uint32, partitionSize int) [][]uint32 {
	batches := make([][]uint32, 0, (len(uids)+partitionSize-1)/partitionSize)

	for partitionSize < len(uids) {
		uids, batches = uids[partitionSize:], append(batches, uids[0:partitionSize:partitionSize])
	}
	batches = append(batches, uids)

	return batches
}
