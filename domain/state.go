// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusIdle    = Status("idle")
	StatusRunning = Status("running")
	StatusPaused  = Status("paused")
	StatusFailed  = Status("failed")
)

var ErrStateNotFound = errors.New("monitoring state not found")

type MonitoringState struct {
	UserId              string
	Status              Status
	ConsecutiveFailures int
	LastCheckedAt       time.Time
	LastError           string
	Cursors             map[string]Cursor
}

func (s *MonitoringState) Cursor(folder string) Cursor {
	if c, ok := s.Cursors[folder]; ok {
		return c
	}
	return Cursor{Folder: folder}
}

// Schedulable reports whether automatic runs may be started for the state.
func (s *MonitoringState) Schedulable() bool {
	return s.Status != StatusPaused && s.Status != StatusFailed
}

type StateStore interface {
	GetState(ctx context.Context, userId string) (*MonitoringState, error)
	AllStates(ctx context.Context) ([]*MonitoringState, error)
	// CreateState creates the state as idle or resets an existing one to idle, keeping its cursors.
	CreateState(ctx context.Context, userId string) (*MonitoringState, error)
	SaveState(ctx context.Context, state *MonitoringState) error
	SaveCursor(ctx context.Context, userId string, cursor Cursor) error
	DeleteState(ctx context.Context, userId string) error
}
