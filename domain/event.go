// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

type EventType string

const (
	NewMessage   = EventType("new_message")
	SpamDetected = EventType("spam_detected")
	MonitorError = EventType("monitor_error")
)

type EventPayload struct {
	Uid        uint32  `json:"uid,omitempty"`
	Folder     string  `json:"folder,omitempty"`
	Subject    string  `json:"subject,omitempty"`
	From       string  `json:"from,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Moved      bool    `json:"moved,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type Event struct {
	UserId    string       `json:"user_id"`
	Type      EventType    `json:"type"`
	Payload   EventPayload `json:"payload"`
	Sequence  uint64       `json:"sequence"`
	EmittedAt time.Time    `json:"emitted_at"`
}

// Publisher assigns the sequence and emission time and returns the published event.
type Publisher interface {
	Publish(userId string, eventType EventType, payload EventPayload) Event
}
