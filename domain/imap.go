// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/imap.go -package=mocks . MailboxGateway,MailboxDialer
package domain

import (
	"context"
	"errors"
	"time"
)

const Inbox = "INBOX"

// ErrMessageGone is returned by Fetch when the uid was expunged between listing and fetching.
var ErrMessageGone = errors.New("message no longer in folder")

// Cursor is the per-folder watermark of the last processed message. Uids are only comparable
// within one UidValidity.
type Cursor struct {
	Folder      string
	UidValidity uint32
	LastUid     uint32
}

// Advance returns the cursor moved to uid, never backwards.
func (c Cursor) Advance(uid uint32) Cursor {
	if uid > c.LastUid {
		c.LastUid = uid
	}
	return c
}

type RawMessage struct {
	Uid       uint32
	Folder    string
	Subject   string
	From      string
	MessageId string
	Date      time.Time
	// Text is the subject and the plain and html bodies flattened for classification.
	Text    string
	RawMail []byte
}

type MailboxGateway interface {
	// ListUnseenSince returns the unseen uids newer than cursor, oldest first, along with the
	// cursor to continue from. The returned cursor differs from the given one when the folder's
	// UIDVALIDITY changed.
	ListUnseenSince(ctx context.Context, cursor Cursor) ([]uint32, Cursor, error)
	Fetch(ctx context.Context, folder string, uid uint32) (*RawMessage, error)
	Move(ctx context.Context, folder string, uid uint32, destination string) error
	Close() error
}

type MailboxDialer interface {
	Dial(ctx context.Context, credential *Credential) (MailboxGateway, error)
}
