// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import "github.com/emersion/go-imap"

//go:generate mockgen -destination=capabilities_mocks_test.go -package=imapconnection -source capabilities.go

// Consolidated file for the expunger and mover interfaces plus their client requirements so gomock
// can generate mocks in source mode, which fails on embedded interfaces spread over several files.

type expunger interface {
	expunge(uid uint32) error
	expungeReady() (error, error)
}

type mover interface {
	move(uid uint32, destination string) error
	moveReady() (error, error)
}

type deletedFlagger interface {
	flagDeleted(uid uint32) (*imap.SeqSet, error)
}

type flagAndUidExpungeClient interface {
	deletedFlagger
	UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error
}

type flagAndExpungeClient interface {
	deletedFlagger
	Expunge(ch chan uint32) error
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
}

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

type copyAndExpungeClient interface {
	expunger
	UidCopy(seqset *imap.SeqSet, dest string) error
}
