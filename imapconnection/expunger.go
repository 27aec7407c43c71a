// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"errors"
	"fmt"

	"github.com/emersion/go-imap"
)

var ErrDeletedItemsPresent = errors.New("folder has previous items with delete flag set")

// uidPlusExpunger removes exactly one uid with UID EXPUNGE.
type uidPlusExpunger struct {
	client flagAndUidExpungeClient
}

func (u *uidPlusExpunger) expunge(uid uint32) error {
	seqset, err := u.client.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not flag mail as deleted: %w", err)
	}

	return drainExpunge(func(ch chan uint32) error {
		return u.client.UidExpunge(seqset, ch)
	})
}

func (u *uidPlusExpunger) expungeReady() (error, error) {
	// UIDPLUS expunges by uid and is therefore always ready
	return nil, nil
}

// flagExpunger uses a plain EXPUNGE, which removes every mail carrying the \Deleted flag. It is
// only ready when no other mail in the folder is flagged.
type flagExpunger struct {
	client flagAndExpungeClient
}

func (f *flagExpunger) expunge(uid uint32) error {
	notReadyReason, err := f.expungeReady()
	if err != nil {
		return fmt.Errorf("could not check for expunge readiness: %w", err)
	}

	if notReadyReason != nil {
		return fmt.Errorf("folder is not ready for expunge: %w", notReadyReason)
	}

	_, err = f.client.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not set deleted flag: %w", err)
	}

	return drainExpunge(f.client.Expunge)
}

func (f *flagExpunger) expungeReady() (error, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	ids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for deleted in folder: %w", err)
	}

	if len(ids) > 0 {
		return ErrDeletedItemsPresent, nil
	}
	return nil, nil
}

func drainExpunge(run func(ch chan uint32) error) error {
	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- run(out)
	}()

	expunged := 0
	for range out {
		expunged++
	}

	err := <-done
	if err != nil {
		return fmt.Errorf("could not expunge mail: %w", err)
	}

	if expunged != 1 {
		return fmt.Errorf("unexpected number of expunges, expected 1 got %d", expunged)
	}

	return nil
}
