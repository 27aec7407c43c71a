// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"fmt"

	"github.com/emersion/go-imap"
)

type moveMover struct {
	client moveClient
}

func (m *moveMover) move(uid uint32, destination string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	return m.client.UidMove(seqset, destination)
}

func (m *moveMover) moveReady() (error, error) {
	// MOVE is atomic on the server and therefore always ready
	return nil, nil
}

// copyMover emulates MOVE with UID COPY followed by an expunge of the source.
type copyMover struct {
	client copyAndExpungeClient
}

func (c *copyMover) move(uid uint32, destination string) error {
	notReadyReason, err := c.moveReady()
	if err != nil {
		return fmt.Errorf("could not check for expunge readiness to move: %w", err)
	}

	if notReadyReason != nil {
		return fmt.Errorf("folder is not ready for expunge, cannot move (copy&expunge): %w", notReadyReason)
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err = c.client.UidCopy(seqset, destination)
	if err != nil {
		return fmt.Errorf("could not copy mail: %w", err)
	}

	err = c.client.expunge(uid)
	if err != nil {
		return fmt.Errorf("could not expunge copied mail: %w", err)
	}

	return nil
}

func (c *copyMover) moveReady() (error, error) {
	return c.client.expungeReady()
}
