// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"
	"github.com/CrawX/go-imap-sentinel/mail"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// Dialer opens one authenticated connection per monitoring run.
type Dialer struct {
	server  string
	timeout time.Duration
}

func NewDialer(server string, timeout time.Duration) *Dialer {
	return &Dialer{server: server, timeout: timeout}
}

func (d *Dialer) Dial(ctx context.Context, credential *domain.Credential) (domain.MailboxGateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewImapConnection(d.server, credential.Username, credential.Password, d.timeout)
}

type ImapConnection struct {
	connection    *client.Client
	uidPlusClient *uidplus.Client
	mailExpunger  expunger
	mailMover     mover

	server, user string

	selectedFolder string

	l *logrus.Logger
}

func NewImapConnection(server string, user string, password string, timeout time.Duration) (*ImapConnection, error) {
	imapClient, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not dial to imap: %w", err))
	}
	imapClient.Timeout = timeout

	err = imapClient.Login(user, password)
	if err != nil {
		imapClient.Logout()
		return nil, domain.Transient(fmt.Errorf("could not login to imap: %w", err))
	}

	uidPlusClient := uidplus.NewClient(imapClient)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		imapClient.Logout()
		return nil, domain.Transient(fmt.Errorf("could not check for UIDPLUS support: %w", err))
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		imapClient.Logout()
		return nil, domain.Transient(fmt.Errorf("could not check for MOVE support: %w", err))
	}

	conn := &ImapConnection{
		connection:    imapClient,
		uidPlusClient: uidPlusClient,
		server:        server,
		user:          user,
		l:             log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"server": server, "user": user})
	baseLogger.Debug("Logged in to server")

	if uidPlusSupported {
		conn.mailExpunger = &uidPlusExpunger{client: conn}
	} else {
		conn.mailExpunger = &flagExpunger{client: conn}
	}

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		conn.mailMover = &moveMover{client: moveClient}
	} else {
		baseLogger.WithField("uidplus", uidPlusSupported).Info("MOVE not supported on server, falling back to copy&expunge")
		conn.mailMover = &copyMover{client: conn}
	}

	return conn, nil
}

// withContext runs an imap command and tears the connection down if ctx ends first, since
// go-imap commands cannot be cancelled individually.
func (ic *ImapConnection) withContext(ctx context.Context, command func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ic.l.WithField("user", ic.user).Warn("Context ended during imap command, terminating connection")
			ic.connection.Terminate()
		case <-stop:
		}
	}()

	err := command()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (ic *ImapConnection) selectFolder(ctx context.Context, folder string) (*imap.MailboxStatus, error) {
	var status *imap.MailboxStatus
	err := ic.withContext(ctx, func() error {
		var err error
		status, err = ic.connection.Select(folder, false)
		return err
	})
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not select folder %s: %w", folder, err))
	}

	ic.selectedFolder = folder
	return status, nil
}

func (ic *ImapConnection) ensureSelected(ctx context.Context, folder string) error {
	if ic.selectedFolder == folder {
		return nil
	}
	_, err := ic.selectFolder(ctx, folder)
	return err
}

func (ic *ImapConnection) ListUnseenSince(ctx context.Context, cursor domain.Cursor) ([]uint32, domain.Cursor, error) {
	status, err := ic.selectFolder(ctx, cursor.Folder)
	if err != nil {
		return nil, cursor, err
	}

	cursor, rebased := continueCursor(cursor, status.UidValidity, status.UidNext)
	if rebased {
		ic.l.WithFields(logrus.Fields{"folder": cursor.Folder, "uidvalidity": status.UidValidity, "lastuid": cursor.LastUid}).Warn("UIDVALIDITY changed, rebaselined cursor to the current end of the folder")
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Uid = &imap.SeqSet{}
	criteria.Uid.AddRange(cursor.LastUid+1, 0)

	var uids []uint32
	err = ic.withContext(ctx, func() error {
		var err error
		uids, err = ic.connection.UidSearch(criteria)
		return err
	})
	if err != nil {
		return nil, cursor, domain.Transient(fmt.Errorf("could not search folder %s: %w", cursor.Folder, err))
	}

	return uidsAfter(uids, cursor.LastUid), cursor, nil
}

// continueCursor binds a cursor to the folder's current UIDVALIDITY. A changed validity makes the
// stored uid meaningless, so the cursor restarts behind the newest existing mail.
func continueCursor(cursor domain.Cursor, uidValidity, uidNext uint32) (domain.Cursor, bool) {
	if cursor.UidValidity == uidValidity {
		return cursor, false
	}

	if cursor.UidValidity == 0 && cursor.LastUid == 0 {
		cursor.UidValidity = uidValidity
		return cursor, false
	}

	cursor.UidValidity = uidValidity
	cursor.LastUid = 0
	if uidNext > 0 {
		cursor.LastUid = uidNext - 1
	}
	return cursor, true
}

// uidsAfter filters and sorts ascending. "n:*" always matches the highest uid, even below n.
func uidsAfter(uids []uint32, last uint32) []uint32 {
	result := []uint32{}
	for _, uid := range uids {
		if uid > last {
			result = append(result, uid)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (ic *ImapConnection) Fetch(ctx context.Context, folder string, uid uint32) (*domain.RawMessage, error) {
	if err := ic.ensureSelected(ctx, folder); err != nil {
		return nil, err
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{fullBodySection.FetchItem()}

	var rawMail []byte
	var readErr error
	err := ic.withContext(ctx, func() error {
		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		go func() {
			done <- ic.connection.UidFetch(seqset, fetchItems, messages)
		}()

		for msg := range messages {
			if msg.Uid != uid {
				continue
			}
			r := msg.GetBody(fullBodySection)
			if r == nil {
				readErr = fmt.Errorf("server returned no body for uid %d", uid)
				continue
			}
			rawMail, readErr = io.ReadAll(r)
		}

		return <-done
	})
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("could not fetch mail %d: %w", uid, err))
	}
	if readErr != nil {
		return nil, fmt.Errorf("could not read mail body: %w", readErr)
	}
	if rawMail == nil {
		return nil, fmt.Errorf("uid %d in %s: %w", uid, folder, domain.ErrMessageGone)
	}

	return toRawMessage(folder, uid, rawMail), nil
}

// toRawMessage parses what it can. A mail enmime cannot read still gets its headers and an empty
// text, the classifier then fails open on it.
func toRawMessage(folder string, uid uint32, rawMail []byte) *domain.RawMessage {
	msg := &domain.RawMessage{
		Uid:     uid,
		Folder:  folder,
		RawMail: rawMail,
	}

	parsed, err := mail.Parse(rawMail)
	if err != nil {
		msg.Subject, msg.From, msg.MessageId, _ = mail.MailHeaderInfos(rawMail)
		return msg
	}

	msg.Subject = parsed.Subject
	msg.From = parsed.From
	msg.MessageId = parsed.MessageId
	msg.Date = parsed.Date
	msg.Text = parsed.Text
	return msg
}

func (ic *ImapConnection) Move(ctx context.Context, folder string, uid uint32, destination string) error {
	if err := ic.ensureSelected(ctx, folder); err != nil {
		return err
	}

	return ic.withContext(ctx, func() error {
		return ic.mailMover.move(uid, destination)
	})
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}

func (ic *ImapConnection) flagDeleted(uid uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := ic.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not set delete flag: %w", err)
	}

	return seqset, nil
}

func (ic *ImapConnection) UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error {
	return ic.uidPlusClient.UidExpunge(seqSet, ch)
}

func (ic *ImapConnection) Expunge(ch chan uint32) error {
	return ic.connection.Expunge(ch)
}

func (ic *ImapConnection) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	return ic.connection.UidSearch(criteria)
}

func (ic *ImapConnection) UidCopy(seqset *imap.SeqSet, dest string) error {
	return ic.connection.UidCopy(seqset, dest)
}

func (ic *ImapConnection) expunge(uid uint32) error {
	return ic.mailExpunger.expunge(uid)
}

func (ic *ImapConnection) expungeReady() (error, error) {
	return ic.mailExpunger.expungeReady()
}
