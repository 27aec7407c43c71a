// SPDX-License-Identifier: GPL-3.0-or-later
package spamassassin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"

	"github.com/teamwork/spamc"
)

const SpamAssassinTimeout = 20 * time.Second

// processor is the part of spamc.Client used for scoring.
type processor interface {
	Process(ctx context.Context, msg io.Reader, hdr spamc.Header) (*spamc.ResponseProcess, error)
}

type SpamAssassin struct {
	client processor
}

func NewSpamassassin(ctx context.Context, host string) (*SpamAssassin, error) {
	client := spamc.New(host, &net.Dialer{
		Timeout: SpamAssassinTimeout,
	})
	err := client.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not ping SpamAssassin: %w", err)
	}

	return &SpamAssassin{client: client}, nil
}

func (sa *SpamAssassin) Score(ctx context.Context, input domain.ScoreInput) (*domain.Verdict, error) {
	out, err := sa.client.Process(ctx, bytes.NewReader(input.RawMail), nil)
	if err != nil {
		return nil, fmt.Errorf("could not check SpamAssassin: %w", err)
	}

	err = out.Message.Close()
	if err != nil {
		return nil, fmt.Errorf("could not close response: %w", err)
	}

	return domain.PointsVerdict(out.Score, out.BaseScore), nil
}
