// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"context"

	"github.com/CrawX/go-imap-sentinel/domain"
)

// Batch scores several messages concurrently and retries every failed message once.
type Batch struct {
	domain.Classifier
	Concurrency int
}

// ScoreAll returns one result per input in input order.
func (b *Batch) ScoreAll(ctx context.Context, inputs []domain.ScoreInput) []*domain.SpamResult {
	concurrency := b.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	semaphore := make(chan bool, concurrency)
	results := make([]*domain.SpamResult, len(inputs))
	for i := 0; i < len(inputs); i++ {
		semaphore <- true
		go func(index int) {
			results[index] = b.score(ctx, inputs[index])
			if results[index].Error != nil && ctx.Err() == nil {
				results[index] = b.score(ctx, inputs[index])
			}
			<-semaphore
		}(i)
	}

	for i := 0; i < concurrency; i++ {
		semaphore <- true
	}

	return results
}

func (b *Batch) score(ctx context.Context, input domain.ScoreInput) *domain.SpamResult {
	verdict, err := b.Score(ctx, input)
	return &domain.SpamResult{Verdict: verdict, Error: err}
}
