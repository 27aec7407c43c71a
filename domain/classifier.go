// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/classifier.go -package=mocks . Classifier
package domain

import (
	"context"
	"math"
)

type ClassifierVariant string

const (
	NaiveBayes         = ClassifierVariant("nb")
	LogisticRegression = ClassifierVariant("lr")
	SpamassassinScorer = ClassifierVariant("spamassassin")
	RspamdScorer       = ClassifierVariant("rspamd")
)

type ScoreInput struct {
	Text    string
	RawMail []byte
}

type Verdict struct {
	IsSpam     bool
	Confidence float64
}

type SpamResult struct {
	Verdict *Verdict
	Error   error
}

// Classifier scores a single message. Implementations are deterministic for a fixed variant and input.
type Classifier interface {
	Score(ctx context.Context, input ScoreInput) (*Verdict, error)
}

// PointsVerdict maps a point score of a rule based scorer and its spam threshold onto a verdict.
// A score at the threshold is even odds.
func PointsVerdict(score, threshold float64) *Verdict {
	spam := 1 / (1 + math.Exp(-(score-threshold)/2))
	if score >= threshold {
		return &Verdict{IsSpam: true, Confidence: spam}
	}
	return &Verdict{IsSpam: false, Confidence: 1 - spam}
}
