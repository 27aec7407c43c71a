// SPDX-License-Identifier: GPL-3.0-or-later
package textmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/CrawX/go-imap-sentinel/domain"
)

// Model is a tf-idf vectorizer followed by either a multinomial naive bayes or a logistic
// regression, exported from the training pipeline as JSON. Class 0 is ham, class 1 is spam.
type Model struct {
	Variant    domain.ClassifierVariant `json:"variant"`
	Vocabulary map[string]int           `json:"vocabulary"`
	Idf        []float64                `json:"idf"`
	Sublinear  bool                     `json:"sublinear_tf"`

	// naive bayes
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`

	// logistic regression
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read model file: %w", err)
	}

	model := &Model{}
	err = json.Unmarshal(raw, model)
	if err != nil {
		return nil, fmt.Errorf("could not deserialize model: %w", err)
	}

	err = model.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}

	return model, nil
}

func (m *Model) validate() error {
	features := len(m.Vocabulary)
	if features == 0 {
		return errors.New("empty vocabulary")
	}
	if len(m.Idf) != features {
		return fmt.Errorf("idf has %d entries, vocabulary %d", len(m.Idf), features)
	}
	for word, index := range m.Vocabulary {
		if index < 0 || index >= features {
			return fmt.Errorf("vocabulary index %d of %q out of range", index, word)
		}
	}

	switch m.Variant {
	case domain.NaiveBayes:
		if len(m.ClassLogPrior) != 2 || len(m.FeatureLogProb) != 2 {
			return errors.New("naive bayes needs exactly two classes")
		}
		for _, row := range m.FeatureLogProb {
			if len(row) != features {
				return fmt.Errorf("feature_log_prob row has %d entries, vocabulary %d", len(row), features)
			}
		}
	case domain.LogisticRegression:
		if len(m.Coef) != features {
			return fmt.Errorf("coef has %d entries, vocabulary %d", len(m.Coef), features)
		}
	default:
		return fmt.Errorf("unsupported model variant %q", m.Variant)
	}

	return nil
}

type feature struct {
	index int
	value float64
}

// vectorize returns the l2 normalized sparse tf-idf vector of the tokens, ordered by index so that
// sums over it are reproducible.
func (m *Model) vectorize(tokens []string) []feature {
	counts := map[int]float64{}
	for _, token := range tokens {
		if index, ok := m.Vocabulary[token]; ok {
			counts[index]++
		}
	}

	vector := make([]feature, 0, len(counts))
	norm := 0.0
	for index, tf := range counts {
		if m.Sublinear {
			tf = 1 + math.Log(tf)
		}
		value := tf * m.Idf[index]
		vector = append(vector, feature{index: index, value: value})
	}
	sort.Slice(vector, func(i, j int) bool { return vector[i].index < vector[j].index })

	for _, f := range vector {
		norm += f.value * f.value
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vector {
			vector[i].value /= norm
		}
	}

	return vector
}

// SpamProbability returns P(spam | text).
func (m *Model) SpamProbability(text string) float64 {
	vector := m.vectorize(Tokens(text))

	switch m.Variant {
	case domain.NaiveBayes:
		joint := [2]float64{m.ClassLogPrior[0], m.ClassLogPrior[1]}
		for _, f := range vector {
			joint[0] += f.value * m.FeatureLogProb[0][f.index]
			joint[1] += f.value * m.FeatureLogProb[1][f.index]
		}
		// softmax over two classes
		return 1 / (1 + math.Exp(joint[0]-joint[1]))
	default:
		z := m.Intercept
		for _, f := range vector {
			z += f.value * m.Coef[f.index]
		}
		return 1 / (1 + math.Exp(-z))
	}
}

// Score implements domain.Classifier. The confidence is the probability of the predicted class.
func (m *Model) Score(ctx context.Context, input domain.ScoreInput) (*domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spam := m.SpamProbability(input.Text)
	if spam > 0.5 {
		return &domain.Verdict{IsSpam: true, Confidence: spam}, nil
	}
	return &domain.Verdict{IsSpam: false, Confidence: 1 - spam}, nil
}
