// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"context"
	"fmt"

	"github.com/CrawX/go-imap-sentinel/classifier/rspamd"
	"github.com/CrawX/go-imap-sentinel/classifier/spamassassin"
	"github.com/CrawX/go-imap-sentinel/classifier/textmodel"
	"github.com/CrawX/go-imap-sentinel/config"
	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/sirupsen/logrus"
)

// New builds the configured variant once at startup.
func New(ctx context.Context, cfg *config.Config) (domain.Classifier, error) {
	l := log.Logger(log.LOG_CLASSIFIER)
	variant := domain.ClassifierVariant(cfg.Classifier)

	switch variant {
	case domain.NaiveBayes, domain.LogisticRegression:
		model, err := textmodel.Load(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("could not load %s model: %w", variant, err)
		}
		if model.Variant != variant {
			return nil, fmt.Errorf("model %s is a %s model, configured classifier is %s", cfg.ModelPath, model.Variant, variant)
		}
		l.WithFields(logrus.Fields{"variant": variant, "model": cfg.ModelPath, "features": len(model.Vocabulary)}).Info("Loaded text model")
		return model, nil
	case domain.SpamassassinScorer:
		sa, err := spamassassin.NewSpamassassin(ctx, cfg.SpamassassinHost)
		if err != nil {
			return nil, fmt.Errorf("could not create spamassassin client: %w", err)
		}
		l.WithField("host", cfg.SpamassassinHost).Info("Using SpamAssassin")
		return sa, nil
	case domain.RspamdScorer:
		rs, err := rspamd.NewRspamd(ctx, cfg.RspamdController, cfg.RspamdPassword)
		if err != nil {
			return nil, fmt.Errorf("could not create rspamd client: %w", err)
		}
		l.WithField("controller", cfg.RspamdController).Info("Using rspamd")
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", cfg.Classifier)
	}
}
