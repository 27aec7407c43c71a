// SPDX-License-Identifier: GPL-3.0-or-later
package monitor

import (
	"fmt"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
)

const (
	DefaultBatchSize           = 50
	DefaultClassifyConcurrency = 4
	DefaultThreshold           = 0.7
	DefaultLeaseTTL            = 5 * time.Minute
	DefaultRunTimeout          = 4 * time.Minute
	DefaultMaxFailures         = 5
	DefaultSpamFolder          = "Spam"
)

type ConfigFunc func(c *configuration) error

func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true
		return nil
	}
}

func SpamFolder(spamFolder string) ConfigFunc {
	return func(c *configuration) error {
		if len(spamFolder) == 0 {
			return fmt.Errorf("SpamFolder cannot be empty")
		}
		c.SpamFolder = spamFolder
		return nil
	}
}

func Folders(folders ...string) ConfigFunc {
	return func(c *configuration) error {
		if len(folders) == 0 {
			return fmt.Errorf("at least one folder must be monitored")
		}
		c.Folders = folders
		return nil
	}
}

func Threshold(threshold float64) ConfigFunc {
	return func(c *configuration) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("threshold must be within [0,1], got %v", threshold)
		}
		c.Threshold = threshold
		return nil
	}
}

// Timing sets the lease ttl and the run deadline. The lease has to outlive the deadline so a run
// that observes its deadline never works on an expired lease.
func Timing(leaseTTL, runTimeout time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if runTimeout <= 0 || leaseTTL <= runTimeout {
			return fmt.Errorf("lease ttl %v must exceed run timeout %v", leaseTTL, runTimeout)
		}
		c.LeaseTTL = leaseTTL
		c.RunTimeout = runTimeout
		return nil
	}
}

func MaxConsecutiveFailures(max int) ConfigFunc {
	return func(c *configuration) error {
		if max < 1 {
			return fmt.Errorf("MaxConsecutiveFailures must be positive, got %d", max)
		}
		c.MaxFailures = max
		return nil
	}
}

func ClassifyConcurrency(concurrency int) ConfigFunc {
	return func(c *configuration) error {
		if concurrency < 1 {
			return fmt.Errorf("ClassifyConcurrency must be positive, got %d", concurrency)
		}
		c.ClassifyConcurrency = concurrency
		return nil
	}
}

func BatchSize(size int) ConfigFunc {
	return func(c *configuration) error {
		if size < 1 {
			return fmt.Errorf("BatchSize must be positive, got %d", size)
		}
		c.BatchSize = size
		return nil
	}
}

func WithClock(now func() time.Time) ConfigFunc {
	return func(c *configuration) error {
		c.Now = now
		return nil
	}
}

type configuration struct {
	DryRun bool

	Folders    []string
	SpamFolder string
	Threshold  float64

	LeaseTTL    time.Duration
	RunTimeout  time.Duration
	MaxFailures int

	BatchSize           int
	ClassifyConcurrency int

	Now func() time.Time
}

func defaultConfiguration() *configuration {
	return &configuration{
		Folders:             []string{domain.Inbox},
		SpamFolder:          DefaultSpamFolder,
		Threshold:           DefaultThreshold,
		LeaseTTL:            DefaultLeaseTTL,
		RunTimeout:          DefaultRunTimeout,
		MaxFailures:         DefaultMaxFailures,
		BatchSize:           DefaultBatchSize,
		ClassifyConcurrency: DefaultClassifyConcurrency,
		Now:                 time.Now,
	}
}
