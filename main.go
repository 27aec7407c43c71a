// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/CrawX/go-imap-sentinel/account"
	"github.com/CrawX/go-imap-sentinel/classifier"
	"github.com/CrawX/go-imap-sentinel/config"
	"github.com/CrawX/go-imap-sentinel/credential"
	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/eventbus"
	"github.com/CrawX/go-imap-sentinel/imapconnection"
	"github.com/CrawX/go-imap-sentinel/lease"
	"github.com/CrawX/go-imap-sentinel/log"
	"github.com/CrawX/go-imap-sentinel/monitor"
	"github.com/CrawX/go-imap-sentinel/notification"
	"github.com/CrawX/go-imap-sentinel/persistence"
	"github.com/CrawX/go-imap-sentinel/scheduler"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger *logrus.Logger

func main() {
	log.InitLogging("info")
	logger = log.Logger(log.LOG_MAIN)

	err := newApp().Run(os.Args)
	if err != nil {
		logger.WithError(err).Fatal("Command failed")
	}
}

func newApp() *cli.App {
	userFlag := &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id of the account", Required: true}

	return &cli.App{
		Name:  "imap-sentinel",
		Usage: "monitors imap mailboxes, moves spam and streams what it found",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.toml", Usage: "config file", EnvVars: []string{"SENTINEL_CONFIG"}},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the scheduler and the notification gateway until interrupted",
				Action: withComponents(serve),
			},
			{
				Name:   "run-once",
				Usage:  "check one user's mailbox once",
				Flags:  []cli.Flag{userFlag},
				Action: withComponents(runOnce),
			},
			{
				Name:   "reset",
				Usage:  "reactivate a failed or paused user",
				Flags:  []cli.Flag{userFlag},
				Action: withComponents(reset),
			},
			{
				Name:   "status",
				Usage:  "print the monitoring state of all users",
				Action: withComponents(status),
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: migrateDatabase,
			},
			{
				Name:  "store-password",
				Usage: "store an imap password in the os keyring",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true, Usage: "imap username"},
					&cli.StringFlag{Name: "password", Required: true, Usage: "imap password", EnvVars: []string{"SENTINEL_PASSWORD"}},
				},
				Action: storePassword,
			},
		},
	}
}

// components holds everything built from the config. Commands use the parts they need.
type components struct {
	conf      *config.Config
	db        *persistence.Persistence
	leases    domain.LeaseManager
	registry  *account.Registry
	bus       *eventbus.Bus
	runner    *monitor.Runner
	scheduler *scheduler.Scheduler
	closers   []func() error
}

func (cs *components) Close() {
	for i := len(cs.closers) - 1; i >= 0; i-- {
		if err := cs.closers[i](); err != nil {
			logger.WithError(err).Warn("Could not close component")
		}
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	conf, err := config.ReadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}
	return conf, nil
}

func withComponents(action func(c *cli.Context, cs *components) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		conf, err := loadConfig(c)
		if err != nil {
			return err
		}

		cs, err := build(c.Context, conf)
		if cs != nil {
			defer cs.Close()
		}
		if err != nil {
			return err
		}

		return action(c, cs)
	}
}

func build(ctx context.Context, conf *config.Config) (*components, error) {
	cs := &components{conf: conf}

	db, err := persistence.NewPersistence(conf.DatabaseDriver, conf.Database)
	if err != nil {
		return cs, fmt.Errorf("could not connect to database: %w", err)
	}
	cs.db = db
	cs.closers = append(cs.closers, db.Close)

	applied, err := db.Migrate(ctx)
	if err != nil {
		return cs, err
	}
	logger.WithField("migrations", applied).Debug("Database is up to date")

	switch conf.LeaseBackend {
	case config.LeaseBackendMemory:
		cs.leases = lease.NewMemoryManager()
	default:
		cs.leases = db.Leases()
	}

	busConfig := []eventbus.ConfigFunc{
		eventbus.WithBacklog(conf.EventBacklog),
		eventbus.WithSubscriberBuffer(conf.SubscriberBuffer),
	}
	if len(conf.AMQPURL) > 0 {
		sink, err := eventbus.DialAMQP(conf.AMQPURL, conf.AMQPExchange)
		if err != nil {
			return cs, err
		}
		cs.closers = append(cs.closers, sink.Close)
		busConfig = append(busConfig, eventbus.WithSink(sink))
	}
	cs.bus = eventbus.NewBus(busConfig...)

	spamClassifier, err := classifier.New(ctx, conf)
	if err != nil {
		return cs, fmt.Errorf("could not start classifier: %w", err)
	}

	cs.registry = account.NewRegistry(conf.DomainAccounts())

	runnerConfig := []monitor.ConfigFunc{
		monitor.Folders(conf.Folders...),
		monitor.SpamFolder(conf.SpamFolder),
		monitor.Threshold(conf.SpamConfidenceThreshold),
		monitor.Timing(conf.LeaseTTL(), conf.RunTimeout()),
		monitor.MaxConsecutiveFailures(conf.MaxConsecutiveFailures),
		monitor.ClassifyConcurrency(conf.ClassifyConcurrency),
	}
	if conf.DryRun {
		runnerConfig = append(runnerConfig, monitor.DryRun())
	}
	cs.runner, err = monitor.NewRunner(
		db,
		cs.leases,
		cs.registry,
		credentials(conf),
		imapconnection.NewDialer(conf.ImapHost, conf.ImapTimeout()),
		spamClassifier,
		cs.bus,
		runnerConfig...,
	)
	if err != nil {
		return cs, fmt.Errorf("could not create monitor: %w", err)
	}

	cs.scheduler, err = scheduler.NewScheduler(
		db,
		cs.leases,
		cs.registry,
		cs.runner,
		scheduler.Tick(conf.Tick()),
		scheduler.Workers(conf.Workers),
		scheduler.MaxBackoff(conf.MaxBackoff()),
		scheduler.WithTopics(cs.bus),
	)
	if err != nil {
		return cs, fmt.Errorf("could not create scheduler: %w", err)
	}

	err = cs.scheduler.Sync(ctx)
	if err != nil {
		return cs, err
	}

	return cs, nil
}

// credentials prefers passwords from the config file and falls back to the os keyring.
func credentials(conf *config.Config) domain.CredentialProvider {
	chain := credential.Chain{credential.NewStatic(conf.Passwords())}
	if len(conf.KeyringService) > 0 {
		ring, err := credential.OpenKeyring(conf.KeyringService)
		if err != nil {
			logger.WithError(err).Warn("Keyring unavailable, only passwords from the config file are used")
		} else {
			chain = append(chain, ring)
		}
	}
	return chain
}

func serve(c *cli.Context, cs *components) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"accounts":   len(cs.registry.ActiveAccounts()),
		"folders":    cs.conf.Folders,
		"spamfolder": cs.conf.SpamFolder,
		"classifier": cs.conf.Classifier,
		"dryrun":     cs.conf.DryRun,
	}).Info("Starting monitoring")
	if cs.conf.DryRun {
		logger.Warn("Dry run, spam is detected but not moved")
	}

	err := cs.scheduler.Start(ctx)
	if err != nil {
		return err
	}
	defer cs.scheduler.Stop()

	gateway := notification.NewGateway(cs.bus, cs.db, cs.scheduler)
	return gateway.Serve(ctx, cs.conf.Listen)
}

func runOnce(c *cli.Context, cs *components) error {
	userId := c.String("user")
	result, err := cs.runner.RunMonitorCycle(c.Context, userId)
	if result != nil {
		fmt.Fprintf(c.App.Writer, "%s: %s, processed %d, spam %d, moved %d, errors %d\n",
			userId, result.Outcome, result.Processed, result.Spam, result.Moved, result.MessageErrors)
	}
	return err
}

func reset(c *cli.Context, cs *components) error {
	userId := c.String("user")
	state, err := cs.scheduler.Activate(c.Context, userId)
	if err != nil {
		return err
	}

	if cs.scheduler.Pending(userId) {
		fmt.Fprintf(c.App.Writer, "%s: waiting for the running check to release its lease\n", userId)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for cs.scheduler.Pending(userId) {
			select {
			case <-c.Context.Done():
				return fmt.Errorf("reset of %s not applied: %w", userId, c.Context.Err())
			case <-ticker.C:
				cs.scheduler.ApplyPending(c.Context)
			}
		}
		state, err = cs.db.GetState(c.Context, userId)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(c.App.Writer, "%s: %s\n", state.UserId, state.Status)
	return nil
}

func status(c *cli.Context, cs *components) error {
	states, err := cs.db.AllStates(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tSTATUS\tFAILURES\tLAST CHECK\tLAST ERROR")
	for _, s := range states {
		lastChecked := "never"
		if !s.LastCheckedAt.IsZero() {
			lastChecked = s.LastCheckedAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.UserId, s.Status, s.ConsecutiveFailures, lastChecked, s.LastError)
	}
	return w.Flush()
}

func migrateDatabase(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := persistence.NewPersistence(conf.DatabaseDriver, conf.Database)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "applied %d migrations\n", applied)
	return nil
}

func storePassword(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	if len(conf.KeyringService) == 0 {
		return errors.New("KeyringService is not configured")
	}

	ring, err := credential.OpenKeyring(conf.KeyringService)
	if err != nil {
		return err
	}
	err = ring.Store(c.String("username"), c.String("password"))
	if err != nil {
		return err
	}
	logger.WithField("username", c.String("username")).Info("Stored password")
	return nil
}
