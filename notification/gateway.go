// SPDX-License-Identifier: GPL-3.0-or-later
package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/CrawX/go-imap-sentinel/domain"
	"github.com/CrawX/go-imap-sentinel/eventbus"
	"github.com/CrawX/go-imap-sentinel/log"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	UserHeader      = "X-User-Id"
	LastEventHeader = "Last-Event-ID"

	DefaultPingInterval = 15 * time.Second
	shutdownTimeout     = 15 * time.Second
)

type Subscriber interface {
	Subscribe(userId string, afterSequence uint64) *eventbus.Subscription
}

type StateReader interface {
	GetState(ctx context.Context, userId string) (*domain.MonitoringState, error)
}

type Control interface {
	Activate(ctx context.Context, userId string) (*domain.MonitoringState, error)
	Deactivate(ctx context.Context, userId string) (*domain.MonitoringState, error)
}

type ConfigFunc func(g *Gateway)

func PingInterval(interval time.Duration) ConfigFunc {
	return func(g *Gateway) {
		g.pingInterval = interval
	}
}

// Gateway relays the per user event stream to http clients as server sent events.
type Gateway struct {
	events  Subscriber
	states  StateReader
	control Control

	pingInterval time.Duration
	router       *gin.Engine

	l *logrus.Logger
}

func NewGateway(events Subscriber, states StateReader, control Control, configFuncs ...ConfigFunc) *Gateway {
	g := &Gateway{
		events:       events,
		states:       states,
		control:      control,
		pingInterval: DefaultPingInterval,
		l:            log.Logger(log.LOG_NOTIFICATION),
	}
	for _, f := range configFuncs {
		f(g)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), g.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	monitoring := router.Group("/monitoring", requireUser())
	{
		monitoring.GET("/sse", g.stream)
		monitoring.GET("/status", g.status)
		monitoring.POST("/activate", g.activate)
		monitoring.POST("/deactivate", g.deactivate)
	}

	g.router = router
	return g
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Serve listens until ctx is done, then shuts down gracefully. Request contexts derive from ctx so
// open streams end with it.
func (g *Gateway) Serve(ctx context.Context, listen string) error {
	server := &http.Server{
		Addr:              listen,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		g.l.WithField("listen", listen).Info("Starting notification gateway")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("notification gateway failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("could not shut down notification gateway: %w", err)
	}
	g.l.Info("Stopped notification gateway")
	return nil
}

func (g *Gateway) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		g.l.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"user":     c.GetString(userKey),
		}).Debug("Handled request")
	}
}

const userKey = "user"

// requireUser reads the user authenticated by the fronting api.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetHeader(UserHeader)
		if len(userId) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}
		c.Set(userKey, userId)
		c.Next()
	}
}

func (g *Gateway) stream(c *gin.Context) {
	userId := c.GetString(userKey)

	var after uint64
	if lastEventId := c.GetHeader(LastEventHeader); len(lastEventId) > 0 {
		parsed, err := strconv.ParseUint(lastEventId, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + LastEventHeader})
			return
		}
		after = parsed
	}

	state, err := g.states.GetState(c.Request.Context(), userId)
	if err != nil {
		g.respond(c, nil, err)
		return
	}
	if state.Status == domain.StatusPaused {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "monitoring is not active"})
		return
	}

	subscription := g.events.Subscribe(userId, after)
	defer subscription.Close()

	l := g.l.WithFields(logrus.Fields{"user": userId, "subscription": subscription.Id})
	l.Debug("Client connected")

	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Render(-1, sse.Event{Event: "connected", Data: gin.H{"user_id": userId, "subscription": subscription.Id}})
	c.Writer.Flush()

	clientGone := c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-subscription.Events():
			if !ok {
				if subscription.Lagged() {
					l.Warn("Client could not keep up, closing stream")
					c.Render(-1, sse.Event{Event: "lagged", Data: gin.H{"reconnect": true}})
				}
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(event.Sequence, 10),
				Event: "email_event",
				Data:  event,
			})
			return true
		case now := <-ticker.C:
			c.Render(-1, sse.Event{Event: "ping", Data: gin.H{"time": now.UTC().Format(time.RFC3339)}})
			return true
		}
	})
	l.WithField("clientgone", clientGone).Debug("Client disconnected")
}

type cursorView struct {
	Folder      string `json:"folder"`
	UidValidity uint32 `json:"uid_validity"`
	LastUid     uint32 `json:"last_uid"`
}

type stateView struct {
	UserId              string        `json:"user_id"`
	Status              domain.Status `json:"status"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCheckedAt       *time.Time    `json:"last_checked_at"`
	LastError           string        `json:"last_error,omitempty"`
	Cursors             []cursorView  `json:"cursors"`
}

func toView(state *domain.MonitoringState) *stateView {
	view := &stateView{
		UserId:              state.UserId,
		Status:              state.Status,
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastError:           state.LastError,
		Cursors:             []cursorView{},
	}
	if !state.LastCheckedAt.IsZero() {
		lastChecked := state.LastCheckedAt.UTC()
		view.LastCheckedAt = &lastChecked
	}
	for _, c := range state.Cursors {
		view.Cursors = append(view.Cursors, cursorView{Folder: c.Folder, UidValidity: c.UidValidity, LastUid: c.LastUid})
	}
	sort.Slice(view.Cursors, func(i, j int) bool { return view.Cursors[i].Folder < view.Cursors[j].Folder })
	return view
}

func (g *Gateway) respond(c *gin.Context, state *domain.MonitoringState, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toView(state))
	case errors.Is(err, domain.ErrStateNotFound), errors.Is(err, domain.ErrAccountUnknown):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		g.l.WithError(err).WithField("user", c.GetString(userKey)).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (g *Gateway) status(c *gin.Context) {
	state, err := g.states.GetState(c.Request.Context(), c.GetString(userKey))
	g.respond(c, state, err)
}

func (g *Gateway) activate(c *gin.Context) {
	state, err := g.control.Activate(c.Request.Context(), c.GetString(userKey))
	g.respond(c, state, err)
}

func (g *Gateway) deactivate(c *gin.Context) {
	state, err := g.control.Deactivate(c.Request.Context(), c.GetString(userKey))
	g.respond(c, state, err)
}
