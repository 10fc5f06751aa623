package repository

import (
	"fmt"
	"time"

	"github.com/kolide/trustdb/trust"
)

// EventType classifies what a Scheduler reports through its
// NotificationHandler.
type EventType int

const (
	// InfoType indicates a routine refresh event.
	InfoType EventType = iota
	// ErrorType indicates a refresh cycle failed.
	ErrorType
)

// Event is one entry in a refresh cycle's history.
type Event struct {
	Time        time.Time
	Description string
	Type        EventType
}

// Events collects everything that happened during one Scheduler tick.
type Events struct {
	History []Event
}

func (e *Events) push(t EventType, format string, args ...interface{}) {
	e.History = append(e.History, Event{time.Now(), fmt.Sprintf(format, args...), t})
}

// NotificationHandler is invoked after each refresh cycle with its Events.
type NotificationHandler func(Events)

const defaultCheckFrequency = 1 * time.Hour
const minimumCheckFrequency = 10 * time.Minute

// ErrCheckFrequency is returned when a Scheduler is configured with too
// small a refresh interval.
var ErrCheckFrequency = fmt.Errorf("refresh frequency must be %s or greater", minimumCheckFrequency)

// Scheduler periodically calls a Fetcher against a live trust.Database.
// It stops at refreshing trust: resolving what a trusted description says
// about a target, and acting on it, stays with the caller.
type Scheduler struct {
	fetcher        *Fetcher
	db             *trust.Database
	checkFrequency time.Duration
	notify         NotificationHandler

	ticker *time.Ticker
	done   chan struct{}
}

// Option configures a Scheduler.
type Option func() interface{}

type frequencyOption time.Duration

// WithFrequency overrides the default one-hour refresh interval. The
// minimum accepted frequency is 10 minutes.
func WithFrequency(d time.Duration) Option {
	return func() interface{} { return frequencyOption(d) }
}

type notifyOption NotificationHandler

// WithNotifications registers a callback invoked after every refresh cycle.
func WithNotifications(h NotificationHandler) Option {
	return func() interface{} { return notifyOption(h) }
}

// NewScheduler builds a Scheduler that refreshes db via fetcher.
func NewScheduler(fetcher *Fetcher, db *trust.Database, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		fetcher:        fetcher,
		db:             db,
		checkFrequency: defaultCheckFrequency,
	}
	for _, opt := range opts {
		switch t := opt().(type) {
		case frequencyOption:
			s.checkFrequency = time.Duration(t)
		case notifyOption:
			s.notify = NotificationHandler(t)
		}
	}
	if s.checkFrequency < minimumCheckFrequency {
		return nil, ErrCheckFrequency
	}
	return s, nil
}

// Start begins periodic refreshing in a background goroutine.
func (s *Scheduler) Start() {
	s.ticker = time.NewTicker(s.checkFrequency)
	s.done = make(chan struct{})
	go s.run()
}

// Stop halts periodic refreshing.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.done != nil {
		s.done <- struct{}{}
	}
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) tick() {
	var events Events
	defer func() {
		if s.notify != nil {
			s.notify(events)
		}
	}()

	events.push(InfoType, "starting refresh")
	updated, err := s.fetcher.Refresh(s.db)
	if err != nil {
		events.push(ErrorType, "refresh failed: %s", err)
		return
	}
	events.push(InfoType, "refresh complete, updated roles: %v", updated)
}
