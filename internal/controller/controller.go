// Package controller holds the page state machine: Idle, Loading, Success and
// Error, plus the form value, history list and pending notifications.
//
// Each submission takes a token. Only the response for the latest token may
// change state, so a slow response never overwrites a newer one.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/metrics"
	"github.com/jonathan/tubedigest/internal/youtube"
)

// Status is the display state.
type Status string

// Display states
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Notification titles
const (
	TitleSummaryGenerated  = "Summary Generated!"
	TitleSummarizationErr  = "Summarization Error"
	TitleLoadedFromHistory = "Loaded from History"
	TitleHistoryCleared    = "History Cleared"
	TitleStorageError      = "Storage Error"
	TitleHistoryError      = "History Error"
)

// Notification descriptions without parameters
const (
	DescHistoryCleared = "Your summary history has been cleared."
	DescHistoryReset   = "Could not load previous history. It has been reset."
	DescSaveFailed     = "Could not save history. Storage might be full or inaccessible."
	DescLoadFailed     = "Could not load history. Storage might be unavailable."
)

// DefaultErrorMessage is shown when a failure carries no message.
const DefaultErrorMessage = "Failed to generate summary. Please check the URL or try again later."

// Notification variants
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

var (
	// ErrSuperseded is returned by Submit when a newer action replaced the request.
	ErrSuperseded = errors.New("request superseded by a newer one")
	// ErrNotInHistory is returned by SelectHistoryItem for an unknown URL.
	ErrNotInHistory = errors.New("history item not found")
)

// Notification is a transient message for the user.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// View is a snapshot of the page.
type View struct {
	Status        Status                 `json:"status"`
	Result        *gateway.SummaryResult `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
	FormURL       string                 `json:"formUrl"`
	FieldError    string                 `json:"fieldError,omitempty"`
	History       []history.Item         `json:"history"`
	Notifications []Notification         `json:"notifications"`
	ScrollToTop   bool                   `json:"scrollToTop"`
}

// Loading reports whether a summary is being generated.
func (v View) Loading() bool { return v.Status == StatusLoading }

// Controller drives one page session. Safe for concurrent use.
type Controller struct {
	gw    gateway.Summarizer
	store *history.Store
	log   logging.Logger
	now   func() time.Time

	mu            sync.Mutex
	token         uint64
	status        Status
	result        *gateway.SummaryResult
	errMsg        string
	formURL       string
	fieldErr      string
	scrollToTop   bool
	notifications []Notification
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithClock sets the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller in the Idle state.
func New(gw gateway.Summarizer, store *history.Store, opts ...Option) *Controller {
	c := &Controller{
		gw:     gw,
		store:  store,
		log:    logging.NewNop(),
		now:    time.Now,
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init loads persisted history. Load problems become notifications; the
// returned error is informational and the controller stays usable.
func (c *Controller) Init(ctx context.Context) error {
	_, err := c.store.Load(ctx)
	metrics.RecordHistory("load", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
	case errors.Is(err, history.ErrHistoryReset):
		c.log.Warn("history reset after unreadable record", logging.String("key", c.store.Key()), logging.Error(err))
		c.notifyLocked(TitleHistoryError, DescHistoryReset, VariantDestructive)
	default:
		c.log.Error("history load failed", logging.String("key", c.store.Key()), logging.Error(err))
		c.notifyLocked(TitleStorageError, DescLoadFailed, VariantDestructive)
	}
	return err
}

// Submit validates url and runs the gateway.
//
// A validation failure sets the field error and leaves the display state as is.
// Otherwise the controller enters Loading, then Success or Error. If another
// Submit or SelectHistoryItem happened meanwhile, the response is dropped and
// ErrSuperseded is returned.
func (c *Controller) Submit(ctx context.Context, url string) error {
	_, err := c.Summarize(ctx, url)
	return err
}

// Summarize is Submit returning the result it displayed.
func (c *Controller) Summarize(ctx context.Context, url string) (*gateway.SummaryResult, error) {
	url = strings.TrimSpace(url)
	if err := youtube.ValidateURL(url); err != nil {
		c.mu.Lock()
		c.formURL = url
		c.fieldErr = err.Error()
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	c.token++
	token := c.token
	c.status = StatusLoading
	c.result = nil
	c.errMsg = ""
	c.fieldErr = ""
	c.formURL = url
	c.scrollToTop = false
	c.mu.Unlock()

	res, err := c.gw.Summarize(ctx, gateway.Input{YoutubeVideoURL: url})

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		metrics.RecordSuperseded()
		c.log.Info("discarding superseded response",
			logging.String("url", url),
			logging.Uint64("token", token),
			logging.Uint64("latest", c.token))
		return nil, ErrSuperseded
	}

	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = DefaultErrorMessage
		}
		c.status = StatusError
		c.errMsg = msg
		c.notifyLocked(TitleSummarizationErr, msg, VariantDestructive)
		return nil, err
	}

	result := *res
	c.status = StatusSuccess
	c.result = &result
	c.notifyLocked(TitleSummaryGenerated, fmt.Sprintf("Summary for %q is ready.", result.Title), VariantDefault)
	c.upsertLocked(ctx, history.Item{
		URL:       url,
		Title:     result.Title,
		Summary:   result.Summary,
		Timestamp: c.now().UnixMilli(),
	})
	out := result
	return &out, nil
}

// SelectHistoryItem shows a stored summary without calling the gateway and
// moves it to the front of the history.
func (c *Controller) SelectHistoryItem(ctx context.Context, url string) error {
	item, ok := c.store.Find(strings.TrimSpace(url))
	if !ok {
		return ErrNotInHistory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A pending Submit must not replace what the user just picked.
	c.token++
	c.status = StatusSuccess
	c.result = &gateway.SummaryResult{
		Title:     item.Title,
		Summary:   item.Summary,
		WatchLink: item.URL,
	}
	c.errMsg = ""
	c.fieldErr = ""
	c.formURL = item.URL
	c.scrollToTop = true

	item.Timestamp = c.now().UnixMilli()
	c.upsertLocked(ctx, item)
	c.notifyLocked(TitleLoadedFromHistory, fmt.Sprintf("Displaying summary for %q.", item.Title), VariantDefault)
	return nil
}

// ClearHistory empties the history. The display state is not touched.
func (c *Controller) ClearHistory(ctx context.Context) error {
	err := c.store.Clear(ctx)
	metrics.RecordHistory("clear", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.log.Error("history clear failed", logging.String("key", c.store.Key()), logging.Error(err))
		c.notifyLocked(TitleStorageError, DescSaveFailed, VariantDestructive)
		return err
	}
	c.notifyLocked(TitleHistoryCleared, DescHistoryCleared, VariantDefault)
	return nil
}

// View returns the current state. Pending notifications and the scroll flag
// are delivered once.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Status:        c.status,
		Error:         c.errMsg,
		FormURL:       c.formURL,
		FieldError:    c.fieldErr,
		History:       c.store.Items(),
		Notifications: c.notifications,
		ScrollToTop:   c.scrollToTop,
	}
	if c.result != nil {
		r := *c.result
		v.Result = &r
	}
	if v.Notifications == nil {
		v.Notifications = []Notification{}
	}
	c.notifications = nil
	c.scrollToTop = false
	return v
}

// History returns the stored items, newest first.
func (c *Controller) History() []history.Item {
	return c.store.Items()
}

func (c *Controller) upsertLocked(ctx context.Context, item history.Item) {
	_, err := c.store.Upsert(ctx, item)
	metrics.RecordHistory("upsert", err)
	if err != nil {
		c.log.Error("history save failed", logging.String("key", c.store.Key()), logging.Error(err))
		c.notifyLocked(TitleStorageError, DescSaveFailed, VariantDestructive)
	}
}

func (c *Controller) notifyLocked(title, description, variant string) {
	c.notifications = append(c.notifications, Notification{
		Title:       title,
		Description: description,
		Variant:     variant,
	})
}
