// Package gateway turns a YouTube URL into a summary in two steps: retrieve the
// video's title and transcript, then generate a summary from them.
//
// Summarize returns either a complete SummaryResult or an error. Input errors are
// *youtube.ValidationError; every other failure reads MsgSummarizationFailed and
// matches ErrSummarizationFailed.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/metrics"
	"github.com/jonathan/tubedigest/internal/schemas"
	"github.com/jonathan/tubedigest/internal/transcript"
	"github.com/jonathan/tubedigest/internal/youtube"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds one Summarize call.
const DefaultTimeout = 60 * time.Second

// DefaultCacheSize is the number of results kept in memory.
const DefaultCacheSize = 128

// Input is the gateway request.
type Input struct {
	YoutubeVideoURL string `json:"youtubeVideoUrl" validate:"required,youtube_url"`
}

// SummaryResult is a completed summary. WatchLink is always the submitted URL.
type SummaryResult struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	WatchLink string `json:"watchLink"`
}

// VideoDetails is the output of the retrieve step.
type VideoDetails = transcript.Details

// Retriever is the retrieve step.
type Retriever = transcript.Retriever

// Generated is the output of the generate step.
type Generated struct {
	Title   string
	Summary string
}

// Generator is the generate step.
type Generator interface {
	Generate(ctx context.Context, details VideoDetails) (*Generated, error)
}

// Summarizer is implemented by Gateway.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (*SummaryResult, error)
}

// Gateway composes a Retriever and a Generator.
type Gateway struct {
	retriever Retriever
	generator Generator
	timeout   time.Duration
	cache     *lru.Cache[string, SummaryResult]
	group     singleflight.Group
	log       logging.Logger
}

// Option configures a Gateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	retriever Retriever
	timeout   time.Duration
	cacheSize int
	log       logging.Logger
}

// WithRetriever replaces the placeholder retriever.
func WithRetriever(r Retriever) Option {
	return func(o *gatewayOptions) { o.retriever = r }
}

// WithTimeout sets the per-call timeout. Zero or less uses DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) { o.timeout = d }
}

// WithCacheSize sets the result cache size. Zero or less disables caching.
func WithCacheSize(n int) Option {
	return func(o *gatewayOptions) { o.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(o *gatewayOptions) { o.log = log }
}

// New creates a gateway around generator.
func New(generator Generator, opts ...Option) (*Gateway, error) {
	if generator == nil {
		return nil, errors.New("gateway: generator is required")
	}
	o := gatewayOptions{
		timeout:   DefaultTimeout,
		cacheSize: DefaultCacheSize,
		log:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retriever == nil {
		o.retriever = transcript.Placeholder{Log: o.log}
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}

	g := &Gateway{
		retriever: o.retriever,
		generator: generator,
		timeout:   o.timeout,
		log:       o.log,
	}
	if o.cacheSize > 0 {
		cache, err := lru.New[string, SummaryResult](o.cacheSize)
		if err != nil {
			return nil, err
		}
		g.cache = cache
	}
	return g, nil
}

// Summarize validates in, then retrieves and generates. Concurrent calls for the
// same URL share one execution. The shared run is bounded by the gateway timeout
// only, so one caller going away does not fail the others; each caller still
// stops waiting when its own ctx is done.
func (g *Gateway) Summarize(ctx context.Context, in Input) (*SummaryResult, error) {
	url := strings.TrimSpace(in.YoutubeVideoURL)
	if err := youtube.ValidateURL(url); err != nil {
		metrics.RecordSummarize(metrics.OutcomeInvalid)
		return nil, err
	}

	if g.cache != nil {
		if cached, ok := g.cache.Get(url); ok {
			metrics.RecordSummarize(metrics.OutcomeCacheHit)
			g.log.Debug("summary cache hit", logging.String("url", url))
			return &cached, nil
		}
	}

	runCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(url, func() (any, error) {
		return g.run(runCtx, url)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: &FailureError{Step: StepWait, Cause: ctx.Err()}}
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		metrics.RecordSummarize(metrics.OutcomeError)
		var fe *FailureError
		if errors.As(err, &fe) {
			g.log.Error("summarization failed",
				logging.String("url", url),
				logging.String("step", fe.Step),
				logging.Error(fe.Cause))
		}
		return nil, err
	}
	metrics.RecordSummarize(metrics.OutcomeSuccess)

	result := v.(SummaryResult)
	if shared {
		g.log.Debug("summary shared with concurrent request", logging.String("url", url))
	}
	return &result, nil
}

func (g *Gateway) run(ctx context.Context, url string) (SummaryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	details, err := g.retriever.Retrieve(ctx, url)
	metrics.RecordStep(StepRetrieve, time.Since(start).Seconds())
	if err != nil {
		return SummaryResult{}, &FailureError{Step: StepRetrieve, Cause: err}
	}
	if details == nil {
		return SummaryResult{}, &FailureError{Step: StepRetrieve, Cause: errors.New("retriever returned no details")}
	}
	in := *details
	if in.URL == "" {
		in.URL = url
	}

	start = time.Now()
	generated, err := g.generator.Generate(ctx, in)
	metrics.RecordStep(StepGenerate, time.Since(start).Seconds())
	if err != nil {
		return SummaryResult{}, &FailureError{Step: StepGenerate, Cause: err}
	}
	if generated == nil {
		return SummaryResult{}, &FailureError{Step: StepGenerate, Cause: errors.New("generator returned no output")}
	}

	// The retrieved title wins; the model's title is only a fallback.
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSpace(generated.Title)
	}
	result := SummaryResult{
		Title:     title,
		Summary:   strings.TrimSpace(generated.Summary),
		WatchLink: url,
	}
	if err := validateResult(result); err != nil {
		return SummaryResult{}, &FailureError{Step: StepValidate, Cause: err}
	}

	if g.cache != nil {
		g.cache.Add(url, result)
	}
	g.log.Info("summary generated",
		logging.String("url", url),
		logging.Int("summary_chars", len(result.Summary)))
	return result, nil
}

func validateResult(r SummaryResult) error {
	if r.Title == "" {
		return errors.New("empty title")
	}
	if r.Summary == "" {
		return errors.New("empty summary")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return schemas.Validate(schemas.SummaryResult, data)
}

// Purge drops all cached results.
func (g *Gateway) Purge() {
	if g.cache != nil {
		g.cache.Purge()
	}
}
