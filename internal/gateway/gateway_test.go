package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/tubedigest/internal/llm"
	"github.com/jonathan/tubedigest/internal/transcript"
	"github.com/jonathan/tubedigest/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrieverFunc func(ctx context.Context, url string) (*VideoDetails, error)

func (f retrieverFunc) Retrieve(ctx context.Context, url string) (*VideoDetails, error) {
	return f(ctx, url)
}

type generatorFunc func(ctx context.Context, d VideoDetails) (*Generated, error)

func (f generatorFunc) Generate(ctx context.Context, d VideoDetails) (*Generated, error) {
	return f(ctx, d)
}

func staticGenerator(summary string) generatorFunc {
	return func(context.Context, VideoDetails) (*Generated, error) {
		return &Generated{Summary: summary}, nil
	}
}

func TestSummarize_PlaceholderScenario(t *testing.T) {
	g, err := New(staticGenerator("S"))
	require.NoError(t, err)

	url := "https://www.youtube.com/watch?v=abc123"
	res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: url})
	require.NoError(t, err)
	assert.Equal(t, "Dummy Title for "+url, res.Title)
	assert.Equal(t, "S", res.Summary)
	assert.Equal(t, url, res.WatchLink)
}

func TestSummarize_WatchLinkIdentity(t *testing.T) {
	urls := []string{
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ&t=10",
		"http://youtube.com/watch?v=a-b_c&t=10s",
		"https://www.youtube.com/watch?v=xyz&list=PL1",
	}
	g, err := New(staticGenerator("summary"), WithCacheSize(0))
	require.NoError(t, err)

	for _, url := range urls {
		t.Run(url, func(t *testing.T) {
			res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: url})
			require.NoError(t, err)
			assert.Equal(t, url, res.WatchLink)
		})
	}
}

func TestSummarize_InvalidInput(t *testing.T) {
	var called atomic.Bool
	gen := generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
		called.Store(true)
		return &Generated{Summary: "x"}, nil
	})
	g, err := New(gen)
	require.NoError(t, err)

	for _, in := range []string{"", "not-a-url", "https://vimeo.com/123"} {
		_, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: in})
		var ve *youtube.ValidationError
		require.ErrorAs(t, err, &ve, in)
		assert.NotErrorIs(t, err, ErrSummarizationFailed)
	}
	assert.False(t, called.Load(), "generator must not run for invalid input")
}

func TestSummarize_FailuresAreMasked(t *testing.T) {
	secret := errors.New("upstream 503 with api key sk-123")
	tests := []struct {
		name      string
		retriever Retriever
		generator Generator
		step      string
	}{
		{
			name: "retriever error",
			retriever: retrieverFunc(func(context.Context, string) (*VideoDetails, error) {
				return nil, secret
			}),
			generator: staticGenerator("x"),
			step:      StepRetrieve,
		},
		{
			name: "retriever nil details",
			retriever: retrieverFunc(func(context.Context, string) (*VideoDetails, error) {
				return nil, nil
			}),
			generator: staticGenerator("x"),
			step:      StepRetrieve,
		},
		{
			name:      "generator error",
			retriever: transcript.Placeholder{},
			generator: generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
				return nil, secret
			}),
			step: StepGenerate,
		},
		{
			name:      "empty summary",
			retriever: transcript.Placeholder{},
			generator: staticGenerator("   "),
			step:      StepValidate,
		},
		{
			name: "no title anywhere",
			retriever: retrieverFunc(func(context.Context, string) (*VideoDetails, error) {
				return &VideoDetails{Transcript: "t"}, nil
			}),
			generator: staticGenerator("s"),
			step:      StepValidate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.generator, WithRetriever(tt.retriever))
			require.NoError(t, err)

			res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/abc"})
			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSummarizationFailed)
			assert.Equal(t, MsgSummarizationFailed, err.Error())

			var fe *FailureError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.step, fe.Step)
		})
	}
}

func TestSummarize_ModelTitleFallback(t *testing.T) {
	r := retrieverFunc(func(context.Context, string) (*VideoDetails, error) {
		return &VideoDetails{Transcript: "t"}, nil
	})
	gen := generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
		return &Generated{Title: "Model Title", Summary: "s"}, nil
	})
	g, err := New(gen, WithRetriever(r))
	require.NoError(t, err)

	res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/abc"})
	require.NoError(t, err)
	assert.Equal(t, "Model Title", res.Title)
}

func TestSummarize_RetrievedTitleWins(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, d VideoDetails) (*Generated, error) {
		assert.Equal(t, "https://youtu.be/abc", d.URL)
		return &Generated{Title: "Invented", Summary: "s"}, nil
	})
	g, err := New(gen)
	require.NoError(t, err)

	res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/abc"})
	require.NoError(t, err)
	assert.Equal(t, "Dummy Title for https://youtu.be/abc", res.Title)
}

func TestSummarize_Timeout(t *testing.T) {
	r := retrieverFunc(func(ctx context.Context, _ string) (*VideoDetails, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g, err := New(staticGenerator("s"), WithRetriever(r), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, ErrSummarizationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSummarize_CachesResults(t *testing.T) {
	var calls atomic.Int32
	gen := generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
		calls.Add(1)
		return &Generated{Summary: "s"}, nil
	})
	g, err := New(gen, WithCacheSize(4))
	require.NoError(t, err)

	in := Input{YoutubeVideoURL: "https://youtu.be/abc"}
	first, err := g.Summarize(context.Background(), in)
	require.NoError(t, err)
	second, err := g.Summarize(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	// Results are values; mutating one does not change the cache.
	first.Summary = "mutated"
	third, err := g.Summarize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "s", third.Summary)

	g.Purge()
	_, err = g.Summarize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSummarize_FailuresNotCached(t *testing.T) {
	var calls atomic.Int32
	gen := generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return &Generated{Summary: "s"}, nil
	})
	g, err := New(gen)
	require.NoError(t, err)

	in := Input{YoutubeVideoURL: "https://youtu.be/abc"}
	_, err = g.Summarize(context.Background(), in)
	require.Error(t, err)
	res, err := g.Summarize(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "s", res.Summary)
}

func TestSummarize_ConcurrentCallsShareWork(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	gen := generatorFunc(func(context.Context, VideoDetails) (*Generated, error) {
		calls.Add(1)
		<-release
		return &Generated{Summary: "s"}, nil
	})
	g, err := New(gen, WithCacheSize(0))
	require.NoError(t, err)

	const n = 5
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(n)
	results := make([]*SummaryResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/same"})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(n))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "https://youtu.be/same", r.WatchLink)
	}
}

func TestSummarize_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	var runErr atomic.Value
	gen := generatorFunc(func(ctx context.Context, _ VideoDetails) (*Generated, error) {
		once.Do(func() { close(entered) })
		<-release
		if err := ctx.Err(); err != nil {
			runErr.Store(err)
			return nil, err
		}
		return &Generated{Summary: "s"}, nil
	})
	g, err := New(gen, WithCacheSize(0))
	require.NoError(t, err)
	const url = "https://youtu.be/same"

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan error, 1)
	go func() {
		_, err := g.Summarize(ctxA, Input{YoutubeVideoURL: url})
		doneA <- err
	}()
	<-entered

	type outcome struct {
		res *SummaryResult
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: url})
		doneB <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	errA := <-doneA
	assert.ErrorIs(t, errA, ErrSummarizationFailed)
	assert.ErrorIs(t, errA, context.Canceled)

	close(release)
	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, url, b.res.WatchLink)
	assert.Nil(t, runErr.Load(), "shared run must not see the first caller's cancellation")
}

func TestSummarize_TrimsInput(t *testing.T) {
	g, err := New(staticGenerator("s"))
	require.NoError(t, err)

	res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "  https://youtu.be/abc \n"})
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc", res.WatchLink)
}

func TestNew_RequiresGenerator(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestSummarize_WithLLMGenerator(t *testing.T) {
	gen, err := NewLLMGenerator(llm.NewPlaceholderClient(nil))
	require.NoError(t, err)
	g, err := New(gen)
	require.NoError(t, err)

	res, err := g.Summarize(context.Background(), Input{YoutubeVideoURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	assert.Equal(t, "Dummy Title for https://youtu.be/abc123", res.Title)
	assert.Equal(t, transcript.PlaceholderTranscript, res.Summary)
	assert.Equal(t, "https://youtu.be/abc123", res.WatchLink)
}
