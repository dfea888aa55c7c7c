// Package transcript retrieves the title and transcript of a YouTube video.
package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/tubedigest/internal/logging"
)

// Details is what a retriever knows about a video.
type Details struct {
	URL        string `json:"url,omitempty"`
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
}

// Errors returned by WatchPage.
var (
	ErrNoTitle      = errors.New("video title not found on watch page")
	ErrNoTranscript = errors.New("no captions or description available")
)

// Retriever is the first step of a summarization.
type Retriever interface {
	Retrieve(ctx context.Context, url string) (*Details, error)
}

// PlaceholderTranscript is the fixed transcript returned by Placeholder.
const PlaceholderTranscript = "This is a dummy transcript for demonstration purposes. " +
	"It provides a summary of the key points discussed in the video."

// Placeholder returns fixed demonstration content without any network access.
type Placeholder struct {
	Log logging.Logger
}

// Retrieve returns a title derived from url and PlaceholderTranscript.
func (p Placeholder) Retrieve(ctx context.Context, url string) (*Details, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Log != nil {
		p.Log.Debug("retrieving placeholder transcript", logging.String("url", url))
	}
	return &Details{
		URL:        url,
		Title:      fmt.Sprintf("Dummy Title for %s", url),
		Transcript: PlaceholderTranscript,
	}, nil
}
