package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/tubedigest/internal/fetch"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/youtube"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxChars caps the transcript handed to the generator.
const DefaultMaxChars = 60000

const playerResponseMarker = "ytInitialPlayerResponse = "

const defaultWatchBase = "https://www.youtube.com/watch?v="

// WatchPage scrapes the public watch page for the title and caption track.
// Videos without captions fall back to the description.
type WatchPage struct {
	opts      *fetch.Options
	render    fetch.Renderer
	log       logging.Logger
	langs     []string
	maxChars  int
	watchBase string
	strip     *bluemonday.Policy
}

// Option configures a WatchPage.
type Option func(*WatchPage)

// WithFetchOptions sets the HTTP options used for the page and the caption track.
func WithFetchOptions(opts *fetch.Options) Option {
	return func(w *WatchPage) { w.opts = opts }
}

// WithRenderer enables a headless render when the plain page has no title.
func WithRenderer(r fetch.Renderer) Option {
	return func(w *WatchPage) { w.render = r }
}

// WithLogger sets the logger.
func WithLogger(log logging.Logger) Option {
	return func(w *WatchPage) { w.log = log }
}

// WithLanguages sets caption language preference, most preferred first.
func WithLanguages(langs ...string) Option {
	return func(w *WatchPage) { w.langs = langs }
}

// WithMaxChars sets the transcript length cap. Zero disables it.
func WithMaxChars(n int) Option {
	return func(w *WatchPage) { w.maxChars = n }
}

// WithWatchBase overrides the watch page prefix the video id is appended to.
func WithWatchBase(base string) Option {
	return func(w *WatchPage) { w.watchBase = base }
}

// NewWatchPage creates a watch page retriever.
func NewWatchPage(opts ...Option) *WatchPage {
	w := &WatchPage{
		opts:      fetch.DefaultOptions(),
		log:       logging.NewNop(),
		langs:     []string{"en"},
		maxChars:  DefaultMaxChars,
		watchBase: defaultWatchBase,
		strip:     bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Retrieve fetches the watch page for url and returns its title and flattened captions.
func (w *WatchPage) Retrieve(ctx context.Context, url string) (*Details, error) {
	id, err := youtube.VideoID(url)
	if err != nil {
		return nil, err
	}
	pageURL := w.watchBase + id

	res, err := fetch.URL(ctx, pageURL, w.opts)
	if err != nil {
		return nil, err
	}
	page := parsePage(res.Body)

	if page.title == "" && w.render != nil {
		w.log.Info("watch page missing title, rendering in browser", logging.String("video_id", id))
		rendered, renderErr := w.render(ctx, pageURL)
		if renderErr != nil {
			w.log.Warn("browser render failed", logging.String("video_id", id), logging.Error(renderErr))
		} else {
			page = parsePage(rendered)
		}
	}
	if page.title == "" {
		return nil, ErrNoTitle
	}

	text, err := w.captions(ctx, page)
	if err != nil {
		w.log.Warn("captions unavailable, using description",
			logging.String("video_id", id), logging.Error(err))
		text = w.clean(page.description)
	}
	if text == "" {
		return nil, ErrNoTranscript
	}
	if w.maxChars > 0 && len(text) > w.maxChars {
		text = truncate(text, w.maxChars)
	}

	return &Details{URL: url, Title: page.title, Transcript: text}, nil
}

func (w *WatchPage) captions(ctx context.Context, page watchPage) (string, error) {
	if page.player == nil {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	tracks := page.player.tracks()
	if len(tracks) == 0 {
		if s := page.player.PlayabilityStatus; s != nil && s.Status != "" && s.Status != "OK" {
			return "", fmt.Errorf("video not playable: %s %s", s.Status, s.Reason)
		}
		return "", errors.New("no caption tracks in watch page")
	}
	track := pickTrack(tracks, w.langs)

	res, err := fetch.URL(ctx, track.BaseURL, w.opts)
	if err != nil {
		return "", err
	}
	return w.parseTimedText([]byte(res.Body))
}

type watchPage struct {
	title       string
	description string
	player      *playerResponse
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	VideoDetails *struct {
		Title            string `json:"title"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (p *playerResponse) tracks() []captionTrack {
	if p.Captions == nil {
		return nil
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// parsePage reads the title, description and player response from watch page HTML.
// Title order: og:title, videoDetails.title, <title>.
func parsePage(body string) watchPage {
	var page watchPage

	if idx := strings.Index(body, playerResponseMarker); idx >= 0 {
		if raw := extractJSON([]byte(body[idx+len(playerResponseMarker):])); raw != nil {
			var pr playerResponse
			if err := json.Unmarshal(raw, &pr); err == nil {
				page.player = &pr
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		page.title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
		page.description = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
		if page.description == "" {
			page.description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
		}
	}

	if page.player != nil && page.player.VideoDetails != nil {
		if page.title == "" {
			page.title = strings.TrimSpace(page.player.VideoDetails.Title)
		}
		if d := strings.TrimSpace(page.player.VideoDetails.ShortDescription); d != "" {
			page.description = d
		}
	}

	if page.title == "" && doc != nil {
		t := strings.TrimSpace(doc.Find("title").First().Text())
		t = strings.TrimSpace(strings.TrimSuffix(t, "- YouTube"))
		page.title = t
	}
	return page
}

// pickTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then the first.
func pickTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

// timedText covers both the legacy <transcript><text> and the srv3 <timedtext><body><p> formats.
type timedText struct {
	Lines      []timedLine `xml:"text"`
	Paragraphs []timedLine `xml:"body>p"`
}

type timedLine struct {
	Text     string `xml:",chardata"`
	Segments []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

func (l timedLine) String() string {
	if len(l.Segments) == 0 {
		return l.Text
	}
	var sb strings.Builder
	sb.WriteString(l.Text)
	for _, s := range l.Segments {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func (w *WatchPage) parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range append(tt.Lines, tt.Paragraphs...) {
		text := w.clean(line.String())
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", errors.New("empty caption track")
	}
	return sb.String(), nil
}

// clean removes markup from caption text. Captions arrive entity-escaped twice
// and may carry <font> tags.
func (w *WatchPage) clean(s string) string {
	s = html.UnescapeString(s)
	s = html.UnescapeString(w.strip.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
	}
	return s[:cut]
}

// extractJSON returns the leading balanced JSON object of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
