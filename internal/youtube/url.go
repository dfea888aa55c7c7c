// Package youtube validates YouTube video URLs and extracts video IDs.
package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind classifies why a URL was rejected.
type Kind string

// Rejection kinds
const (
	KindEmpty      Kind = "empty"
	KindMalformed  Kind = "malformed"
	KindNotYouTube Kind = "not_youtube"
)

// User-facing messages for each rejection kind.
const (
	MsgEmpty      = "YouTube URL cannot be empty."
	MsgMalformed  = "Please enter a valid URL."
	MsgNotYouTube = "Please enter a valid YouTube video URL (e.g., youtube.com/watch?v=... or youtu.be/...)."
)

// ValidationError is returned when a string is not an acceptable YouTube video URL.
type ValidationError struct {
	Kind    Kind
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationTag is the go-playground validator tag registered by RegisterValidation.
const ValidationTag = "youtube_url"

// videoURLPattern accepts youtube.com/watch?v=<id> (v first, further params after &)
// and youtu.be/<id>, lower-case hosts only.
var videoURLPattern = regexp.MustCompile(`^https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([\w-]+)(?:&.*)?$`)

// ValidateURL reports whether s is a YouTube watch URL or a youtu.be short link.
// It performs no network access.
func ValidateURL(s string) error {
	_, err := VideoID(s)
	return err
}

// VideoID returns the video ID of a valid YouTube URL. Surrounding whitespace is ignored.
func VideoID(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", &ValidationError{Kind: KindEmpty, Input: s, Message: MsgEmpty}
	}

	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ValidationError{Kind: KindMalformed, Input: s, Message: MsgMalformed}
	}

	m := videoURLPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", notYouTube(s)
	}
	return m[1], nil
}

func notYouTube(s string) error {
	return &ValidationError{Kind: KindNotYouTube, Input: s, Message: MsgNotYouTube}
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// RegisterValidation adds the youtube_url tag to v.
func RegisterValidation(v *validator.Validate) error {
	if err := v.RegisterValidation(ValidationTag, func(fl validator.FieldLevel) bool {
		return ValidateURL(fl.Field().String()) == nil
	}); err != nil {
		return fmt.Errorf("register %s validation: %w", ValidationTag, err)
	}
	return nil
}

// NewValidator returns a validator with the youtube_url tag registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails on an empty tag or nil func.
	_ = RegisterValidation(v)
	return v
}
