package engine

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// TranscriptService returns the ordered transcript of a video.
// Implementations report missing captions as TranscriptUnavailable and
// transport failures as FetchError.
type TranscriptService interface {
	Fetch(ctx context.Context, videoID string) (Transcript, error)
}

// Extractor turns a URL into a Document.
type Extractor struct {
	client       *http.Client
	transcripts  TranscriptService
	cache        *DocCache
	fetchTimeout time.Duration
	fetchRetries int
	maxBodyBytes int64
}

// NewExtractor builds an extractor from c. The document cache is created here.
func NewExtractor(c Config) *Extractor {
	c = c.withDefaults()
	return &Extractor{
		client:       c.HTTPClient,
		transcripts:  c.Transcripts,
		cache:        NewDocCache(c.RedisURL, c.CacheTTL, c.CacheMaxEntries),
		fetchTimeout: c.FetchTimeout,
		fetchRetries: c.FetchRetries,
		maxBodyBytes: c.MaxBodyBytes,
	}
}

// Extract fetches the transcript of a video URL or the visible text of a web page.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Document, error) {
	metrics.ExtractRequests.Add(1)
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Document{}, invalidInput("extract", "url is required")
	}

	key := CacheKey("doc", rawURL)
	if doc, ok := e.cache.Get(ctx, key); ok {
		return doc, nil
	}

	var (
		doc Document
		err error
	)
	err = TrackOperation(ctx, "extract", func(ctx context.Context) error {
		if id, ok := VideoID(rawURL); ok {
			doc, err = e.extractVideo(ctx, rawURL, id)
		} else {
			doc, err = e.extractPage(ctx, rawURL)
		}
		return err
	})
	if err != nil {
		return Document{}, err
	}
	e.cache.Set(ctx, key, doc)
	return doc, nil
}

func (e *Extractor) extractVideo(ctx context.Context, rawURL, videoID string) (Document, error) {
	if e.transcripts == nil {
		return Document{}, &Error{Kind: KindTranscriptUnavailable, Stage: "extract", Msg: "no transcript service configured"}
	}
	tr, err := e.transcripts.Fetch(ctx, videoID)
	if err != nil {
		slog.Debug("extract: transcript failed", slog.String("video_id", videoID), slog.Any("error", err))
		return Document{}, WithStage("extract", classifyTranscriptErr(err))
	}
	text := JoinSegments(tr.Segments)
	if text == "" {
		return Document{}, &Error{Kind: KindTranscriptUnavailable, Stage: "extract", Msg: "transcript is empty"}
	}
	return Document{Content: text, SourceKind: SourceVideo, URL: rawURL, VideoID: videoID, Title: tr.Title}, nil
}

// classifyTranscriptErr keeps typed errors and treats anything else as a fetch failure.
func classifyTranscriptErr(err error) error {
	if KindOf(err) != "" {
		return err
	}
	return WrapFetch("extract", err)
}

func (e *Extractor) extractPage(ctx context.Context, rawURL string) (Document, error) {
	u, err := ValidatePageURL(rawURL)
	if err != nil {
		return Document{}, err
	}
	if e.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
	}

	p, err := fetchPage(ctx, e.client, u.String(), e.maxBodyBytes, e.fetchRetries)
	if err != nil {
		return Document{}, WithStage("extract", err)
	}
	title, text, err := ExtractPageText(p.body, p.contentType)
	if err != nil {
		return Document{}, err
	}
	return Document{Content: text, SourceKind: SourcePage, URL: rawURL, Title: title, Truncated: p.truncated}, nil
}

// JoinSegments joins transcript segment texts with single spaces, skipping blank ones.
func JoinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
