package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_summarize/internal/engine"
)

// YouTube implementation is split across three files by responsibility:
//   youtube.go            the transcript service and its fallback order
//   youtube_innertube.go  Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go watch page scrape, ANDROID player, timedtext parsing

// YouTube fetches video transcripts. It satisfies engine.TranscriptService.
// The URL fields exist so tests can point the client at a local server.
type YouTube struct {
	Client    *http.Client
	Langs     []string // preferred caption languages, in order
	WatchURL  string   // watch page prefix, the video ID is appended
	PlayerURL string   // Innertube /player endpoint
}

// NewYouTube returns a transcript service using client and the preferred languages.
func NewYouTube(client *http.Client, langs []string) *YouTube {
	if client == nil {
		client = http.DefaultClient
	}
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &YouTube{
		Client:    client,
		Langs:     langs,
		WatchURL:  ytWatchURL,
		PlayerURL: ytInnertubeURL,
	}
}

// Fetch returns the transcript of videoID.
// Primary:  scrape watch page ytInitialPlayerResponse → caption XML
// Fallback: ANDROID Innertube /player → captionTracks
//
// When either path reports missing captions that verdict wins over a network failure.
func (y *YouTube) Fetch(ctx context.Context, videoID string) (engine.Transcript, error) {
	engine.IncrTranscriptRequests()

	tr, scrapeErr := y.viaPageScrape(ctx, videoID)
	if scrapeErr == nil {
		slog.Debug("youtube: transcript via watch page", slog.String("id", videoID), slog.String("got", describe(tr.Segments)))
		return tr, nil
	}
	slog.Warn("youtube: page scrape failed, trying player",
		slog.String("id", videoID), slog.Any("err", scrapeErr))

	tr, playerErr := y.viaPlayer(ctx, videoID)
	if playerErr == nil {
		slog.Debug("youtube: transcript via player", slog.String("id", videoID), slog.String("got", describe(tr.Segments)))
		return tr, nil
	}
	engine.IncrTranscriptErrors()
	slog.Warn("youtube: player failed",
		slog.String("id", videoID), slog.Any("err", playerErr))

	switch {
	case engine.KindOf(playerErr) == engine.KindTranscriptUnavailable:
		return engine.Transcript{}, playerErr
	case engine.KindOf(scrapeErr) == engine.KindTranscriptUnavailable:
		return engine.Transcript{}, scrapeErr
	}
	return engine.Transcript{}, playerErr
}

func unavailable(format string, args ...any) error {
	return &engine.Error{
		Kind:  engine.KindTranscriptUnavailable,
		Stage: "transcript",
		Msg:   fmt.Sprintf(format, args...),
	}
}
