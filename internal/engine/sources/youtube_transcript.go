package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_summarize/internal/engine"
)

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// viaPageScrape scrapes the watch page HTML and follows the caption track XML
// URL found in ytInitialPlayerResponse. Works from any IP.
func (y *YouTube) viaPageScrape(ctx context.Context, videoID string) (engine.Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.WatchURL+videoID, nil)
	if err != nil {
		return engine.Transcript{}, err
	}
	req.Header.Set("User-Agent", engine.RandomUserAgent())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	body, err := y.doRequest(req, maxWatchPageBytes)
	if err != nil {
		return engine.Transcript{}, err
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return engine.Transcript{}, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "ytInitialPlayerResponse not found in watch page"}
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return engine.Transcript{}, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "failed to extract ytInitialPlayerResponse JSON"}
	}

	var pr playerResp
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return engine.Transcript{}, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "decode ytInitialPlayerResponse", Err: err}
	}
	return y.fromPlayer(ctx, pr)
}

// viaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func (y *YouTube) viaPlayer(ctx context.Context, videoID string) (engine.Transcript, error) {
	data, err := y.postPlayer(ctx, videoID)
	if err != nil {
		return engine.Transcript{}, err
	}
	var pr playerResp
	if err := json.Unmarshal(data, &pr); err != nil {
		return engine.Transcript{}, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "decode player response", Err: err}
	}
	return y.fromPlayer(ctx, pr)
}

// fromPlayer picks a caption track from a player response and downloads it.
func (y *YouTube) fromPlayer(ctx context.Context, pr playerResp) (engine.Transcript, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return engine.Transcript{}, unavailable("captions unavailable: %s", pr.PlayabilityStatus.Reason)
		}
		return engine.Transcript{}, unavailable("transcripts are disabled for this video")
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return engine.Transcript{}, unavailable("no caption tracks")
	}
	track, ok := pickBestTrack(tracks, y.Langs)
	if !ok {
		return engine.Transcript{}, unavailable("all caption tracks require PoToken")
	}
	segs, err := y.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return engine.Transcript{}, err
	}
	tr := engine.Transcript{Segments: segs}
	if pr.VideoDetails != nil {
		tr.Title = pr.VideoDetails.Title
	}
	return tr, nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken; those only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText fetches and parses a timedtext XML caption URL.
func (y *YouTube) fetchTimedText(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "bad caption track URL", Err: err}
	}
	req.Header.Set("User-Agent", engine.RandomUserAgent())

	body, err := y.doRequest(req, maxTimedTextBytes)
	if err != nil {
		return nil, err
	}
	segs, err := parseTimedText(body)
	if err != nil {
		return nil, &engine.Error{Kind: engine.KindParse, Stage: "transcript", Msg: "parse timedtext XML", Err: err}
	}
	if len(segs) == 0 {
		return nil, unavailable("caption track is empty")
	}
	return segs, nil
}

// parseTimedText decodes <transcript><text start=".." dur="..">..</text></transcript>.
// Captions arrive double-escaped ("&amp;#39;"), hence the extra unescape.
func parseTimedText(body []byte) ([]engine.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, err
	}
	segs := make([]engine.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanHTML(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		segs = append(segs, engine.Segment{Text: text, Start: start, Duration: dur})
	}
	return segs, nil
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
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

// describe is used in log lines.
func describe(segs []engine.Segment) string {
	if len(segs) == 0 {
		return "empty"
	}
	last := segs[len(segs)-1]
	return fmt.Sprintf("%d segments, %.0fs", len(segs), last.Start+last.Duration)
}
