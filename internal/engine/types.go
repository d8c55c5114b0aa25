package engine

// SourceKind tells where a document's text came from.
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourcePage  SourceKind = "page"
)

// Document is extracted text. Treat it as immutable once returned by Extract.
type Document struct {
	Content    string     `json:"content"`
	SourceKind SourceKind `json:"source_kind"`
	URL        string     `json:"url,omitempty"`
	VideoID    string     `json:"video_id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Truncated  bool       `json:"truncated,omitempty"` // page body hit the fetch size cap
}

// Chunk is a contiguous slice of a document.
// Overlap is the number of leading bytes of Text repeated from the previous chunk.
type Chunk struct {
	Text    string `json:"text"`
	Index   int    `json:"index"`
	Overlap int    `json:"overlap,omitempty"`
}

// Level marks a summary as an intermediate or the final result.
type Level string

const (
	LevelPartial Level = "partial"
	LevelFinal   Level = "final"
)

// Summary is model output tagged with the chunks it was derived from.
type Summary struct {
	Text         string `json:"text"`
	Level        Level  `json:"level"`
	SourceChunks []int  `json:"source_chunks,omitempty"`
}

// Transcript is a video's caption track plus the video title when known.
type Transcript struct {
	Title    string    `json:"title,omitempty"`
	Segments []Segment `json:"segments"`
}

// Segment is one timed line of a video transcript.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Strategy is the branch the orchestrator took.
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyMapReduce Strategy = "map_reduce"
)

// Stats counts the work done for one summarization request.
type Stats struct {
	ContentUnits int `json:"content_units"`
	Chunks       int `json:"chunks"`
	MapCalls     int `json:"map_calls"`
	CombineCalls int `json:"combine_calls"`
	ReducePasses int `json:"reduce_passes"`
	LLMCalls     int `json:"llm_calls"`
}

// --- MCP tool input/output ---

// ToolFailure is the structured form of a failed tool call.
type ToolFailure struct {
	Kind    Kind   `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

type SummarizeInput struct {
	URL      string `json:"url" jsonschema:"YouTube video or web page URL"`
	MaxUnits int    `json:"max_units,omitempty" jsonschema:"Max units per model call (chars or tokens, default from server config)"`
}

type SummarizeOutput struct {
	RequestID    string     `json:"request_id"`
	URL          string     `json:"url"`
	SourceKind   SourceKind `json:"source_kind"`
	VideoID      string     `json:"video_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Strategy     Strategy   `json:"strategy"`
	Summary      string     `json:"summary"`
	ContentUnits int        `json:"content_units"`
	Chunks       int        `json:"chunks"`
	ReducePasses int        `json:"reduce_passes"`
	LLMCalls     int        `json:"llm_calls"`
	Truncated    bool       `json:"truncated,omitempty" jsonschema:"Page body was cut at the fetch size limit"`

	Error *ToolFailure `json:"error,omitempty" jsonschema:"Set when the call failed"`
}

type ExtractInput struct {
	URL       string `json:"url" jsonschema:"YouTube video or web page URL"`
	MaxLength int    `json:"max_length,omitempty" jsonschema:"Max characters of content to return (default: 10000)"`
}

type ExtractOutput struct {
	URL        string     `json:"url"`
	SourceKind SourceKind `json:"source_kind"`
	VideoID    string     `json:"video_id,omitempty"`
	Title      string     `json:"title,omitempty"`
	Units      int        `json:"units"`
	Truncated  bool       `json:"truncated"`
	Content    string     `json:"content"`

	Error *ToolFailure `json:"error,omitempty" jsonschema:"Set when the call failed"`
}
