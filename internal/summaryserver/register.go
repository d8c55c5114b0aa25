// Package summaryserver exposes the summarization pipeline as MCP tools.
package summaryserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_summarize/internal/engine"
	"github.com/anatolykoptev/go_summarize/internal/toolutil"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 2

// RegisterTools registers summarize_url and extract_content on the given MCP server.
func RegisterTools(server *mcp.Server, p *engine.Pipeline) {
	registerSummarizeURL(server, p)
	registerExtractContent(server, p)
}

func registerSummarizeURL(server *mcp.Server, p *engine.Pipeline) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_url",
		Description: "Summarize a YouTube video (from its transcript) or a web page (from its visible text). Short content is summarized in one model call; long content is split into chunks, summarized per chunk and combined. Returns the summary plus the strategy and call counts used.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.SummarizeInput) (*mcp.CallToolResult, engine.SummarizeOutput, error) {
		return summarize(ctx, p, input)
	})
}

// errURLRequired is returned by both tools for a blank url field.
var errURLRequired = &engine.Error{Kind: engine.KindInvalidInput, Stage: "extract", Msg: "url is required"}

// failed reports err to the caller as a tool-level error carrying its kind and stage,
// both as text content and in the output's error field.
func failed(err error) (*mcp.CallToolResult, *engine.ToolFailure) {
	f := toolutil.Failure(err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: toolutil.FailureMessage(err)}},
	}, f
}

func summarize(ctx context.Context, p *engine.Pipeline, input engine.SummarizeInput) (*mcp.CallToolResult, engine.SummarizeOutput, error) {
	rawURL := toolutil.NormURL(input.URL)
	if rawURL == "" {
		res, f := failed(errURLRequired)
		return res, engine.SummarizeOutput{Error: f}, nil
	}
	req := engine.NewRequest(rawURL, toolutil.NormMaxUnits(input.MaxUnits, p.MaxUnits()))

	res, err := p.Run(ctx, req)
	if err != nil {
		if !toolutil.IsUserError(err) {
			slog.Error("summarize_url failed", slog.String("request_id", req.ID), slog.Any("error", err))
		}
		out, f := failed(err)
		return out, engine.SummarizeOutput{RequestID: req.ID, URL: rawURL, Error: f}, nil
	}
	return nil, engine.SummarizeOutput{
		RequestID:    res.RequestID,
		URL:          rawURL,
		SourceKind:   res.Document.SourceKind,
		VideoID:      res.Document.VideoID,
		Title:        res.Document.Title,
		Strategy:     res.Strategy,
		Summary:      res.Summary.Text,
		ContentUnits: res.Stats.ContentUnits,
		Chunks:       res.Stats.Chunks,
		ReducePasses: res.Stats.ReducePasses,
		LLMCalls:     res.Stats.LLMCalls,
		Truncated:    res.Document.Truncated,
	}, nil
}

func registerExtractContent(server *mcp.Server, p *engine.Pipeline) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_content",
		Description: "Extract the text that summarize_url would summarize: a YouTube transcript joined into plain text, or a web page's visible text (the <main> element when present). No model calls. Returns the text, truncated to max_length characters.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.ExtractInput) (*mcp.CallToolResult, engine.ExtractOutput, error) {
		return extract(ctx, p, input)
	})
}

func extract(ctx context.Context, p *engine.Pipeline, input engine.ExtractInput) (*mcp.CallToolResult, engine.ExtractOutput, error) {
	rawURL := toolutil.NormURL(input.URL)
	if rawURL == "" {
		res, f := failed(errURLRequired)
		return res, engine.ExtractOutput{Error: f}, nil
	}
	doc, err := p.Extractor().Extract(ctx, rawURL)
	if err != nil {
		res, f := failed(err)
		return res, engine.ExtractOutput{URL: rawURL, Error: f}, nil
	}

	limit := toolutil.NormLength(input.MaxLength)
	content := engine.TruncateRunes(doc.Content, limit, "")
	return nil, engine.ExtractOutput{
		URL:        rawURL,
		SourceKind: doc.SourceKind,
		VideoID:    doc.VideoID,
		Title:      doc.Title,
		Units:      p.Counter().Count(doc.Content),
		Truncated:  doc.Truncated || len(content) < len(doc.Content),
		Content:    content,
	}, nil
}
