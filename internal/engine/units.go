package engine

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// UnitCounter measures text in the unit used to bound chunks and prompts.
type UnitCounter interface {
	Count(s string) int
	// Prefix returns the byte length of the longest prefix of s holding at most n units.
	// It always ends on a rune boundary.
	Prefix(s string, n int) int
}

// RuneCounter counts characters (Unicode code points).
type RuneCounter struct{}

func (RuneCounter) Count(s string) int { return utf8.RuneCountInString(s) }

// additive marks counters where Count(a+b) == Count(a)+Count(b).
func (RuneCounter) additive() {}

func (RuneCounter) Prefix(s string, n int) int {
	if n <= 0 {
		return 0
	}
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}

const defaultEncoding = "cl100k_base"

// TokenCounter counts model tokens with a tiktoken BPE encoding.
type TokenCounter struct {
	encoding string
	mu       sync.Mutex
	tke      *tiktoken.Tiktoken
}

// NewTokenCounter loads the encoding by name, or by model name when that fails.
func NewTokenCounter(modelOrEncoding string) (*TokenCounter, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		var modelErr error
		tke, modelErr = tiktoken.EncodingForModel(modelOrEncoding)
		if modelErr != nil {
			return nil, fmt.Errorf("tiktoken %q: %w", modelOrEncoding, err)
		}
	}
	return &TokenCounter{encoding: modelOrEncoding, tke: tke}, nil
}

func (tc *TokenCounter) encode(s string) []int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.tke.Encode(s, nil, nil)
}

func (tc *TokenCounter) Count(s string) int {
	return len(tc.encode(s))
}

func (tc *TokenCounter) Prefix(s string, n int) int {
	if n <= 0 {
		return 0
	}
	toks := tc.encode(s)
	if len(toks) <= n {
		return len(s)
	}
	tc.mu.Lock()
	head := tc.tke.Decode(toks[:n])
	tc.mu.Unlock()
	end := min(len(head), len(s))
	for end > 0 && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	// a cut inside a merged token can re-encode to more than n tokens
	for end > 0 && tc.Count(s[:end]) > n {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return end
}

// NewUnitCounter returns the counter for a Config.Unit value.
func NewUnitCounter(unit, encoding string) (UnitCounter, error) {
	switch unit {
	case "", UnitChars:
		return RuneCounter{}, nil
	case UnitTokens:
		return NewTokenCounter(encoding)
	}
	return nil, fmt.Errorf("unknown unit %q", unit)
}
