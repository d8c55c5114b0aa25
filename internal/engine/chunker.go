package engine

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceEndRe matches a sentence terminator run or a blank-line paragraph break,
// together with the whitespace that follows it.
var sentenceEndRe = regexp.MustCompile(`[.!?]+\s+|\n[ \t\r]*\n\s*`)

// Chunker splits documents into bounded, ordered chunks on natural boundaries.
type Chunker struct {
	Counter UnitCounter
	Overlap int // units repeated from the end of the previous chunk, 0 = none
}

// NewChunker returns a chunker measuring with counter (characters when nil).
func NewChunker(counter UnitCounter, overlap int) *Chunker {
	if counter == nil {
		counter = RuneCounter{}
	}
	return &Chunker{Counter: counter, Overlap: overlap}
}

type additive interface{ additive() }

// Split returns the chunk sequence for doc. Same input, same output.
func (c *Chunker) Split(doc Document, maxUnits int) ([]Chunk, error) {
	if maxUnits <= 0 {
		return nil, invalidInput("chunk", "max units must be > 0, got %d", maxUnits)
	}
	if c.Overlap < 0 || c.Overlap >= maxUnits {
		return nil, invalidInput("chunk", "overlap %d must be in [0, %d)", c.Overlap, maxUnits)
	}
	if c.Counter.Count(doc.Content) <= maxUnits {
		return []Chunk{{Text: doc.Content, Index: 0}}, nil
	}
	return c.pack(c.segments(doc.Content, maxUnits), maxUnits), nil
}

// segments cuts text into pieces that each fit in maxUnits and concatenate back to text.
func (c *Chunker) segments(text string, maxUnits int) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		if c.Counter.Count(sentence) <= maxUnits {
			out = append(out, sentence)
			continue
		}
		for _, word := range splitWords(sentence) {
			if c.Counter.Count(word) <= maxUnits {
				out = append(out, word)
				continue
			}
			out = append(out, c.hardCut(word, maxUnits)...)
		}
	}
	return out
}

// hardCut slices an unbroken span into maxUnits-sized pieces.
func (c *Chunker) hardCut(s string, maxUnits int) []string {
	var out []string
	for s != "" {
		n := c.Counter.Prefix(s, maxUnits)
		if n == 0 {
			// a single rune wider than the bound; emit it so the loop advances
			_, n = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}

// pack greedily fills chunks with consecutive segments.
func (c *Chunker) pack(segs []string, maxUnits int) []Chunk {
	_, fast := c.Counter.(additive)
	var (
		chunks   []Chunk
		cur      strings.Builder
		curSegs  []string
		curUnits int
		overlap  int
	)
	fits := func(seg string) bool {
		if fast {
			return curUnits+c.Counter.Count(seg) <= maxUnits
		}
		return c.Counter.Count(cur.String()+seg) <= maxUnits
	}
	for _, seg := range segs {
		if len(curSegs) > 0 && !fits(seg) {
			chunks = append(chunks, Chunk{Text: cur.String(), Index: len(chunks), Overlap: overlap})
			seed := c.overlapSeed(curSegs, seg, maxUnits)
			cur.Reset()
			curSegs = curSegs[:0:0]
			overlap = 0
			for _, s := range seed {
				cur.WriteString(s)
				overlap += len(s)
			}
			curSegs = append(curSegs, seed...)
			curUnits = c.Counter.Count(cur.String())
		}
		cur.WriteString(seg)
		curSegs = append(curSegs, seg)
		if fast {
			curUnits += c.Counter.Count(seg)
		}
	}
	if cur.Len() > overlap {
		chunks = append(chunks, Chunk{Text: cur.String(), Index: len(chunks), Overlap: overlap})
	}
	return chunks
}

// overlapSeed picks the trailing segments of prev to repeat at the start of the next chunk.
func (c *Chunker) overlapSeed(prev []string, next string, maxUnits int) []string {
	if c.Overlap == 0 {
		return nil
	}
	start := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		seed := strings.Join(prev[i:], "")
		if c.Counter.Count(seed) > c.Overlap || c.Counter.Count(seed+next) > maxUnits {
			break
		}
		start = i
	}
	return append([]string(nil), prev[start:]...)
}

// Reassemble concatenates chunks in order, dropping each chunk's overlap prefix.
func Reassemble(chunks []Chunk) string {
	var sb strings.Builder
	for _, ch := range chunks {
		sb.WriteString(ch.Text[ch.Overlap:])
	}
	return sb.String()
}

func splitSentences(text string) []string {
	var out []string
	prev := 0
	for _, m := range sentenceEndRe.FindAllStringIndex(text, -1) {
		out = append(out, text[prev:m[1]])
		prev = m[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}

// splitWords breaks s after each whitespace run; leading whitespace stays with the first word.
func splitWords(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && strings.TrimSpace(s[start:i]) != "" {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = false
	}
	return append(out, s[start:])
}
