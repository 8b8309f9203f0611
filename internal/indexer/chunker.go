// Package indexer splits extracted document text into chunks and stores them, embedded,
// for retrieval augmentation.
package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Chunking strategies.
const (
	StrategyFixed     = "fixed"
	StrategyParagraph = "paragraph"
	StrategySentence  = "sentence"
)

// ChunkOptions bounds chunk sizes. Sizes are counted in runes.
type ChunkOptions struct {
	MaxSize  int
	Overlap  int
	Strategy string
}

// Validate rejects options that could never terminate or produce a chunk.
func (o ChunkOptions) Validate() error {
	if o.MaxSize <= 0 {
		return models.NewConfigurationError("max_size", "must be positive, got %d", o.MaxSize)
	}
	if o.Overlap < 0 {
		return models.NewConfigurationError("overlap", "cannot be negative, got %d", o.Overlap)
	}
	if o.Overlap >= o.MaxSize {
		return models.NewConfigurationError("overlap", "must be smaller than max_size (%d >= %d)", o.Overlap, o.MaxSize)
	}
	switch o.Strategy {
	case StrategyFixed, StrategyParagraph, StrategySentence:
		return nil
	default:
		return models.NewConfigurationError("strategy", "unknown chunking strategy %q", o.Strategy)
	}
}

// Chunker splits text into bounded, overlapping chunks.
type Chunker struct {
	opts ChunkOptions
}

// NewChunker validates opts and returns a chunker.
func NewChunker(opts ChunkOptions) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// Options returns the chunker's options.
func (c *Chunker) Options() ChunkOptions {
	return c.opts
}

// Chunk validates opts and splits text. See Chunker.Chunk.
func Chunk(text string, opts ChunkOptions) ([]models.DocumentChunk, error) {
	c, err := NewChunker(opts)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text, nil), nil
}

// Chunk splits text with the configured strategy. Every chunk's metadata is a copy of base
// plus chunk_index, total_chunks, chunk_strategy and the rune span [start_pos, end_pos)
// of the chunk within text. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string, base models.Metadata) []models.DocumentChunk {
	runes := []rune(text)
	var spans []span
	switch c.opts.Strategy {
	case StrategyFixed:
		spans = fixedSpans(runes, 0, len(runes), c.opts.MaxSize, c.opts.Overlap, false)
	case StrategyParagraph:
		spans = c.pack(runes, paragraphUnits(runes), 2)
	case StrategySentence:
		spans = c.pack(runes, sentenceUnits(runes), 1)
	}

	chunks := make([]models.DocumentChunk, 0, len(spans))
	for i, sp := range spans {
		md := base.Clone()
		md[models.MetaChunkIndex] = i
		md[models.MetaTotalChunks] = len(spans)
		md[models.MetaChunkStrategy] = c.opts.Strategy
		md[models.MetaStartPos] = sp.start
		md[models.MetaEndPos] = sp.end
		chunks = append(chunks, models.DocumentChunk{ChunkID: i, Content: sp.text, Metadata: md})
	}
	return chunks
}

// span is a piece of output text and the rune range of the source it covers.
type span struct {
	text       string
	start, end int
}

// fixedSpans slides a window of size runes over runes[from:to], stepping size-overlap.
// Whitespace-only windows are dropped. With trim, window text is trimmed.
func fixedSpans(runes []rune, from, to, size, overlap int, trim bool) []span {
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []span
	for start := from; start < to; start += step {
		end := start + size
		if end > to {
			end = to
		}
		s, e := start, end
		if trim {
			s, e = trimSpan(runes, s, e)
		}
		if s < e && !isBlank(runes[s:e]) {
			out = append(out, span{text: string(runes[s:e]), start: s, end: e})
		}
		if end == to {
			break
		}
	}
	return out
}

// pack greedily joins units with sep newlines or spaces until the next unit would
// overflow MaxSize. A unit longer than MaxSize is split with the fixed strategy.
func (c *Chunker) pack(runes []rune, units []span, sepLen int) []span {
	sep := " "
	if sepLen == 2 {
		sep = "\n\n"
	}
	var (
		out     []span
		parts   []string
		curLen  int
		curFrom int
		curTo   int
	)
	flush := func() {
		if len(parts) == 0 {
			return
		}
		out = append(out, span{text: strings.Join(parts, sep), start: curFrom, end: curTo})
		parts, curLen = nil, 0
	}

	for _, u := range units {
		n := u.end - u.start
		if n > c.opts.MaxSize {
			flush()
			out = append(out, fixedSpans(runes, u.start, u.end, c.opts.MaxSize, c.opts.Overlap, true)...)
			continue
		}
		if len(parts) > 0 && curLen+sepLen+n > c.opts.MaxSize {
			flush()
		}
		if len(parts) == 0 {
			curFrom = u.start
			curLen = n
		} else {
			curLen += sepLen + n
		}
		parts = append(parts, u.text)
		curTo = u.end
	}
	flush()
	return out
}

// paragraphUnits returns the trimmed paragraphs of runes; paragraphs are separated by
// one or more blank lines.
func paragraphUnits(runes []rune) []span {
	var (
		out       []span
		paraStart = -1
		paraEnd   int
	)
	emit := func() {
		if paraStart < 0 {
			return
		}
		if s, e := trimSpan(runes, paraStart, paraEnd); s < e {
			out = append(out, span{text: string(runes[s:e]), start: s, end: e})
		}
		paraStart = -1
	}
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		if isBlank(runes[lineStart:i]) {
			emit()
		} else {
			if paraStart < 0 {
				paraStart = lineStart
			}
			paraEnd = i
		}
		lineStart = i + 1
	}
	emit()
	return out
}

// sentenceUnits splits runes after '.', '!' or '?' when followed by whitespace.
// The terminator stays with its sentence.
func sentenceUnits(runes []rune) []span {
	var out []span
	start := 0
	add := func(end int) {
		if s, e := trimSpan(runes, start, end); s < e {
			out = append(out, span{text: string(runes[s:e]), start: s, end: e})
		}
		start = end
	}
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				add(i + 1)
			}
		}
	}
	add(len(runes))
	return out
}

func trimSpan(runes []rune, s, e int) (int, int) {
	for s < e && unicode.IsSpace(runes[s]) {
		s++
	}
	for e > s && unicode.IsSpace(runes[e-1]) {
		e--
	}
	return s, e
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
