// Package segment cuts page text into bounded, overlapping chunks that carry
// their provenance. Lengths are measured in characters (runes), not bytes.
package segment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/soundprediction/naturegraph/pkg/types"
)

// Method selects the segmentation mode applied to each page.
type Method string

const (
	MethodSize      Method = "size"
	MethodParagraph Method = "paragraph"
)

const (
	DefaultSize         = 1000
	DefaultOverlap      = 200
	DefaultMinParagraph = 200
)

// ParseMethod validates a method name. The empty string selects MethodSize.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodSize:
		return MethodSize, nil
	case MethodParagraph:
		return MethodParagraph, nil
	}
	return "", fmt.Errorf("unknown chunking method %q (want size or paragraph)", s)
}

// Options configures CreateChunksFromPages.
type Options struct {
	Method       Method
	Size         int
	Overlap      int
	MinParagraph int
}

// DefaultOptions returns size-bounded segmentation with 1000/200 characters.
func DefaultOptions() Options {
	return Options{
		Method:       MethodSize,
		Size:         DefaultSize,
		Overlap:      DefaultOverlap,
		MinParagraph: DefaultMinParagraph,
	}
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。':
		return true
	}
	return false
}

// SplitSentences splits text after every sentence terminator (. ! ? or the
// ideographic full stop) that is followed by whitespace. The whitespace run is
// consumed and each sentence is trimmed; empty sentences are dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	prev := rune(0)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && isTerminator(prev) {
			end := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += size
			}
			if s := strings.TrimSpace(text[start:end]); s != "" {
				sentences = append(sentences, s)
			}
			start = i
			prev = 0
			continue
		}
		prev = r
		i += size
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Segment greedily packs sentences into chunks of at most maxSize characters.
// When the next sentence would overflow, the chunk is emitted and the trailing
// sentences whose combined length fits within overlap seed the next chunk. A
// sentence longer than maxSize is never split. Sentences are joined by a space.
func Segment(text string, maxSize, overlap int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if currentLen+n > maxSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current, currentLen = carryOver(current, overlap)
		}
		current = append(current, sentence)
		currentLen += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// carryOver returns the longest suffix of sentences whose summed length is
// within overlap, in original order.
func carryOver(sentences []string, overlap int) ([]string, int) {
	total := 0
	first := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		if total+n > overlap {
			break
		}
		total += n
		first = i
	}
	carried := make([]string, len(sentences)-first)
	copy(carried, sentences[first:])
	return carried, total
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// SegmentByParagraph splits text on blank lines. Paragraphs are appended to
// the accumulating chunk, separated by a blank line, while the combined length
// stays below minSize; otherwise the accumulated chunk is flushed and the
// paragraph starts a new one.
func SegmentByParagraph(text string, minSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	current := ""
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(para) < minSize {
			if current == "" {
				current = para
			} else {
				current = current + "\n\n" + para
			}
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = para
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// CreateChunksFromPages segments every page with the configured method and
// tags each chunk with its document, page and a chunk ordinal that increases
// across the whole page set. The output is deterministic for a given input.
func CreateChunksFromPages(pages []types.Page, opts Options) []types.Chunk {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.MinParagraph <= 0 {
		opts.MinParagraph = DefaultMinParagraph
	}

	var chunks []types.Chunk
	ordinal := 0
	for _, page := range pages {
		var texts []string
		if opts.Method == MethodParagraph {
			texts = SegmentByParagraph(page.Text, opts.MinParagraph)
		} else {
			texts = Segment(page.Text, opts.Size, opts.Overlap)
		}
		for _, text := range texts {
			chunks = append(chunks, types.Chunk{
				Text:           text,
				PageNumber:     page.PageNumber,
				SourceDocument: page.SourceDocument,
				ChunkOrdinal:   ordinal,
			})
			ordinal++
		}
	}
	return chunks
}
