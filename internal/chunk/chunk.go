// Package chunk splits markdown documents into heading-scoped,
// token-bounded chunks: an ATX heading scan drives a 7-slot heading stack,
// each chunk's text is prefixed with its heading path, and oversize
// sections are broken into sentence-aligned greedy windows with
// tail-sentence overlap.
package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/textutil"
)

const (
	// DefaultMaxChunkTokens is the default section size ceiling.
	DefaultMaxChunkTokens = 512
	// DefaultOverlapTokens is the default tail-sentence overlap between
	// consecutive sub-chunks of an oversize section.
	DefaultOverlapTokens = 50
)

// headingPattern matches ATX headings: one to six '#' at line start,
// a space, then the title.
var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t]*$`)

// Options configures chunking token limits.
type Options struct {
	MaxTokens     int
	OverlapTokens int
}

// DefaultOptions returns the default token budget.
func DefaultOptions() Options {
	return Options{MaxTokens: DefaultMaxChunkTokens, OverlapTokens: DefaultOverlapTokens}
}

// Chunker splits markdown content into ordered Chunk records.
type Chunker struct {
	opts Options
}

// New constructs a Chunker. A zero Options falls back to DefaultOptions.
func New(opts Options) *Chunker {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens <= 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &Chunker{opts: opts}
}

type rawSection struct {
	hierarchy []string
	level     int
	body      string
	offset    int
}

// Chunk splits content into chunks, assigning chunk_index in emission order
// and a deterministic chunk_id = md5(file_path + ":" + chunk_index).
func (c *Chunker) Chunk(filePath, content string) []model.Chunk {
	sections := splitSections(content)

	var out []model.Chunk
	index := 0
	for _, sec := range sections {
		body := strings.TrimSpace(sec.body)
		if body == "" && len(sec.hierarchy) == 0 {
			continue
		}

		prefixed := withHeadingPrefix(sec.hierarchy, body)
		if strings.TrimSpace(prefixed) == "" {
			continue
		}

		if textutil.EstimateTokens(prefixed) <= c.opts.MaxTokens {
			out = append(out, c.makeChunk(filePath, sec, prefixed, index))
			index++
			continue
		}

		for _, window := range c.splitOversize(sec.hierarchy, body) {
			out = append(out, c.makeChunk(filePath, sec, window, index))
			index++
		}
	}
	return out
}

func (c *Chunker) makeChunk(filePath string, sec rawSection, text string, index int) model.Chunk {
	return model.Chunk{
		ChunkID:          chunkID(filePath, index),
		FilePath:         filePath,
		HeadingHierarchy: append([]string(nil), sec.hierarchy...),
		Level:            sec.level,
		Text:             text,
		ChunkIndex:       index,
		CharOffset:       sec.offset,
	}
}

func chunkID(filePath string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", filePath, index)))
	return hex.EncodeToString(sum[:])
}

func withHeadingPrefix(hierarchy []string, body string) string {
	if len(hierarchy) == 0 {
		return body
	}
	path := strings.Join(hierarchy, " > ")
	if body == "" {
		return path
	}
	return path + "\n\n" + body
}

// splitSections scans content for ATX headings, maintaining a 7-slot stack
// (index 0 unused, 1-6 are heading levels) so a chunk's hierarchy is the
// non-empty prefix of that stack up to the current level.
func splitSections(content string) []rawSection {
	matches := headingPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return []rawSection{{body: content, offset: 0}}
	}

	var sections []rawSection
	stack := make([]string, 7)

	if matches[0][0] > 0 {
		sections = append(sections, rawSection{body: content[:matches[0][0]], offset: 0})
	}

	for i, m := range matches {
		headingStart := m[0]
		levelStart, levelEnd := m[2], m[3]
		titleStart, titleEnd := m[4], m[5]

		level := levelEnd - levelStart
		title := strings.TrimSpace(content[titleStart:titleEnd])

		stack[level] = title
		for l := level + 1; l <= 6; l++ {
			stack[l] = ""
		}
		hierarchy := nonEmptyPrefix(stack, level)

		bodyStart := m[1]
		var bodyEnd int
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		} else {
			bodyEnd = len(content)
		}

		sections = append(sections, rawSection{
			hierarchy: hierarchy,
			level:     level,
			body:      content[bodyStart:bodyEnd],
			offset:    headingStart,
		})
	}
	return sections
}

func nonEmptyPrefix(stack []string, level int) []string {
	var out []string
	for l := 1; l <= level; l++ {
		if stack[l] != "" {
			out = append(out, stack[l])
		}
	}
	return out
}

// splitOversize breaks an oversize section body into sentence-aligned
// greedy windows, each ≤ MaxTokens, seeding the next window with tail
// sentences whose combined estimated tokens are ≥ OverlapTokens. A
// sentence that alone exceeds MaxTokens is emitted as its own chunk.
func (c *Chunker) splitOversize(hierarchy []string, body string) []string {
	sentences := textutil.SplitSentences(body)
	if len(sentences) == 0 {
		return nil
	}

	var windows []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := withHeadingPrefix(hierarchy, strings.Join(current, " "))
		windows = append(windows, text)
	}

	for _, s := range sentences {
		sTokens := textutil.EstimateTokens(s)

		if sTokens > c.opts.MaxTokens {
			flush()
			current = nil
			currentTokens = 0
			windows = append(windows, withHeadingPrefix(hierarchy, s))
			continue
		}

		if currentTokens+sTokens > c.opts.MaxTokens && len(current) > 0 {
			flush()
			current = tailSentencesForOverlap(current, c.opts.OverlapTokens)
			currentTokens = textutil.EstimateTokens(strings.Join(current, " "))
		}

		current = append(current, s)
		currentTokens += sTokens
	}
	flush()

	return windows
}

// tailSentencesForOverlap returns the shortest suffix of sentences whose
// combined estimated tokens is ≥ overlapTokens (or all of them, if the
// entire window is shorter than the requested overlap).
func tailSentencesForOverlap(sentences []string, overlapTokens int) []string {
	if overlapTokens <= 0 {
		return nil
	}
	tokens := 0
	start := len(sentences)
	for start > 0 {
		tokens += textutil.EstimateTokens(sentences[start-1])
		start--
		if tokens >= overlapTokens {
			break
		}
	}
	return append([]string(nil), sentences[start:]...)
}
