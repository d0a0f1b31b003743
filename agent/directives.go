// Package agent: reply directive parsing. The streaming accumulator
// recognizes three inline tags ([[reply:<id>]], [[@current]],
// [[silent]]) that may be split across chunk boundaries.
package agent

import "strings"

// maxPartialLen bounds how long an unresolved "[[..." prefix may grow
// before it's given up on and flushed as literal text.
const maxPartialLen = 30

// DirectiveSet carries the reply-routing directives collected during a
// turn. Fields are sticky: once set, a later chunk can only overwrite
// ReplyTo (last tag wins) but never un-sets CurrentThread or Silent.
type DirectiveSet struct {
	ReplyTo       string
	HasReplyTo    bool
	CurrentThread bool
	Silent        bool
}

// StreamingDirectiveAccumulator consumes a stream of text chunks,
// stripping directive tags from the emitted text and accumulating a
// DirectiveSet.
type StreamingDirectiveAccumulator struct {
	partial    string
	directives DirectiveSet
}

func (a *StreamingDirectiveAccumulator) Directives() DirectiveSet { return a.directives }

func (a *StreamingDirectiveAccumulator) parseTag(content string) {
	content = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(content, "reply:"):
		id := strings.TrimSpace(strings.TrimPrefix(content, "reply:"))
		if id != "" {
			a.directives.ReplyTo = id
			a.directives.HasReplyTo = true
		}
	case content == "@current":
		a.directives.CurrentThread = true
	case content == "silent":
		a.directives.Silent = true
	default:
		// unknown tags are silently dropped
	}
}

// Consume feeds the next chunk through the accumulator and returns the
// visible text produced so far (with recognized and unrecognized tags
// stripped). isFinal must be true on the last chunk of the stream so
// any unresolved partial buffer is flushed as literal text.
func (a *StreamingDirectiveAccumulator) Consume(chunk string, isFinal bool) string {
	text := a.partial + chunk
	a.partial = ""

	var out strings.Builder
	i := 0
	for i < len(text) {
		if text[i] == '[' && strings.HasPrefix(text[i:], "[[") {
			remaining := text[i:]
			if end := strings.Index(remaining[2:], "]]"); end >= 0 {
				tagContent := remaining[2 : 2+end]
				a.parseTag(tagContent)
				tagLen := 2 + end + 2
				i += tagLen
				continue
			}
			// No closing "]]" found yet in this chunk.
			if !isFinal && len(remaining) < maxPartialLen {
				a.partial = remaining
				return out.String()
			}
			// Too long to plausibly be a tag, or this is the final
			// chunk: treat '[' as a literal character and continue.
			out.WriteByte(text[i])
			i++
			continue
		}
		out.WriteByte(text[i])
		i++
	}

	if isFinal && a.partial != "" {
		out.WriteString(a.partial)
		a.partial = ""
	}
	return out.String()
}

// ParseDirectives is a one-shot helper equivalent to feeding the whole
// text through Consume with isFinal=true, with the result trimmed.
func ParseDirectives(text string) (string, DirectiveSet) {
	var acc StreamingDirectiveAccumulator
	cleaned := acc.Consume(text, true)
	return strings.TrimSpace(cleaned), acc.Directives()
}
