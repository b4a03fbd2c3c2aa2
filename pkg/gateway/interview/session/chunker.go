package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxFragmentChars bounds fragment size when config does not say
// otherwise.
const DefaultMaxFragmentChars = 200

// Fragment is one synthesis-sized piece of an assistant reply.
type Fragment struct {
	Text  string
	Index int
	Total int
}

// SplitFragments cuts reply text into fragments of at most maxLen runes.
// Sentences are kept whole and packed greedily; a sentence longer than
// maxLen is split at comma boundaries. A single comma-delimited piece that
// still exceeds maxLen is emitted oversized rather than cut mid-word.
// The result is deterministic and preserves text order.
func SplitFragments(text string, maxLen int) []Fragment {
	if maxLen <= 0 {
		maxLen = DefaultMaxFragmentChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}
	pack := func(piece string) {
		if buf.Len() > 0 && runeLen(buf.String())+1+runeLen(piece) > maxLen {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(piece)
	}

	for _, sentence := range splitSentences(text) {
		if runeLen(sentence) <= maxLen {
			pack(sentence)
			continue
		}
		// Oversized sentence: fall back to comma boundaries. A piece with
		// no comma to cut at is accepted as-is even over the limit.
		for _, piece := range splitAfterCommas(sentence) {
			pack(piece)
		}
	}
	flush()

	fragments := make([]Fragment, len(chunks))
	for i, chunk := range chunks {
		fragments[i] = Fragment{Text: chunk, Index: i, Total: len(chunks)}
	}
	return fragments
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func isSentenceBoundary(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}

// splitSentences cuts text after runs of sentence-terminal punctuation,
// swallowing the whitespace that follows. Punctuation stays attached to its
// sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isSentenceBoundary(r) {
			i += size
			continue
		}
		// Consume the whole punctuation run ("?!", "...").
		end := i + size
		for end < len(text) {
			r2, sz2 := utf8.DecodeRuneInString(text[end:])
			if !isSentenceBoundary(r2) {
				break
			}
			end += sz2
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		// Skip trailing whitespace to the start of the next sentence.
		for end < len(text) {
			r2, sz2 := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(r2) {
				break
			}
			end += sz2
		}
		start = end
		i = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitAfterCommas cuts after each comma, keeping the comma attached to the
// preceding piece.
func splitAfterCommas(s string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		if piece := strings.TrimSpace(s[start : i+1]); piece != "" {
			pieces = append(pieces, piece)
		}
		start = i + 1
	}
	if piece := strings.TrimSpace(s[start:]); piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}
