package nvt

import "unicode/utf8"

// codepointResult is the outcome of feeding one byte to the
// in-progress UTF-8 code point accumulator.
type codepointResult int

const (
	cpNeedMore codepointResult = iota
	cpComplete
	cpInvalid
)

// feedCodepoint accumulates b into partial and reports whether the
// sequence so far is complete, invalid (overlong, truncated lead byte,
// stray continuation byte, or a complete-but-unprintable rune such as
// a control character or surrogate half), or still incomplete.
//
// On cpInvalid or cpComplete the caller must reset its partial buffer
// (the descriptor's CodepointPartial); the accumulator does not reset
// itself so the caller can inspect the dropped byte count first.
func feedCodepoint(partial []byte, b byte) ([]byte, codepointResult) {
	partial = append(partial, b)

	r, size := utf8.DecodeRune(partial)
	if r == utf8.RuneError && size <= 1 {
		if utf8.RuneStart(partial[0]) && len(partial) < utf8.UTFMax {
			// Could still be a valid multi-byte sequence in progress,
			// unless decoding already confidently rejected it.
			if utf8.FullRune(partial) {
				return partial, cpInvalid
			}
			return partial, cpNeedMore
		}
		return partial, cpInvalid
	}
	if size < len(partial) {
		// Decoded a complete rune from a prefix of partial but there are
		// extra buffered bytes: can only happen if earlier bytes were
		// mis-accumulated, which feedCodepoint itself prevents. Treat
		// defensively as invalid.
		return partial, cpInvalid
	}
	if !utf8.FullRune(partial) {
		return partial, cpNeedMore
	}
	if !printableRune(r) {
		return partial, cpInvalid
	}
	return partial, cpComplete
}

// printableRune rejects control characters and surrogate halves; the
// NVT layer only admits displayable text into raw_input.
func printableRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	if r < 0x20 {
		return false
	}
	if r >= 0x7F && r <= 0x9F {
		return false
	}
	if r >= 0xD800 && r <= 0xDFFF {
		return false
	}
	return true
}
