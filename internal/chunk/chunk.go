package chunk

import "strings"

// Segment is one window of a response too long for a single unit. Token
// offsets count EstimateTokens tokens.
type Segment struct {
	Index      int
	StartToken int
	EndToken   int
	Text       string
}

// SlidingWindow cuts text into windows of size tokens, each overlapping the
// previous one by overlap tokens. The last window may be shorter.
func SlidingWindow(text string, size, overlap int) []Segment {
	return windows(strings.Fields(text), size, overlap)
}

func windows(tokens []string, size, overlap int) []Segment {
	if size <= 0 || len(tokens) == 0 {
		return nil
	}
	overlap = max(0, min(overlap, size-1))
	step := size - overlap

	out := make([]Segment, 0, len(tokens)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(tokens))
		out = append(out, Segment{
			Index:      len(out),
			StartToken: start,
			EndToken:   end,
			Text:       strings.Join(tokens[start:end], " "),
		})
		if end == len(tokens) {
			return out
		}
	}
}
