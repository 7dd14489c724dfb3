package chunk

import (
	"strings"
	"time"

	"twin_corpus/internal/corpus"
)

const (
	incomingPrefix = "them:"
	outgoingPrefix = "me:"
)

// EstimateTokens is the fixed token estimator used for every budget: the
// number of whitespace-separated fields.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

type Options struct {
	MaxTokens int
	// MinResponseChars excludes short outgoing messages as response
	// targets. They still appear as context.
	MinResponseChars int
}

type turn struct {
	outgoing bool
	text     string
	ts       time.Time
}

func (t turn) line() string {
	if t.outgoing {
		return outgoingPrefix + " " + t.text
	}
	return incomingPrefix + " " + t.text
}

func (t turn) tokens() int { return EstimateTokens(t.text) + 1 }

func renderPrompt(turns []turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.line()
	}
	return strings.Join(lines, "\n")
}

func promptTokens(turns []turn) int {
	n := 0
	for _, t := range turns {
		n += t.tokens()
	}
	return n
}

// Chunk turns one deduplicated thread into training units. Consecutive
// exchanges accumulate into one unit whose response is the latest outgoing
// message. When the next response would push the unit over MaxTokens the
// unit is closed and a new window opens at the incoming messages that
// followed it (or the most recent incoming message before it), with the
// oldest context trimmed first. Responses longer than MaxTokens are split
// into consecutive segments. Trailing incoming messages produce nothing.
func Chunk(t Thread, opts Options) []corpus.TrainingUnit {
	limit := opts.MaxTokens
	if limit < 1 {
		return nil
	}
	c := &chunker{threadID: t.ID, limit: limit, lastOut: -1}
	for _, m := range t.Messages {
		tr := turn{outgoing: m.IsOutgoing, text: m.Body, ts: m.Timestamp}
		switch {
		case !m.IsOutgoing:
			c.window = append(c.window, tr)
			if c.lastOut < 0 {
				c.window = trimContext(c.window, limit)
			}
		case len([]rune(strings.TrimSpace(m.Body))) < opts.MinResponseChars:
			c.window = append(c.window, tr)
			if c.lastOut < 0 {
				c.window = trimContext(c.window, limit)
			}
		default:
			c.respond(tr)
		}
	}
	c.flush()
	return c.units
}

type chunker struct {
	threadID string
	limit    int
	window   []turn
	lastOut  int
	units    []corpus.TrainingUnit
}

func (c *chunker) respond(resp turn) {
	respTokens := EstimateTokens(resp.text)
	if respTokens > c.limit {
		c.closeUnit()
		c.segments(resp)
		c.window, c.lastOut = nil, -1
		return
	}

	if c.lastOut >= 0 {
		if promptTokens(c.window)+respTokens <= c.limit {
			c.window = append(c.window, resp)
			c.lastOut = len(c.window) - 1
			return
		}
		c.closeUnit()
	}
	c.window = fitContext(c.window, c.limit-respTokens)
	c.window = append(c.window, resp)
	c.lastOut = len(c.window) - 1
}

// closeUnit emits the pending unit and reopens the window at the incoming
// messages that followed its response, or else at the most recent incoming
// message before it.
func (c *chunker) closeUnit() {
	if c.lastOut < 0 {
		return
	}
	c.flush()
	next := c.window[c.lastOut:]
	if c.lastOut+1 < len(c.window) {
		next = c.window[c.lastOut+1:]
	} else {
		for i := c.lastOut - 1; i >= 0; i-- {
			if !c.window[i].outgoing {
				next = c.window[i:]
				break
			}
		}
	}
	c.window = append([]turn(nil), next...)
	c.lastOut = -1
}

// flush emits the pending unit, if any.
func (c *chunker) flush() {
	if c.lastOut < 0 {
		return
	}
	resp := c.window[c.lastOut]
	c.emit(c.window[:c.lastOut], resp.text, resp.ts)
}

func (c *chunker) emit(ctx []turn, response string, ts time.Time) {
	prompt := renderPrompt(ctx)
	c.units = append(c.units, corpus.TrainingUnit{
		Prompt:     prompt,
		Response:   response,
		ThreadID:   c.threadID,
		TokenCount: EstimateTokens(prompt) + EstimateTokens(response),
		Timestamp:  ts,
	})
}

// segments splits an oversized response. Every segment shares the same
// context, capped at half the budget.
func (c *chunker) segments(resp turn) {
	ctx := fitContext(c.window, c.limit/2)
	size := c.limit - promptTokens(ctx)
	for _, seg := range SlidingWindow(resp.text, size, 0) {
		c.emit(ctx, seg.Text, resp.ts)
	}
}

// trimContext drops the oldest turns until the rendered prompt fits budget,
// then cuts the remaining turn down to its most recent tokens.
func trimContext(turns []turn, budget int) []turn {
	for len(turns) > 1 && promptTokens(turns) > budget {
		turns = turns[1:]
	}
	if len(turns) == 1 && turns[0].tokens() > budget {
		keep := budget - 1
		if keep < 1 {
			return nil
		}
		fields := strings.Fields(turns[0].text)
		t := turns[0]
		t.text = strings.Join(fields[len(fields)-keep:], " ")
		return []turn{t}
	}
	return turns
}

func fitContext(turns []turn, budget int) []turn {
	if budget <= 0 {
		return nil
	}
	return trimContext(append([]turn(nil), turns...), budget)
}
