package corpus

import "time"

type MessageRecord struct {
	ThreadID    string    `json:"thread_id"`
	Timestamp   time.Time `json:"timestamp"`
	IsOutgoing  bool      `json:"is_outgoing"`
	Body        string    `json:"body"`
	Participant string    `json:"participant"`
	Subject     string    `json:"subject,omitempty"`
}

type Redaction struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Category string `json:"category"`
}

// Outcome is the result of running a record through the scrubber.
type Outcome string

const (
	OutcomeRedacted            Outcome = "redacted"
	OutcomeNoDetection         Outcome = "no_detection"
	OutcomeDetectorUnavailable Outcome = "detector_unavailable"
)

// ScrubbedRecord carries the redacted body only. Redaction offsets refer to
// positions in the redacted body.
type ScrubbedRecord struct {
	MessageRecord
	Redactions []Redaction `json:"redactions"`
	Outcome    Outcome     `json:"outcome"`
}

// NeedsReview reports whether the record must go to manual review instead
// of the corpus.
func (r ScrubbedRecord) NeedsReview() bool {
	return r.Outcome == OutcomeDetectorUnavailable
}

type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

var Splits = []Split{SplitTrain, SplitVal, SplitTest}

type TrainingUnit struct {
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	ThreadID   string    `json:"thread_id"`
	TokenCount int       `json:"token_count"`
	Split      Split     `json:"split"`
	Timestamp  time.Time `json:"timestamp"`
}

type ReviewItem struct {
	ThreadID  string    `json:"thread_id"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}
