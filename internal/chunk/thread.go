package chunk

import (
	"sort"
	"strings"

	"twin_corpus/internal/corpus"
)

// Thread is one conversation in timestamp order.
type Thread struct {
	ID       string
	Messages []corpus.ScrubbedRecord
}

// GroupThreads groups records by thread id, ordered by id, with messages
// stable-sorted by timestamp. Records waiting for manual review are left out.
func GroupThreads(records []corpus.ScrubbedRecord) []Thread {
	byID := map[string][]corpus.ScrubbedRecord{}
	for _, r := range records {
		if r.NeedsReview() {
			continue
		}
		byID[r.ThreadID] = append(byID[r.ThreadID], r)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	threads := make([]Thread, 0, len(ids))
	for _, id := range ids {
		msgs := byID[id]
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		})
		threads = append(threads, Thread{ID: id, Messages: msgs})
	}
	return threads
}

// DedupeKey lowercases the body and collapses whitespace runs.
// Punctuation is significant.
func DedupeKey(body string) string {
	return strings.Join(strings.Fields(strings.ToLower(body)), " ")
}

// Dedupe keeps the first message for each DedupeKey, regardless of
// direction, and reports how many later copies were dropped.
func Dedupe(t Thread) (Thread, int) {
	seen := make(map[string]struct{}, len(t.Messages))
	kept := make([]corpus.ScrubbedRecord, 0, len(t.Messages))
	dropped := 0
	for _, m := range t.Messages {
		key := DedupeKey(m.Body)
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, m)
	}
	return Thread{ID: t.ID, Messages: kept}, dropped
}
