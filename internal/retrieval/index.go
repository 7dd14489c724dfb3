package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/embedding"
	"twin_corpus/internal/logging"
)

// entryNamespace scopes the name-based exemplar ids.
var entryNamespace = uuid.MustParse("6f1c2b1e-4c55-4b8e-9a57-3d0f5e2a7c11")

type Options struct {
	Workers      int
	EmbedTimeout time.Duration
	Log          logrus.FieldLogger
}

type snapshot struct {
	entries []Entry
	norms   []float64
	dim     int
	builtAt time.Time
}

// Index is a brute-force cosine index over train exemplars. Readers see
// immutable snapshots; Build and Restore publish a new one atomically.
type Index struct {
	embedder embedding.Embedder
	opts     Options
	log      logrus.FieldLogger
	snap     atomic.Pointer[snapshot]
}

func NewIndex(e embedding.Embedder, opts Options) *Index {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	log := opts.Log
	if log == nil {
		log = logging.New("retrieval")
	}
	return &Index{embedder: e, opts: opts, log: log}
}

// EntryID derives a stable id from the unit's thread, timestamp and its
// ordinal among units sharing both.
func EntryID(threadID string, ts time.Time, ordinal int) string {
	name := threadID + "\x00" + ts.UTC().Format(time.RFC3339Nano) + "\x00" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}

// Build embeds the response of every train unit and publishes the result.
// On error the previously published snapshot stays in place.
func (x *Index) Build(ctx context.Context, units []corpus.TrainingUnit) (int, error) {
	var train []corpus.TrainingUnit
	for _, u := range units {
		if u.Split == corpus.SplitTrain {
			train = append(train, u)
		}
	}

	entries := make([]Entry, len(train))
	ordinals := map[string]int{}
	for i, u := range train {
		key := u.ThreadID + "\x00" + u.Timestamp.UTC().Format(time.RFC3339Nano)
		entries[i] = Entry{
			ID:   EntryID(u.ThreadID, u.Timestamp, ordinals[key]),
			Text: u.Response,
			Metadata: Metadata{
				ThreadID:  u.ThreadID,
				Timestamp: u.Timestamp,
				Split:     u.Split,
				Prompt:    u.Prompt,
			},
		}
		ordinals[key]++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i := range entries {
		g.Go(func() error {
			vec, err := x.embed(gctx, entries[i].Text)
			if err != nil {
				return fmt.Errorf("embed exemplar %s: %w", entries[i].ID, err)
			}
			entries[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		x.log.WithError(err).Warn("index build failed, keeping previous snapshot")
		return 0, err
	}

	snap, err := newSnapshot(entries)
	if err != nil {
		return 0, err
	}
	x.snap.Store(snap)
	x.log.WithFields(logrus.Fields{"entries": len(entries), "dimension": snap.dim}).Info("index snapshot published")
	return len(entries), nil
}

// Restore publishes persisted entries without re-embedding them.
func (x *Index) Restore(entries []Entry) error {
	snap, err := newSnapshot(append([]Entry(nil), entries...))
	if err != nil {
		return err
	}
	x.snap.Store(snap)
	return nil
}

// Entries returns a copy of the current snapshot's entries.
func (x *Index) Entries() []Entry {
	snap := x.snap.Load()
	if snap == nil {
		return nil
	}
	return append([]Entry(nil), snap.entries...)
}

func (x *Index) Size() int {
	if snap := x.snap.Load(); snap != nil {
		return len(snap.entries)
	}
	return 0
}

func (x *Index) Ready() bool { return x.snap.Load() != nil }

// BuiltAt is when the current snapshot was published.
func (x *Index) BuiltAt() time.Time {
	if snap := x.snap.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

// Retrieve returns up to k entries by descending cosine similarity to the
// query. Equal scores rank the more recent entry first, then the smaller id.
func (x *Index) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	snap := x.snap.Load()
	if snap == nil {
		return nil, ErrIndexNotReady
	}
	if len(snap.entries) == 0 {
		return []Result{}, nil
	}

	qctx := ctx
	if x.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, x.opts.EmbedTimeout)
		defer cancel()
	}
	vec, err := x.embedder.Embed(qctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
			return nil, &EmbeddingTimeoutError{Timeout: x.opts.EmbedTimeout, Err: err}
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != snap.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), snap.dim)
	}

	qnorm := norm(vec)
	results := make([]Result, len(snap.entries))
	for i, e := range snap.entries {
		results[i] = Result{Entry: e, Score: cosine(vec, e.Embedding, qnorm, snap.norms[i])}
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Entry.Metadata.Timestamp.Equal(b.Entry.Metadata.Timestamp) {
			return a.Entry.Metadata.Timestamp.After(b.Entry.Metadata.Timestamp)
		}
		return a.Entry.ID < b.Entry.ID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if x.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opts.EmbedTimeout)
		defer cancel()
	}
	return x.embedder.Embed(ctx, text)
}

func newSnapshot(entries []Entry) (*snapshot, error) {
	snap := &snapshot{entries: entries, norms: make([]float64, len(entries)), builtAt: time.Now()}
	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("entry %s has no embedding", e.ID)
		}
		if i == 0 {
			snap.dim = len(e.Embedding)
		} else if len(e.Embedding) != snap.dim {
			return nil, fmt.Errorf("entry %s has dimension %d, expected %d", e.ID, len(e.Embedding), snap.dim)
		}
		snap.norms[i] = norm(e.Embedding)
	}
	return snap, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine scores zero-norm vectors as 0.
func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	s := dot / (na * nb)
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
