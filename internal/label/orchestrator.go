// Package label drives relevance labeling of a pooled document set through
// an external judge capability with bounded concurrency.
package label

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/searchlab/search-eval/internal/bus"
	"github.com/searchlab/search-eval/internal/judge"
	"github.com/searchlab/search-eval/internal/judgments"
	"github.com/searchlab/search-eval/internal/pkg/logger"
)

const (
	// DefaultConcurrency bounds in-flight classify calls.
	DefaultConcurrency = 10

	// maxSampledErrors caps distinct error messages kept for the report.
	maxSampledErrors = 5

	// progressEvery controls how often progress events are published.
	progressEvery = 25
)

// Document is one pooled document queued for labeling.
type Document struct {
	Query   string
	DocID   string
	Title   string
	Content string
}

// Options configure a labeling run.
type Options struct {
	// Concurrency bounds simultaneous classify calls. Zero means
	// DefaultConcurrency.
	Concurrency int

	// SkipJudged skips documents that already hold a judgment, making an
	// interrupted run resumable at no extra cost.
	SkipJudged bool

	// Limit caps how many pending documents are classified; zero is no
	// limit. Useful for smoke-testing a judge on a handful of documents.
	Limit int

	// CallTimeout bounds each classify call. Per-call timeout is the only
	// cancellation granularity below process termination.
	CallTimeout time.Duration

	// LabeledBy overrides the judge's name in persisted judgments.
	LabeledBy string
}

// Report summarizes one labeling run.
type Report struct {
	// Total is the number of documents presented.
	Total int

	// AlreadyJudged is how many were skipped as previously judged.
	AlreadyJudged int

	// Pending is how many were scheduled for classification.
	Pending int

	// Labeled is how many classify calls produced a persisted grade.
	Labeled int

	// Failed is how many classify calls failed; each failure is persisted
	// as a null-grade judgment with an error note.
	Failed int

	// SampledErrors holds up to five distinct failure messages.
	SampledErrors []string

	// Distribution counts persisted judgments per grade after the run;
	// the -1 bucket counts null grades.
	Distribution map[int]int

	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Orchestrator labels pooled documents through a judge capability.
//
// Scheduling is deterministic for a fixed input and judged set: the pending
// queue is the input order minus already-judged pairs, computed once before
// any call is dispatched. Completion order follows call latency.
type Orchestrator struct {
	judge judge.Judge
	store judgments.Store
	bus   bus.Bus
	log   *logger.Logger
	opts  Options

	completed atomic.Int64
	pending   atomic.Int64

	mu     sync.Mutex
	failed int
	errs   []string
}

// New creates an orchestrator. eventBus is optional; nil disables progress
// events.
func New(j judge.Judge, store judgments.Store, eventBus bus.Bus, log *logger.Logger, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 120 * time.Second
	}
	if opts.LabeledBy == "" {
		opts.LabeledBy = j.Name()
	}
	if eventBus == nil {
		eventBus = bus.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Orchestrator{
		judge: j,
		store: store,
		bus:   eventBus,
		log:   log,
		opts:  opts,
	}
}

// Progress returns live completed and total-pending counts. Safe to call
// from other goroutines while Run is in flight.
func (o *Orchestrator) Progress() (completed, pending int) {
	return int(o.completed.Load()), int(o.pending.Load())
}

// Run labels every unjudged document in docs and returns the run report.
// Task-level failures never abort the batch; only store enumeration errors
// and context cancellation surface here.
func (o *Orchestrator) Run(ctx context.Context, docs []Document) (*Report, error) {
	start := time.Now()
	report := &Report{Total: len(docs)}

	// Resumability is a pure set difference computed once up front:
	// pending = all documents minus already judged pairs.
	pendingDocs, alreadyJudged, err := o.partition(ctx, docs)
	if err != nil {
		return nil, err
	}
	report.AlreadyJudged = alreadyJudged

	if o.opts.Limit > 0 && len(pendingDocs) > o.opts.Limit {
		pendingDocs = pendingDocs[:o.opts.Limit]
	}
	report.Pending = len(pendingDocs)

	o.completed.Store(0)
	o.pending.Store(int64(len(pendingDocs)))

	o.log.Info("Labeling started",
		"total", report.Total,
		"already_judged", report.AlreadyJudged,
		"pending", report.Pending,
		"concurrency", o.opts.Concurrency,
	)

	if len(pendingDocs) > 0 {
		if err := o.dispatch(ctx, pendingDocs); err != nil {
			return nil, err
		}
	}

	o.mu.Lock()
	report.Failed = o.failed
	report.SampledErrors = append([]string(nil), o.errs...)
	o.mu.Unlock()
	report.Labeled = int(o.completed.Load()) - report.Failed
	report.Duration = time.Since(start)

	if all, err := o.store.List(ctx); err == nil {
		report.Distribution = judgments.Distribution(all)
	}

	o.log.Info("Labeling complete",
		"labeled", report.Labeled,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	o.publish(ctx, bus.TopicLabelCompleted, report)

	return report, nil
}

// partition splits docs into pending work and an already-judged count.
func (o *Orchestrator) partition(ctx context.Context, docs []Document) ([]Document, int, error) {
	if !o.opts.SkipJudged {
		return docs, 0, nil
	}

	existing, err := o.store.List(ctx)
	if err != nil {
		return nil, 0, err
	}
	judged := make(map[[2]string]bool, len(existing))
	for _, j := range existing {
		judged[[2]string{j.Query, j.DocID}] = true
	}

	pending := make([]Document, 0, len(docs))
	alreadyJudged := 0
	for _, doc := range docs {
		if judged[[2]string{doc.Query, doc.DocID}] {
			alreadyJudged++
			continue
		}
		pending = append(pending, doc)
	}
	return pending, alreadyJudged, nil
}

// dispatch feeds pending documents to a fixed-size worker pool. No two
// tasks ever target the same document, so workers write to the store
// without coordination.
func (o *Orchestrator) dispatch(ctx context.Context, pending []Document) error {
	jobs := make(chan Document)

	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < o.opts.Concurrency; w++ {
		g.Go(func() error {
			for doc := range jobs {
				if err := ctx.Err(); err != nil {
					return err
				}
				o.labelOne(ctx, doc)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, doc := range pending {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return g.Wait()
}

// labelOne classifies a single document and persists the outcome
// immediately, so interruption never loses completed work.
func (o *Orchestrator) labelOne(ctx context.Context, doc Document) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	result, err := o.judge.Classify(callCtx, judge.Request{
		Query:   doc.Query,
		Title:   doc.Title,
		Content: doc.Content,
	})
	cancel()

	j := judgments.RelevanceJudgment{
		Query:     doc.Query,
		DocID:     doc.DocID,
		LabeledBy: o.opts.LabeledBy,
		LabeledAt: time.Now().UTC(),
	}

	if err != nil {
		j.Notes = "classification failed: " + err.Error()
		o.recordFailure(err.Error())
	} else {
		grade := result.Grade
		j.Relevance = &grade
		j.Notes = result.Reason
	}

	if putErr := o.store.Put(ctx, j); putErr != nil {
		o.log.WithQuery(doc.Query).WithError(putErr).Error("Persisting judgment failed", "doc_id", doc.DocID)
		if err == nil {
			o.recordFailure(putErr.Error())
		}
	}

	done := o.completed.Add(1)
	if done%progressEvery == 0 || done == o.pending.Load() {
		o.publish(ctx, bus.TopicLabelProgress, map[string]int64{
			"completed": done,
			"pending":   o.pending.Load(),
		})
	}
}

// recordFailure counts a task failure and samples its message. Only the
// first five distinct messages are kept.
func (o *Orchestrator) recordFailure(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.failed++
	if len(o.errs) >= maxSampledErrors {
		return
	}
	for _, seen := range o.errs {
		if seen == msg {
			return
		}
	}
	o.errs = append(o.errs, msg)
}

func (o *Orchestrator) publish(ctx context.Context, topic string, payload any) {
	_ = o.bus.Publish(ctx, topic, bus.NewEvent(topic, "label.orchestrator", payload))
}
