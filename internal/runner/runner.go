// Package runner orchestrates one full synchronization pass: enumerate the
// remote registry, fetch and store every schema through a bounded worker
// pool, fold observations into the ledger, reconcile removals, and persist.
//
// Per-type fetch and store failures are logged and skipped; a failed type
// still counts as observed, since the registry listed it, so a transient
// error never reads as a removal. Enumeration failure and ledger persistence
// failure abort the pass.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schemadrift/schemadrift/internal/catalog"
	"github.com/schemadrift/schemadrift/internal/history"
	"github.com/schemadrift/schemadrift/internal/ledger"
	"github.com/schemadrift/schemadrift/internal/store"
)

// Defaults applied by Run when the corresponding field is zero.
const (
	DefaultConcurrency  = 8
	DefaultFetchTimeout = 30 * time.Second
)

// Runner wires one pass together. Catalog, Store and Ledger are required;
// History is optional (nil disables the commit log).
type Runner struct {
	Catalog catalog.Client
	Store   *store.Store
	Ledger  *ledger.Ledger
	History *history.Log

	// Concurrency bounds the fetch worker pool.
	Concurrency int

	// FetchTimeout caps one type's fetch; on expiry the type is treated
	// as failed for this pass and skipped.
	FetchTimeout time.Duration

	// Logger receives progress and per-type warnings. Defaults to stderr.
	Logger *log.Logger

	// Now supplies the pass timestamp. Defaults to time.Now().UTC.
	Now func() time.Time
}

// Summary is the externally observable result of one pass.
type Summary struct {
	// PassTime is the single timestamp stamped on every ledger mutation
	// of this pass.
	PassTime time.Time

	// Enumerated is how many types the registry listed.
	Enumerated int

	// Processed is how many types were fetched and stored successfully.
	Processed int

	// Changed is how many stored blobs differed from the previous pass.
	Changed int

	// Removed is how many ledger records were archived as removed.
	Removed int

	// Errored is how many types failed to fetch or store and were skipped.
	Errored int

	// Committed reports whether the history log recorded this pass.
	Committed bool

	// Duration is the wall-clock time of the pass.
	Duration time.Duration
}

// Run executes one pass. The returned error is non-nil only for pass-fatal
// conditions: enumeration failure, context cancellation, or a failed ledger
// save. In those cases no removals have been reconciled against an
// incomplete view and the previous durable ledger state is still intact.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	fetchTimeout := r.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}

	start := time.Now()
	summary := &Summary{PassTime: now}

	types, err := r.Catalog.ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate registry: %w", err)
	}
	summary.Enumerated = len(types)
	logger.Printf("Enumerated %d resource types", len(types))

	var (
		mu       sync.Mutex
		observed = make(map[string]struct{}, len(types))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ts := range types {
		typeName := ts.TypeName
		g.Go(func() error {
			// A cancelled pass must stop before reconciliation, so
			// cancellation is the one worker error that propagates.
			if err := gctx.Err(); err != nil {
				return err
			}

			// Enumeration, not a successful fetch, is what proves the
			// type still exists. Mark it before fetching so a failed
			// fetch can never read as a removal.
			mu.Lock()
			observed[typeName] = struct{}{}
			mu.Unlock()

			changed, err := r.processType(gctx, typeName, now, fetchTimeout)
			if err != nil {
				logger.Printf("WARNING: skipping %s: %v", typeName, err)
				mu.Lock()
				summary.Errored++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			summary.Processed++
			if changed {
				summary.Changed++
			}
			if summary.Processed%100 == 0 {
				logger.Printf("Processed %d schemas...", summary.Processed)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pass aborted: %w", err)
	}

	// Reconciliation runs only after the full loop joined, against every
	// type the registry enumerated, failed fetches included.
	removed := r.Ledger.ReconcileRemovals(observed, now)
	summary.Removed = len(removed)
	for _, name := range removed {
		logger.Printf("Schema removed: %s", name)
	}

	if err := r.Ledger.Save(); err != nil {
		return nil, fmt.Errorf("failed to persist ledger: %w", err)
	}

	if r.History != nil {
		committed, err := r.History.CommitPass(ctx, now)
		if err != nil {
			// The ledger is authoritative and already saved; a failed
			// audit commit degrades the pass, it does not fail it.
			logger.Printf("WARNING: history commit failed: %v", err)
		}
		summary.Committed = committed
	}

	summary.Duration = time.Since(start)
	logger.Printf("Pass complete: processed=%d changed=%d removed=%d errored=%d",
		summary.Processed, summary.Changed, summary.Removed, summary.Errored)

	return summary, nil
}

// processType fetches one type under its own deadline, stores the canonical
// blob, and records the observation.
func (r *Runner) processType(ctx context.Context, typeName string, now time.Time, timeout time.Duration) (changed bool, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	detail, err := r.Catalog.DescribeType(fetchCtx, typeName)
	if err != nil {
		return false, fmt.Errorf("fetch failed: %w", err)
	}

	changed, err = r.Store.Write(typeName, detail.Schema)
	if err != nil {
		return false, fmt.Errorf("store failed: %w", err)
	}

	r.Ledger.RecordObservation(typeName, changed, now, detail.Metadata)
	return changed, nil
}
