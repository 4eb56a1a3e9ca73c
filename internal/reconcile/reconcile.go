// Package reconcile implements the background consistency loop keeping the
// metadata store and the storage backend in agreement. Drift (an orphan
// object, a record without its object, an expired file not yet purged) is
// expected steady state here, not an error: each sweep repairs what it can
// and logs what it cannot.
package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dropserve/service/internal/cache"
	"github.com/dropserve/service/internal/file"
	"github.com/dropserve/service/internal/storage"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropserve_reconcile_runs_total",
		Help: "Completed reconciliation sweeps by kind.",
	}, []string{"kind"})

	repairedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dropserve_reconcile_repaired_total",
		Help: "Drift items repaired (or, outside production, merely detected).",
	}, []string{"pass"})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dropserve_reconcile_duration_seconds",
		Help:    "Duration of reconciliation sweeps.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"kind"})
)

// TokenStore is the slice of the auth repository the reconciler needs.
type TokenStore interface {
	DeleteExpiredSignUpTokens(ctx context.Context, now time.Time) (int64, error)
}

// Reconciler runs four periodic passes: record-without-object,
// object-without-record, expired sign-up tokens, and expired files.
// Destructive repairs only happen in production mode; elsewhere the
// passes log what they would have done, so a developer pointing the
// service at a stale or shared backend cannot lose data.
type Reconciler struct {
	files      file.Store
	tokens     TokenStore
	backend    storage.Backend
	cache      *cache.Cache
	production bool

	fullInterval   time.Duration
	expiryInterval time.Duration

	mu         sync.Mutex // guards against overlapping consistency sweeps
	inProgress bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a Reconciler. cache may be nil.
func New(files file.Store, tokens TokenStore, backend storage.Backend, c *cache.Cache,
	production bool, fullInterval, expiryInterval time.Duration) *Reconciler {
	return &Reconciler{
		files:          files,
		tokens:         tokens,
		backend:        backend,
		cache:          c,
		production:     production,
		fullInterval:   fullInterval,
		expiryInterval: expiryInterval,
	}
}

// Start launches the background tickers. Stop (or cancelling ctx) halts
// them; Stop blocks until any in-flight sweep finishes.
func (r *Reconciler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(2)
	go r.loop(runCtx, r.fullInterval, r.RunConsistency)
	go r.loop(runCtx, r.expiryInterval, r.RunExpiry)

	log.Printf("reconciler: started (consistency every %s, expiry every %s, production=%t)",
		r.fullInterval, r.expiryInterval, r.production)
}

// Stop cancels the tickers and waits for running sweeps to drain.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	log.Println("reconciler: stopped")
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// RunConsistency performs the two drift passes: records whose object is
// gone, then objects no record references. Overlapping runs are skipped so
// a slow backend listing does not pile up sweeps.
func (r *Reconciler) RunConsistency(ctx context.Context) {
	r.mu.Lock()
	if r.inProgress {
		r.mu.Unlock()
		log.Println("reconciler: consistency sweep already running, skipping")
		return
	}
	r.inProgress = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inProgress = false
		r.mu.Unlock()
	}()

	start := time.Now()

	stats, err := r.backend.List(ctx)
	if err != nil {
		log.Printf("reconciler: backend listing failed, skipping sweep: %v", err)
		return
	}
	records, err := r.files.All(ctx)
	if err != nil {
		log.Printf("reconciler: metadata listing failed, skipping sweep: %v", err)
		return
	}

	r.dropRecordsWithoutObjects(ctx, records, stats)
	r.dropObjectsWithoutRecords(ctx, records, stats)

	runsTotal.WithLabelValues("consistency").Inc()
	sweepDuration.WithLabelValues("consistency").Observe(time.Since(start).Seconds())
}

// RunExpiry purges expired sign-up tokens and expired files.
func (r *Reconciler) RunExpiry(ctx context.Context) {
	start := time.Now()
	now := time.Now()

	if n, err := r.tokens.DeleteExpiredSignUpTokens(ctx, now); err != nil {
		log.Printf("reconciler: expired token purge failed: %v", err)
	} else if n > 0 {
		log.Printf("reconciler: purged %d expired sign-up tokens", n)
		repairedTotal.WithLabelValues("expired_tokens").Add(float64(n))
	}

	r.purgeExpiredFiles(ctx, now)

	runsTotal.WithLabelValues("expiry").Inc()
	sweepDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
}

// dropRecordsWithoutObjects deletes metadata records whose backend object
// no longer exists.
func (r *Reconciler) dropRecordsWithoutObjects(ctx context.Context, records []*file.File, stats []storage.ObjectStat) {
	present := make(map[string]bool, len(stats))
	for _, st := range stats {
		present[st.Basename] = true
	}

	for _, rec := range records {
		if present[rec.PhysicalName] {
			continue
		}
		if !r.production {
			log.Printf("reconciler: record %s has no backend object %s (left alone outside production)",
				rec.ID, rec.PhysicalName)
			continue
		}
		if err := r.files.Remove(ctx, rec.ID); err != nil {
			log.Printf("reconciler: dropping record %s failed: %v", rec.ID, err)
			continue
		}
		repairedTotal.WithLabelValues("record_without_object").Inc()
		log.Printf("reconciler: dropped record %s, backend object %s is gone", rec.ID, rec.PhysicalName)
	}
}

// dropObjectsWithoutRecords removes backend objects no record references.
func (r *Reconciler) dropObjectsWithoutRecords(ctx context.Context, records []*file.File, stats []storage.ObjectStat) {
	referenced := make(map[string]bool, len(records))
	for _, rec := range records {
		referenced[rec.PhysicalName] = true
	}

	for _, st := range stats {
		if referenced[st.Basename] {
			continue
		}
		if !r.production {
			log.Printf("reconciler: object %s has no record (left alone outside production)", st.Basename)
			continue
		}
		if err := r.backend.Remove(ctx, st.Basename); err != nil {
			log.Printf("reconciler: removing orphan object %s failed: %v", st.Basename, err)
			continue
		}
		repairedTotal.WithLabelValues("object_without_record").Inc()
		log.Printf("reconciler: removed orphan object %s", st.Basename)
	}
}

// purgeExpiredFiles deletes expired records and, in production, their
// backend objects. One record's failure never stops the rest.
func (r *Reconciler) purgeExpiredFiles(ctx context.Context, now time.Time) {
	expired, err := r.files.ListExpired(ctx, now)
	if err != nil {
		log.Printf("reconciler: expired file listing failed: %v", err)
		return
	}

	for _, rec := range expired {
		if err := r.files.Remove(ctx, rec.ID); err != nil {
			log.Printf("reconciler: removing expired record %s failed: %v", rec.ID, err)
			continue
		}
		repairedTotal.WithLabelValues("expired_files").Inc()

		if r.production {
			if err := r.backend.Remove(ctx, rec.PhysicalName); err != nil {
				// The object lingers; the next consistency sweep clears it.
				log.Printf("reconciler: removing expired object %s failed: %v", rec.PhysicalName, err)
			}
		}
		if r.cache != nil {
			if err := r.cache.Remove(rec.PhysicalName); err != nil {
				log.Printf("reconciler: removing cache entry %s failed: %v", rec.PhysicalName, err)
			}
		}
		log.Printf("reconciler: purged expired file %s", rec.ID)
	}
}
