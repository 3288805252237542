// Package janitor runs the background sweep that reclaims expired cache
// entries and orphaned artifact files. Lazy expiry at lookup time keeps
// the caches correct; the janitor exists for eventual space reclamation
// of entries that are never touched again.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/cache"
	"github.com/onnwee/pagelens/backend/internal/durable"
	"github.com/onnwee/pagelens/backend/internal/keys"
	"github.com/onnwee/pagelens/backend/internal/logger"
	"github.com/onnwee/pagelens/backend/internal/metrics"
)

// orphanGrace protects files saved moments before their cache record
// lands; anything younger than this is never treated as an orphan.
const orphanGrace = time.Minute

// Tier is the slice of the cache API the janitor needs: every tier can
// purge its expired entries regardless of value type.
type Tier interface {
	PurgeExpired() int
}

// Config holds janitor configuration.
type Config struct {
	Interval         time.Duration // sweep interval
	MaxArtifactFiles int           // file-count ceiling, 0 = unlimited
	ArtifactTTL      time.Duration // used to prune the durable index
}

// Janitor sweeps the tiers and the artifact store on a fixed interval,
// independent of request traffic. It only uses the thread-safe cache and
// store APIs, so it never blocks foreground requests beyond brief
// per-entry synchronization.
type Janitor struct {
	cfg           Config
	tiers         map[string]Tier
	artifactCache *cache.LRU[artifacts.Record]
	store         artifacts.Store
	durable       *durable.Store // optional
	stop          chan struct{}
	log           *slog.Logger
}

// New creates a janitor. tiers maps metric tier names to caches; the
// artifact cache is passed separately because the orphan scan needs its
// record values, and is always swept under the "artifact" tier name so
// callers cannot accidentally leave it out. durableStore may be nil.
func New(cfg Config, tiers map[string]Tier, artifactCache *cache.LRU[artifacts.Record], store artifacts.Store, durableStore *durable.Store) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	all := make(map[string]Tier, len(tiers)+1)
	for name, tier := range tiers {
		all[name] = tier
	}
	all["artifact"] = artifactCache
	return &Janitor{
		cfg:           cfg,
		tiers:         all,
		artifactCache: artifactCache,
		store:         store,
		durable:       durableStore,
		stop:          make(chan struct{}),
		log:           logger.WithComponent("janitor"),
	}
}

// Start begins the sweep loop. It blocks until ctx is done or Stop is
// called, so run it in its own goroutine.
func (j *Janitor) Start(ctx context.Context) {
	j.log.Info("starting janitor", "interval", j.cfg.Interval)
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on start
	j.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stopped by context")
			return
		case <-j.stop:
			j.log.Info("janitor stopped by signal")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	close(j.stop)
}

// Sweep runs one pass: purge expired entries from every tier, delete
// orphaned artifact files, trim the store to its file-count ceiling, and
// prune the durable index. Exported so tests and admin endpoints can
// trigger it directly.
func (j *Janitor) Sweep(ctx context.Context) {
	metrics.JanitorSweeps.Inc()

	for name, tier := range j.tiers {
		if n := tier.PurgeExpired(); n > 0 {
			metrics.JanitorEntriesRemoved.WithLabelValues(name).Add(float64(n))
			j.log.Debug("purged expired entries", "tier", name, "count", n)
		}
	}

	j.sweepArtifacts(ctx)

	if j.durable != nil && j.cfg.ArtifactTTL > 0 {
		if n, err := j.durable.PruneBefore(ctx, time.Now().Add(-j.cfg.ArtifactTTL)); err != nil {
			j.log.Warn("durable prune failed", "error", err)
		} else if n > 0 {
			j.log.Debug("pruned durable records", "count", n)
		}
	}
}

// sweepArtifacts removes files with no live record and trims the oldest
// files beyond the configured ceiling.
func (j *Janitor) sweepArtifacts(ctx context.Context) {
	files, err := j.store.List()
	if err != nil {
		j.log.Warn("artifact listing failed", "error", err)
		return
	}

	live := make(map[string]keys.Key, len(files))
	j.artifactCache.ForEach(func(k keys.Key, rec artifacts.Record) {
		live[rec.StoragePath] = k
	})

	now := time.Now()
	kept := files[:0]
	for _, f := range files {
		if _, ok := live[f.Path]; ok {
			kept = append(kept, f)
			continue
		}
		if now.Sub(f.ModTime) < orphanGrace {
			kept = append(kept, f)
			continue
		}
		j.deleteFile(ctx, f.Path, "orphaned")
	}

	// List returns oldest first, so trimming walks from the front.
	if j.cfg.MaxArtifactFiles > 0 && len(kept) > j.cfg.MaxArtifactFiles {
		for _, f := range kept[:len(kept)-j.cfg.MaxArtifactFiles] {
			if key, ok := live[f.Path]; ok {
				j.artifactCache.Invalidate(key)
			}
			j.deleteFile(ctx, f.Path, "trimmed")
		}
		kept = kept[len(kept)-j.cfg.MaxArtifactFiles:]
	}

	metrics.ArtifactFiles.Set(float64(len(kept)))
}

func (j *Janitor) deleteFile(ctx context.Context, path, reason string) {
	if err := j.store.Delete(path); err != nil {
		j.log.Warn("artifact delete failed", "path", path, "error", err)
		return
	}
	metrics.JanitorFilesDeleted.WithLabelValues(reason).Inc()
	if j.durable != nil {
		if err := j.durable.DeleteByPath(ctx, path); err != nil {
			j.log.Warn("durable delete failed", "path", path, "error", err)
		}
	}
	j.log.Debug("deleted artifact file", "path", path, "reason", reason)
}
