// Package hierarchy assembles the issue tree below a root epic.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"epicscope/internal/freshness"
	"epicscope/internal/jira"
	"epicscope/internal/logging"
	"epicscope/internal/snapshot"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options configures a Builder.
type Options struct {
	Taxonomy     Taxonomy
	Workers      int
	FetchTimeout time.Duration
	// Failures receives one line per unresolved or degraded issue; may be nil.
	Failures *logging.FailureLog
}

// Builder resolves snapshots through the store and the transport client and links them into a Tree.
type Builder struct {
	client  jira.Client
	store   snapshot.Store
	checker *freshness.Checker
	opts    Options
}

func NewBuilder(client jira.Client, store snapshot.Store, opts Options) *Builder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 2 * time.Minute
	}
	if opts.Taxonomy.Default == nil && opts.Taxonomy.ByType == nil {
		opts.Taxonomy = DefaultTaxonomy()
	}
	return &Builder{
		client:  client,
		store:   store,
		checker: freshness.NewChecker(client),
		opts:    opts,
	}
}

// resolution is the outcome of resolving one key.
type resolution struct {
	snap      *snapshot.IssueSnapshot
	err       error
	anomalies []Anomaly
}

type resolveFunc func(ctx context.Context, key string) resolution

// Build traverses breadth-first from rootKey. It only fails when ctx is done;
// every per-issue problem ends up as a stub node or an anomaly.
func (b *Builder) Build(ctx context.Context, rootKey string, mode freshness.Mode) (*Tree, error) {
	start := time.Now()
	tree, err := traverse(ctx, rootKey, b.opts.Taxonomy, b.opts.Workers, func(ctx context.Context, key string) resolution {
		return b.resolve(ctx, key, mode)
	})
	if err != nil {
		return nil, err
	}

	for _, n := range tree.Unresolved() {
		if err := b.opts.Failures.Record(n.Key, "fetch", n.Error); err != nil {
			log.Warn().Err(err).Msg("Failed to record unresolved issue")
		}
	}
	log.Info().
		Str("epic", rootKey).
		Str("mode", mode.String()).
		Int("nodes", tree.Len()).
		Int("related", len(tree.related)).
		Int("anomalies", len(tree.anomalies)).
		Dur("elapsed", time.Since(start)).
		Msg("Hierarchy built")
	return tree, nil
}

// FromSnapshots builds a tree from an in-memory snapshot set without any I/O.
// Keys missing from snaps become unresolved stubs.
func FromSnapshots(rootKey string, snaps map[string]*snapshot.IssueSnapshot, tax Taxonomy) *Tree {
	tree, _ := traverse(context.Background(), rootKey, tax, 1, func(_ context.Context, key string) resolution {
		if s, ok := snaps[key]; ok {
			return resolution{snap: s}
		}
		return resolution{err: fmt.Errorf("%s: %w", key, snapshot.ErrNotExist)}
	})
	return tree
}

// traverse runs a level-synchronous BFS. Each level is resolved concurrently into
// index-aligned slots and then linked in frontier order, so the shape of the tree
// does not depend on which fetch finishes first.
func traverse(ctx context.Context, rootKey string, tax Taxonomy, workers int, resolve resolveFunc) (*Tree, error) {
	t := newTree()
	frontier := []NodeID{t.add(rootKey, NoParent, "")}

	for len(frontier) > 0 {
		results := make([]resolution, len(frontier))

		var g errgroup.Group
		g.SetLimit(workers)
		for i, id := range frontier {
			key := t.nodes[id].Key
			g.Go(func() error {
				results[i] = resolve(ctx, key)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []NodeID
		for i, id := range frontier {
			next = append(next, t.attach(id, results[i], tax)...)
		}
		frontier = next
	}
	return t, nil
}

// attach stores the resolution on node id and adds its hierarchical children.
func (t *Tree) attach(id NodeID, r resolution, tax Taxonomy) []NodeID {
	n := t.nodes[id]
	t.anomalies = append(t.anomalies, r.anomalies...)

	if r.snap == nil {
		n.Unresolved = true
		if r.err != nil {
			n.Error = r.err.Error()
		}
		t.anomalies = append(t.anomalies, Anomaly{Kind: AnomalyUnresolved, Key: n.Key, Detail: n.Error})
		log.Warn().Str("issue", n.Key).Str("phase", "resolve").Str("reason", n.Error).Msg("Issue unresolved, recorded as stub")
		return nil
	}
	n.Snapshot = r.snap

	var children []NodeID
	for _, l := range r.snap.Links {
		if l.TargetKey == "" {
			continue
		}
		if !tax.IsHierarchical(r.snap.Type, l.LinkType) {
			t.related = append(t.related, Edge{From: n.Key, To: l.TargetKey, LinkType: l.LinkType, Reason: ReasonLink})
			continue
		}
		if t.onPath(id, l.TargetKey) {
			t.related = append(t.related, Edge{From: n.Key, To: l.TargetKey, LinkType: l.LinkType, Reason: ReasonCycle})
			t.anomalies = append(t.anomalies, Anomaly{Kind: AnomalyCycle, Key: n.Key, Target: l.TargetKey, Detail: l.LinkType})
			log.Warn().Str("issue", n.Key).Str("target", l.TargetKey).Str("link", l.LinkType).Msg("Cyclic hierarchy link downgraded to related edge")
			continue
		}
		if _, seen := t.index[l.TargetKey]; seen {
			t.related = append(t.related, Edge{From: n.Key, To: l.TargetKey, LinkType: l.LinkType, Reason: ReasonDuplicate})
			t.anomalies = append(t.anomalies, Anomaly{Kind: AnomalyDuplicate, Key: n.Key, Target: l.TargetKey, Detail: l.LinkType})
			log.Debug().Str("issue", n.Key).Str("target", l.TargetKey).Msg("Issue already placed under another parent")
			continue
		}
		children = append(children, t.add(l.TargetKey, id, l.LinkType))
	}
	return children
}

// resolve reads the local snapshot, asks the freshness checker and fetches when needed.
func (b *Builder) resolve(ctx context.Context, key string, mode freshness.Mode) resolution {
	var res resolution

	local, err := b.store.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotExist) {
			log.Warn().Err(err).Str("issue", key).Msg("Local snapshot unreadable, ignoring it")
		}
		local = nil
	}

	// The metadata lookup and the fetch each get their own FetchTimeout.
	mctx, mcancel := context.WithTimeout(ctx, b.opts.FetchTimeout)
	d := b.checker.Decide(mctx, key, local, mode)
	mcancel()
	if d.Warning != nil {
		res.anomalies = append(res.anomalies, Anomaly{Kind: AnomalyStaleData, Key: key, Detail: d.Warning.Error()})
	}
	if !d.Fetch {
		if local == nil {
			res.err = fmt.Errorf("no local snapshot (%s)", d.Reason)
			return res
		}
		log.Debug().Str("issue", key).Str("reason", d.Reason).Msg("Using local snapshot")
		res.snap = local
		return res
	}

	fctx, cancel := context.WithTimeout(ctx, b.opts.FetchTimeout)
	defer cancel()

	log.Debug().Str("issue", key).Str("reason", d.Reason).Msg("Fetching issue")
	snap, err := b.client.FetchIssue(fctx, key)
	if err != nil {
		switch {
		case errors.Is(err, jira.ErrNotFound):
			res.err = err
		case local != nil && local.Validate() == nil:
			log.Warn().Err(err).Str("issue", key).Str("phase", "fetch").Msg("Fetch failed, falling back to local snapshot")
			res.snap = local
			res.anomalies = append(res.anomalies, Anomaly{Kind: AnomalyStaleFallback, Key: key, Detail: err.Error()})
			if ferr := b.opts.Failures.Record(key, "fetch", err.Error()); ferr != nil {
				log.Warn().Err(ferr).Msg("Failed to record fetch failure")
			}
		default:
			res.err = err
		}
		return res
	}

	if err := snap.Validate(); err != nil {
		log.Warn().Err(err).Str("issue", key).Msg("Fetched snapshot is incomplete")
	}
	if err := b.store.Write(ctx, snap); err != nil {
		log.Error().Err(err).Str("issue", key).Str("phase", "store").Msg("Failed to persist snapshot")
		res.anomalies = append(res.anomalies, Anomaly{Kind: AnomalyWriteFailed, Key: key, Detail: err.Error()})
	}
	res.snap = snap
	return res
}
