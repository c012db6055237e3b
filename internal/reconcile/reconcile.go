package reconcile

import (
	"context"
	"sync"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/graph"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/metrics"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var logg = logger.New()

// Report counts what a reconcile pass looked at and changed.
type Report struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Dangling int `json:"dangling"`
}

func (r *Report) add(o Report) {
	r.Checked += o.Checked
	r.Repaired += o.Repaired
	r.Dangling += o.Dangling
}

// Reconciler restores symmetry of the two-sided relationships. The forward
// side (following, user_scraps) is the source of truth; the inverse side is
// rewritten to match it. Edges pointing at a deleted entity are counted only.
type Reconciler struct {
	store   store.StoreInterface
	workers int
}

func New(st store.StoreInterface, workers int) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	return &Reconciler{store: st, workers: workers}
}

// CheckEvent re-checks the pair named by a committed edge event.
func (r *Reconciler) CheckEvent(ctx context.Context, ev models.EdgeEvent) (Report, error) {
	from, ok := models.ParseID(ev.From)
	if !ok {
		return Report{}, apperr.BadRequest("invalid event source %q", ev.From)
	}
	to, ok := models.ParseID(ev.To)
	if !ok {
		return Report{}, apperr.BadRequest("invalid event target %q", ev.To)
	}

	switch ev.Kind {
	case models.EdgeFollow:
		return r.checkFollow(ctx, from, to)
	case models.EdgeScrap:
		return r.checkScrap(ctx, from, to)
	case models.EdgeLike, models.EdgeReport:
		return r.checkFeedEdge(ctx, ev.Kind, from, to)
	default:
		return Report{}, apperr.BadRequest("unknown edge kind %q", ev.Kind)
	}
}

// getUser returns nil without error when the user does not exist.
func (r *Reconciler) getUser(ctx context.Context, id string) (*models.User, error) {
	u, err := r.store.GetUser(ctx, id)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	return u, err
}

// plan reads a pair and returns the repair it needs, or nil when it is symmetric.
type plan func(ctx context.Context) (Report, *models.EdgeWrite, error)

// settle runs p twice and repairs only when both passes ask for the same write.
// A live edit that lands between the passes makes them disagree; that edit
// publishes its own event, so the pair is left for that re-check.
func (r *Reconciler) settle(ctx context.Context, kind models.EdgeKind, p plan) (Report, error) {
	rep, w, err := p(ctx)
	if err != nil || w == nil {
		return rep, err
	}
	_, again, err := p(ctx)
	if err != nil {
		return rep, err
	}
	if again == nil || again.Side != w.Side || again.Op != w.Op {
		logg.Debug("reconcile", "Pair changed while checking, skipping repair",
			zap.String("kind", string(kind)), zap.String("owner", w.Owner), zap.String("member", w.Member))
		return rep, nil
	}
	return r.repair(ctx, kind, rep, *again)
}

func (r *Reconciler) checkFollow(ctx context.Context, from, to string) (Report, error) {
	return r.settle(ctx, models.EdgeFollow, func(ctx context.Context) (Report, *models.EdgeWrite, error) {
		return r.planFollow(ctx, from, to)
	})
}

func (r *Reconciler) checkScrap(ctx context.Context, from, to string) (Report, error) {
	return r.settle(ctx, models.EdgeScrap, func(ctx context.Context) (Report, *models.EdgeWrite, error) {
		return r.planScrap(ctx, from, to)
	})
}

func (r *Reconciler) planFollow(ctx context.Context, from, to string) (Report, *models.EdgeWrite, error) {
	rep := Report{Checked: 1}
	user, err := r.getUser(ctx, from)
	if err != nil {
		return rep, nil, err
	}
	target, err := r.getUser(ctx, to)
	if err != nil {
		return rep, nil, err
	}

	switch {
	case user == nil && target == nil:
		return rep, nil, nil
	case user == nil:
		if graph.HasSnapshot(target.Follower, from) {
			r.dangling(models.EdgeFollow, from, to)
			rep.Dangling++
		}
		return rep, nil, nil
	case target == nil:
		if graph.HasSnapshot(user.Following, to) {
			r.dangling(models.EdgeFollow, from, to)
			rep.Dangling++
		}
		return rep, nil, nil
	}

	forward := graph.HasSnapshot(user.Following, to)
	inverse := graph.HasSnapshot(target.Follower, from)
	if forward == inverse {
		return rep, nil, nil
	}

	w := models.EdgeWrite{Side: models.SideFollower, Owner: to, Member: from, At: time.Now().UTC()}
	if forward {
		snap := user.Snapshot()
		w.Op, w.Snapshot = models.OpAdd, &snap
	} else {
		w.Op = models.OpRemove
	}
	return rep, &w, nil
}

func (r *Reconciler) planScrap(ctx context.Context, from, to string) (Report, *models.EdgeWrite, error) {
	rep := Report{Checked: 1}
	user, err := r.getUser(ctx, from)
	if err != nil {
		return rep, nil, err
	}
	st, err := r.store.GetStore(ctx, to)
	if apperr.IsNotFound(err) {
		st, err = nil, nil
	}
	if err != nil {
		return rep, nil, err
	}

	switch {
	case user == nil && st == nil:
		return rep, nil, nil
	case user == nil:
		if graph.HasID(st.Scraps, from) {
			r.dangling(models.EdgeScrap, from, to)
			rep.Dangling++
		}
		return rep, nil, nil
	case st == nil:
		if graph.HasID(user.Scraps, to) {
			r.dangling(models.EdgeScrap, from, to)
			rep.Dangling++
		}
		return rep, nil, nil
	}

	forward := graph.HasID(user.Scraps, to)
	inverse := graph.HasID(st.Scraps, from)
	if forward == inverse {
		return rep, nil, nil
	}

	w := models.EdgeWrite{Side: models.SideStoreScraps, Op: models.OpRemove, Owner: to, Member: from, At: time.Now().UTC()}
	if forward {
		w.Op = models.OpAdd
	}
	return rep, &w, nil
}

// checkFeedEdge only looks for likes or reports left by a deleted user.
func (r *Reconciler) checkFeedEdge(ctx context.Context, kind models.EdgeKind, userID, feedID string) (Report, error) {
	rep := Report{Checked: 1}
	feed, err := r.store.GetFeed(ctx, feedID)
	if apperr.IsNotFound(err) {
		return rep, nil
	}
	if err != nil {
		return rep, err
	}
	members := feed.Likes
	if kind == models.EdgeReport {
		members = feed.Reports
	}
	if !graph.HasID(members, userID) {
		return rep, nil
	}
	user, err := r.getUser(ctx, userID)
	if err != nil {
		return rep, err
	}
	if user == nil {
		r.dangling(kind, userID, feedID)
		rep.Dangling++
	}
	return rep, nil
}

func (r *Reconciler) repair(ctx context.Context, kind models.EdgeKind, rep Report, w models.EdgeWrite) (Report, error) {
	if err := r.store.ApplyEdges(ctx, w); err != nil {
		return rep, err
	}
	metrics.ReconcileRepairs.WithLabelValues(string(kind)).Inc()
	logg.Info("reconcile", "Repaired asymmetric edge",
		zap.String("kind", string(kind)), zap.String("side", string(w.Side)), zap.String("op", string(w.Op)),
		zap.String("owner", w.Owner), zap.String("member", w.Member))
	rep.Repaired++
	return rep, nil
}

func (r *Reconciler) dangling(kind models.EdgeKind, from, to string) {
	metrics.DanglingEdges.WithLabelValues(string(kind)).Inc()
	logg.Info("reconcile", "Edge references a deleted entity",
		zap.String("kind", string(kind)), zap.String("from", from), zap.String("to", to))
}

type pairKey struct {
	kind     models.EdgeKind
	from, to string
}

// Sweep checks every follow and scrap pair reachable from either side.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	userIDs, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return Report{}, err
	}
	storeIDs, err := r.store.ListStoreIDs(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		mu    sync.Mutex
		total Report
		seen  = make(map[pairKey]bool)
	)
	// claim returns false when another worker already took the pair.
	claim := func(k pairKey) bool {
		mu.Lock()
		defer mu.Unlock()
		if seen[k] {
			return false
		}
		seen[k] = true
		return true
	}
	check := func(ctx context.Context, k pairKey) error {
		if !claim(k) {
			return nil
		}
		var rep Report
		var err error
		if k.kind == models.EdgeFollow {
			rep, err = r.checkFollow(ctx, k.from, k.to)
		} else {
			rep, err = r.checkScrap(ctx, k.from, k.to)
		}
		mu.Lock()
		total.add(rep)
		mu.Unlock()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			u, err := r.getUser(gctx, id)
			if err != nil || u == nil {
				return err
			}
			for _, s := range u.Following {
				if err := check(gctx, pairKey{models.EdgeFollow, u.ID, s.ID}); err != nil {
					return err
				}
			}
			for _, s := range u.Follower {
				if err := check(gctx, pairKey{models.EdgeFollow, s.ID, u.ID}); err != nil {
					return err
				}
			}
			for _, sid := range u.Scraps {
				if err := check(gctx, pairKey{models.EdgeScrap, u.ID, sid}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for _, id := range storeIDs {
		id := id
		g.Go(func() error {
			st, err := r.store.GetStore(gctx, id)
			if apperr.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			for _, uid := range st.Scraps {
				if err := check(gctx, pairKey{models.EdgeScrap, uid, st.ID}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err = g.Wait()
	logg.Info("reconcile", "Sweep finished",
		zap.Int("users", len(userIDs)), zap.Int("stores", len(storeIDs)),
		zap.Int("checked", total.Checked), zap.Int("repaired", total.Repaired), zap.Int("dangling", total.Dangling))
	return total, err
}
