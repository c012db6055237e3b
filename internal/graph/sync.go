package graph

import (
	"context"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/metrics"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var logg = logger.New()

// EventPublisher receives an EdgeEvent after the edge has been committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.EdgeEvent) error
}

// Synchronizer applies logical edge operations. Both sides of a relationship
// are written in one ApplyEdges call, so they change together or not at all.
type Synchronizer struct {
	store     store.StoreInterface
	publisher EventPublisher // may be nil
}

func New(st store.StoreInterface, pub EventPublisher) *Synchronizer {
	return &Synchronizer{store: st, publisher: pub}
}

// ids canonicalises both endpoints and rejects self edges.
func ids(from, to, what string) (string, string, error) {
	a, ok := models.ParseID(from)
	if !ok {
		return "", "", apperr.BadRequest("invalid user id %q", from)
	}
	b, ok := models.ParseID(to)
	if !ok {
		return "", "", apperr.BadRequest("invalid %s id %q", what, to)
	}
	if a == b {
		return "", "", apperr.BadRequest("a user cannot %s itself", what)
	}
	return a, b, nil
}

// loadUsers reads both users concurrently.
func (s *Synchronizer) loadUsers(ctx context.Context, userID, targetID string) (*models.User, *models.User, error) {
	var user, target *models.User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.store.GetUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		target, err = s.store.GetUser(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return user, target, nil
}

func (s *Synchronizer) loadUserAndStore(ctx context.Context, userID, storeID string) (*models.User, *models.Store, error) {
	var user *models.User
	var st *models.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.store.GetUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		st, err = s.store.GetStore(gctx, storeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return user, st, nil
}

// pair returns both writes unless both sides were already in the target state.
// The two sides come from separate reads, so a concurrent edit may land between
// them; writing both sides keeps the pair symmetric whatever was observed.
// Adds upsert by (owner, member) and removes delete by key, so rewriting a side
// that already matches is harmless.
func pair(forward, inverse models.EdgeWrite, forwardDone, inverseDone bool) []models.EdgeWrite {
	if forwardDone && inverseDone {
		return nil
	}
	return []models.EdgeWrite{forward, inverse}
}

// commit applies writes, records the outcome and publishes the event.
// An empty write list is a no-op: the edge is already in the requested state.
func (s *Synchronizer) commit(ctx context.Context, ev models.EdgeEvent, writes []models.EdgeWrite) error {
	kind, op := string(ev.Kind), string(ev.Op)
	if len(writes) == 0 {
		metrics.Edge(kind, op, metrics.ResultNoop)
		return nil
	}
	if err := s.store.ApplyEdges(ctx, writes...); err != nil {
		metrics.Edge(kind, op, metrics.ResultError)
		logg.Error("graph", "Failed to apply edge", err,
			zap.String("kind", kind), zap.String("op", op), zap.String("from", ev.From), zap.String("to", ev.To))
		return err
	}
	metrics.Edge(kind, op, metrics.ResultApplied)
	logg.Debug("graph", "Edge applied",
		zap.String("kind", kind), zap.String("op", op), zap.Int("writes", len(writes)))

	if s.publisher != nil {
		// the edge is already committed; a lost event only delays detection
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logg.Error("graph", "Failed to publish edge event", err, zap.String("kind", kind))
		}
	}
	return nil
}

// Follow adds target to user's following and user to target's follower.
func (s *Synchronizer) Follow(ctx context.Context, userID, targetID string) (*models.User, error) {
	userID, targetID, err := ids(userID, targetID, "follow")
	if err != nil {
		return nil, err
	}
	user, target, err := s.loadUsers(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	targetSnap, userSnap := target.Snapshot(), user.Snapshot()
	writes := pair(
		models.EdgeWrite{Side: models.SideFollowing, Op: models.OpAdd, Owner: user.ID, Member: target.ID, Snapshot: &targetSnap, At: at},
		models.EdgeWrite{Side: models.SideFollower, Op: models.OpAdd, Owner: target.ID, Member: user.ID, Snapshot: &userSnap, At: at},
		HasSnapshot(user.Following, target.ID),
		HasSnapshot(target.Follower, user.ID),
	)

	ev := models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: user.ID, To: target.ID, At: at}
	if err := s.commit(ctx, ev, writes); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, user.ID)
}

// Unfollow removes the edge from both sides. Removing an absent edge is not an error.
func (s *Synchronizer) Unfollow(ctx context.Context, userID, targetID string) (*models.User, error) {
	userID, targetID, err := ids(userID, targetID, "follow")
	if err != nil {
		return nil, err
	}
	user, target, err := s.loadUsers(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	writes := pair(
		models.EdgeWrite{Side: models.SideFollowing, Op: models.OpRemove, Owner: user.ID, Member: target.ID},
		models.EdgeWrite{Side: models.SideFollower, Op: models.OpRemove, Owner: target.ID, Member: user.ID},
		!HasSnapshot(user.Following, target.ID),
		!HasSnapshot(target.Follower, user.ID),
	)

	ev := models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpRemove, From: user.ID, To: target.ID, At: time.Now().UTC()}
	if err := s.commit(ctx, ev, writes); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, user.ID)
}

// Scrap bookmarks a store: storeID joins user.Scraps and userID joins store.Scraps.
func (s *Synchronizer) Scrap(ctx context.Context, userID, storeID string) (*models.User, error) {
	userID, storeID, err := ids(userID, storeID, "scrap")
	if err != nil {
		return nil, err
	}
	user, st, err := s.loadUserAndStore(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	at := time.Now().UTC()
	writes := pair(
		models.EdgeWrite{Side: models.SideUserScraps, Op: models.OpAdd, Owner: user.ID, Member: st.ID, At: at},
		models.EdgeWrite{Side: models.SideStoreScraps, Op: models.OpAdd, Owner: st.ID, Member: user.ID, At: at},
		HasID(user.Scraps, st.ID),
		HasID(st.Scraps, user.ID),
	)

	ev := models.EdgeEvent{Kind: models.EdgeScrap, Op: models.OpAdd, From: user.ID, To: st.ID, At: at}
	if err := s.commit(ctx, ev, writes); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, user.ID)
}

func (s *Synchronizer) Unscrap(ctx context.Context, userID, storeID string) (*models.User, error) {
	userID, storeID, err := ids(userID, storeID, "scrap")
	if err != nil {
		return nil, err
	}
	user, st, err := s.loadUserAndStore(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	writes := pair(
		models.EdgeWrite{Side: models.SideUserScraps, Op: models.OpRemove, Owner: user.ID, Member: st.ID},
		models.EdgeWrite{Side: models.SideStoreScraps, Op: models.OpRemove, Owner: st.ID, Member: user.ID},
		!HasID(user.Scraps, st.ID),
		!HasID(st.Scraps, user.ID),
	)

	ev := models.EdgeEvent{Kind: models.EdgeScrap, Op: models.OpRemove, From: user.ID, To: st.ID, At: time.Now().UTC()}
	if err := s.commit(ctx, ev, writes); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, user.ID)
}
