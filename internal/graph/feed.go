package graph

import (
	"context"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"golang.org/x/sync/errgroup"
)

// Likes and reports are recorded on the feed only; the user document keeps no
// inverse side for them.

func (s *Synchronizer) Like(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.feedEdge(ctx, models.EdgeLike, models.SideFeedLikes, models.OpAdd, userID, feedID)
}

func (s *Synchronizer) Unlike(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.feedEdge(ctx, models.EdgeLike, models.SideFeedLikes, models.OpRemove, userID, feedID)
}

// Report flags a feed. Reports cannot be withdrawn.
func (s *Synchronizer) Report(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.feedEdge(ctx, models.EdgeReport, models.SideFeedReports, models.OpAdd, userID, feedID)
}

func (s *Synchronizer) feedEdge(ctx context.Context, kind models.EdgeKind, side models.Side, op models.EdgeOp, userID, feedID string) (*models.Feed, error) {
	uid, ok := models.ParseID(userID)
	if !ok {
		return nil, apperr.BadRequest("invalid user id %q", userID)
	}
	fid, ok := models.ParseID(feedID)
	if !ok {
		return nil, apperr.BadRequest("invalid feed id %q", feedID)
	}

	var feed *models.Feed
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.store.GetUser(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		feed, err = s.store.GetFeed(gctx, fid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	members := feed.Likes
	if side == models.SideFeedReports {
		members = feed.Reports
	}

	at := time.Now().UTC()
	var writes []models.EdgeWrite
	if present := HasID(members, uid); present != (op == models.OpAdd) {
		writes = append(writes, models.EdgeWrite{Side: side, Op: op, Owner: fid, Member: uid, At: at})
	}

	ev := models.EdgeEvent{Kind: kind, Op: op, From: uid, To: fid, At: at}
	if err := s.commit(ctx, ev, writes); err != nil {
		return nil, err
	}
	return s.store.GetFeed(ctx, fid)
}
