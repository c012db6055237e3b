package store

import (
	"context"
	"errors"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"
)

// --- Store (popup store) operations ---

func (s *Store) CreateStore(ctx context.Context, st models.Store) (string, error) {
	if st.ID == "" {
		st.ID = models.NewID()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}

	if err := s.Session.Query(`
		INSERT INTO stores (store_id, title, description, brand, location, lat, lng,
			start_date, end_date, price, reservation_required, images, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Title, st.Description, st.Brand, st.Location, st.Lat, st.Lng,
		st.StartDate, st.EndDate, st.Price, st.ReservationRequired, st.Images, st.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add store", err)
		return "", err
	}

	logg.Info("store", "Store added to stores table")
	return st.ID, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*models.Store, error) {
	st := &models.Store{ID: id}
	err := s.Session.Query(`
		SELECT title, description, brand, location, lat, lng, start_date, end_date,
			price, reservation_required, images, created_at
		FROM stores WHERE store_id = ?`, id,
	).WithContext(ctx).Scan(
		&st.Title, &st.Description, &st.Brand, &st.Location, &st.Lat, &st.Lng, &st.StartDate, &st.EndDate,
		&st.Price, &st.ReservationRequired, &st.Images, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperr.NotFound("store %s not found", id)
		}
		logg.Error("store", "Failed to query store", err)
		return nil, err
	}

	scraps, err := s.loadSide(ctx, models.SideStoreScraps, id)
	if err != nil {
		logg.Error("store", "Failed to load store scraps", err)
		return nil, err
	}
	st.Scraps = rowIDs(scraps)
	return st, nil
}

func (s *Store) DeleteStore(ctx context.Context, id string) error {
	if err := s.exists(ctx, `SELECT store_id FROM stores WHERE store_id = ?`, id, "store"); err != nil {
		return err
	}
	if err := s.Session.Query(`DELETE FROM stores WHERE store_id = ?`, id).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to delete store", err)
		return err
	}
	return nil
}

func (s *Store) ListStoreIDs(ctx context.Context) ([]string, error) {
	return s.scanIDs(ctx, `SELECT store_id FROM stores`)
}

// --- Feed (post) operations ---

func (s *Store) CreateFeed(ctx context.Context, f models.Feed) (string, error) {
	if f.ID == "" {
		f.ID = models.NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	if err := s.Session.Query(`
		INSERT INTO feeds (feed_id, title, author_id, board, content, images, store_id, ratings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Title, f.AuthorID, string(f.Board), f.Content, f.Images, f.StoreID, f.Ratings, f.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add feed", err)
		return "", err
	}

	logg.Info("store", "Feed added to feeds table (content anonymized)")
	return f.ID, nil
}

// GetFeed returns the feed with its comment, like and report sides and view count.
func (s *Store) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	f := &models.Feed{ID: id}
	var board string
	err := s.Session.Query(`
		SELECT title, author_id, board, content, images, store_id, ratings, created_at
		FROM feeds WHERE feed_id = ?`, id,
	).WithContext(ctx).Scan(&f.Title, &f.AuthorID, &board, &f.Content, &f.Images, &f.StoreID, &f.Ratings, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperr.NotFound("feed %s not found", id)
		}
		logg.Error("store", "Failed to query feed", err)
		return nil, err
	}
	f.Board = models.BoardType(board)

	var comments, likes, reports []sideRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		comments, err = s.loadSide(gctx, models.SideFeedComments, id)
		return err
	})
	g.Go(func() (err error) {
		likes, err = s.loadSide(gctx, models.SideFeedLikes, id)
		return err
	})
	g.Go(func() (err error) {
		reports, err = s.loadSide(gctx, models.SideFeedReports, id)
		return err
	})
	g.Go(func() error {
		err := s.Session.Query(`SELECT views FROM feed_views WHERE feed_id = ?`, id).WithContext(gctx).Scan(&f.Views)
		if errors.Is(err, gocql.ErrNotFound) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		logg.Error("store", "Failed to hydrate feed", err)
		return nil, err
	}

	f.Comments = rowIDs(comments)
	f.Likes = rowIDs(likes)
	f.Reports = rowIDs(reports)
	return f, nil
}

// UpdateFeed rewrites the editable columns. Author, board and creation time are fixed.
func (s *Store) UpdateFeed(ctx context.Context, f models.Feed) error {
	if err := s.exists(ctx, `SELECT feed_id FROM feeds WHERE feed_id = ?`, f.ID, "feed"); err != nil {
		return err
	}
	if err := s.Session.Query(`
		UPDATE feeds SET title = ?, content = ?, images = ?, store_id = ?, ratings = ?
		WHERE feed_id = ?`,
		f.Title, f.Content, f.Images, f.StoreID, f.Ratings, f.ID,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to update feed", err)
		return err
	}
	return nil
}

func (s *Store) DeleteFeed(ctx context.Context, id string) error {
	if err := s.exists(ctx, `SELECT feed_id FROM feeds WHERE feed_id = ?`, id, "feed"); err != nil {
		return err
	}
	if err := s.Session.Query(`DELETE FROM feeds WHERE feed_id = ?`, id).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to delete feed", err)
		return err
	}
	return nil
}

func (s *Store) AddFeedView(ctx context.Context, id string) error {
	if err := s.Session.Query(
		`UPDATE feed_views SET views = views + 1 WHERE feed_id = ?`, id,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to count feed view", err)
		return err
	}
	return nil
}

func (s *Store) exists(ctx context.Context, stmt, id, what string) error {
	var found string
	err := s.Session.Query(stmt, id).WithContext(ctx).Scan(&found)
	if errors.Is(err, gocql.ErrNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return err
}
