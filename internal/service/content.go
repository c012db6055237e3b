package service

import (
	"context"
	"strings"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"go.uber.org/zap"
)

const maxTitleLen = 100

type StoreInput struct {
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Brand               string    `json:"brand"`
	Location            string    `json:"location"`
	Lat                 string    `json:"lat"`
	Lng                 string    `json:"lng"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	Price               int       `json:"price"`
	ReservationRequired bool      `json:"reservation_required"`
	Images              []string  `json:"images"`
}

type FeedInput struct {
	Title   string           `json:"title"`
	Board   models.BoardType `json:"board"`
	Content string           `json:"content"`
	Images  []string         `json:"images"`
	StoreID string           `json:"store_id"`
	Ratings float64          `json:"ratings"`
}

// FeedUpdate holds the editable feed fields. Nil fields are left unchanged.
type FeedUpdate struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Images  []string `json:"images"`
	StoreID *string  `json:"store_id"`
	Ratings *float64 `json:"ratings"`
}

// saveImages stores every blob and returns the resulting URLs in order.
func (s *Service) saveImages(ctx context.Context, blobs []string) ([]string, error) {
	urls := make([]string, 0, len(blobs))
	for _, b := range blobs {
		u, err := s.images.Save(ctx, b)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// --- Stores ---

func (s *Service) CreateStore(ctx context.Context, in StoreInput) (*models.Store, error) {
	for name, v := range map[string]string{
		"title": in.Title, "description": in.Description, "brand": in.Brand, "location": in.Location,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, apperr.BadRequest("%s is required", name)
		}
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return nil, apperr.BadRequest("store needs a start date on or before its end date")
	}
	if in.Price < 0 {
		return nil, apperr.BadRequest("price cannot be negative")
	}

	images, err := s.saveImages(ctx, in.Images)
	if err != nil {
		return nil, err
	}
	id, err := s.store.CreateStore(ctx, models.Store{
		ID:                  models.NewID(),
		Title:               strings.TrimSpace(in.Title),
		Description:         in.Description,
		Brand:               in.Brand,
		Location:            in.Location,
		Lat:                 in.Lat,
		Lng:                 in.Lng,
		StartDate:           in.StartDate,
		EndDate:             in.EndDate,
		Price:               in.Price,
		ReservationRequired: in.ReservationRequired,
		Images:              images,
		CreatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetStore(ctx, id)
}

// DeleteStore removes the store record; scraps pointing at it are left dangling.
func (s *Service) DeleteStore(ctx context.Context, id string) error {
	id, err := parseID(id, "store")
	if err != nil {
		return err
	}
	return s.store.DeleteStore(ctx, id)
}

// --- Feeds ---

func validRatings(r float64) error {
	if r != 0 && (r < 1 || r > 5) {
		return apperr.BadRequest("ratings must be between 1 and 5")
	}
	return nil
}

// storeRef canonicalises an optional store id and checks that the store exists.
func (s *Service) storeRef(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", nil
	}
	st, err := s.GetStore(ctx, id)
	if err != nil {
		return "", err
	}
	return st.ID, nil
}

func (s *Service) CreateFeed(ctx context.Context, authorID string, in FeedInput) (*models.Feed, error) {
	author, err := s.GetUser(ctx, authorID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return nil, apperr.BadRequest("title must be 1-%d characters", maxTitleLen)
	}
	if !in.Board.Valid() {
		return nil, apperr.BadRequest("unknown board %q", in.Board)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.BadRequest("content is required")
	}
	if err := validRatings(in.Ratings); err != nil {
		return nil, err
	}
	storeID, err := s.storeRef(ctx, in.StoreID)
	if err != nil {
		return nil, err
	}
	images, err := s.saveImages(ctx, in.Images)
	if err != nil {
		return nil, err
	}

	id, err := s.store.CreateFeed(ctx, models.Feed{
		ID:        models.NewID(),
		Title:     title,
		AuthorID:  author.ID,
		Board:     in.Board,
		Content:   in.Content,
		Images:    images,
		StoreID:   storeID,
		Ratings:   in.Ratings,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	logg.Info("service", "Feed created", zap.String("feed", id), zap.String("board", string(in.Board)))
	return s.store.GetFeed(ctx, id)
}

// ownFeed loads a feed and checks that userID wrote it.
func (s *Service) ownFeed(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	uid, err := parseID(userID, "user")
	if err != nil {
		return nil, err
	}
	f, err := s.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if f.AuthorID != uid {
		return nil, apperr.Forbidden("feed %s belongs to another user", f.ID)
	}
	return f, nil
}

func (s *Service) UpdateFeed(ctx context.Context, userID, feedID string, in FeedUpdate) (*models.Feed, error) {
	f, err := s.ownFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, apperr.BadRequest("title must be 1-%d characters", maxTitleLen)
		}
		f.Title = title
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, apperr.BadRequest("content is required")
		}
		f.Content = *in.Content
	}
	if in.Ratings != nil {
		if err := validRatings(*in.Ratings); err != nil {
			return nil, err
		}
		f.Ratings = *in.Ratings
	}
	if in.StoreID != nil {
		if f.StoreID, err = s.storeRef(ctx, *in.StoreID); err != nil {
			return nil, err
		}
	}
	if in.Images != nil {
		if f.Images, err = s.saveImages(ctx, in.Images); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateFeed(ctx, *f); err != nil {
		return nil, err
	}
	return s.store.GetFeed(ctx, f.ID)
}

// ViewFeed counts a view and returns the feed.
func (s *Service) ViewFeed(ctx context.Context, id string) (*models.Feed, error) {
	f, err := s.GetFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddFeedView(ctx, f.ID); err != nil {
		return nil, err
	}
	f.Views++
	return f, nil
}

// DeleteFeed removes a feed written by userID. Its comments are kept.
func (s *Service) DeleteFeed(ctx context.Context, userID, feedID string) error {
	f, err := s.ownFeed(ctx, userID, feedID)
	if err != nil {
		return err
	}
	return s.store.DeleteFeed(ctx, f.ID)
}
