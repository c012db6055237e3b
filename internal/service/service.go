package service

import (
	"context"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/graph"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"example.com/popular/internal/thread"
)

var logg = logger.New()

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// ImageStore persists an uploaded image and returns the URL it is served from.
type ImageStore interface {
	Save(ctx context.Context, blob string) (string, error)
}

// Service is the entity layer used by the HTTP handlers. Edge mutations go
// through the Synchronizer and comment parents through the Resolver; nothing
// here writes a relationship side directly.
type Service struct {
	store  store.StoreInterface
	graph  *graph.Synchronizer
	thread *thread.Resolver
	auth   Hasher
	images ImageStore
}

func New(st store.StoreInterface, g *graph.Synchronizer, r *thread.Resolver, auth Hasher, images ImageStore) *Service {
	return &Service{store: st, graph: g, thread: r, auth: auth, images: images}
}

func parseID(id, what string) (string, error) {
	canonical, ok := models.ParseID(id)
	if !ok {
		return "", apperr.BadRequest("invalid %s id %q", what, id)
	}
	return canonical, nil
}

// --- Reads ---

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	id, err := parseID(id, "user")
	if err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) GetStore(ctx context.Context, id string) (*models.Store, error) {
	id, err := parseID(id, "store")
	if err != nil {
		return nil, err
	}
	return s.store.GetStore(ctx, id)
}

func (s *Service) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	id, err := parseID(id, "feed")
	if err != nil {
		return nil, err
	}
	return s.store.GetFeed(ctx, id)
}

func (s *Service) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	id, err := parseID(id, "comment")
	if err != nil {
		return nil, err
	}
	return s.store.GetComment(ctx, id)
}

// --- Edges ---

func (s *Service) Follow(ctx context.Context, userID, targetID string) (*models.User, error) {
	return s.graph.Follow(ctx, userID, targetID)
}

func (s *Service) Unfollow(ctx context.Context, userID, targetID string) (*models.User, error) {
	return s.graph.Unfollow(ctx, userID, targetID)
}

func (s *Service) Scrap(ctx context.Context, userID, storeID string) (*models.User, error) {
	return s.graph.Scrap(ctx, userID, storeID)
}

func (s *Service) Unscrap(ctx context.Context, userID, storeID string) (*models.User, error) {
	return s.graph.Unscrap(ctx, userID, storeID)
}

func (s *Service) Like(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.graph.Like(ctx, userID, feedID)
}

func (s *Service) Unlike(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.graph.Unlike(ctx, userID, feedID)
}

func (s *Service) Report(ctx context.Context, userID, feedID string) (*models.Feed, error) {
	return s.graph.Report(ctx, userID, feedID)
}

// --- Comments ---

func (s *Service) CreateComment(ctx context.Context, authorID, content string, parent models.ParentRef) (*models.Comment, error) {
	return s.thread.CreateComment(ctx, authorID, content, parent)
}

func (s *Service) ResolveParent(ctx context.Context, ref models.ParentRef) (models.Parent, error) {
	return s.thread.Resolve(ctx, ref)
}

// CommentParent resolves the feed or comment an existing comment is attached to.
func (s *Service) CommentParent(ctx context.Context, commentID string) (models.Parent, error) {
	return s.thread.Parent(ctx, commentID)
}

func (s *Service) Thread(ctx context.Context, ref models.ParentRef) ([]*thread.Node, error) {
	return s.thread.Thread(ctx, ref)
}

func (s *Service) ThreadRoot(ctx context.Context, commentID string) (*models.Feed, error) {
	return s.thread.Root(ctx, commentID)
}
