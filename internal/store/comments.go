package store

import (
	"context"
	"errors"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"github.com/gocql/gocql"
)

// --- Comment operations ---

// CreateComment writes the comment row and the parent's child entry in one LOGGED batch.
func (s *Store) CreateComment(ctx context.Context, c models.Comment) (string, error) {
	if !c.Parent.Kind.Valid() {
		return "", apperr.BadRequest("unknown parent type %q", c.Parent.Kind)
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	attach, args, err := edgeStatement(models.EdgeWrite{
		Side:   c.Parent.Kind.ChildSide(),
		Op:     models.OpAdd,
		Owner:  c.Parent.ID,
		Member: c.ID,
		At:     c.CreatedAt,
	})
	if err != nil {
		return "", err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO comments (comment_id, author_id, content, parent_type, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.AuthorID, c.Content, string(c.Parent.Kind), c.Parent.ID, c.CreatedAt,
	)
	batch.Query(attach, args...)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to create comment", err)
		return "", err
	}

	logg.Info("store", "Comment created and attached to its parent (content anonymized)")
	return c.ID, nil
}

// GetComment returns the comment with its direct replies.
func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c := &models.Comment{ID: id}
	var kind string
	err := s.Session.Query(`
		SELECT author_id, content, parent_type, parent_id, created_at
		FROM comments WHERE comment_id = ?`, id,
	).WithContext(ctx).Scan(&c.AuthorID, &c.Content, &kind, &c.Parent.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperr.NotFound("comment %s not found", id)
		}
		logg.Error("store", "Failed to query comment", err)
		return nil, err
	}
	c.Parent.Kind = models.ParentKind(kind)

	replies, err := s.loadSide(ctx, models.SideCommentReplies, id)
	if err != nil {
		logg.Error("store", "Failed to load comment replies", err)
		return nil, err
	}
	c.Recomments = rowIDs(replies)
	return c, nil
}
