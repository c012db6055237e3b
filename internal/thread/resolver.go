package thread

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"go.uber.org/zap"
)

var logg = logger.New()

const maxContentLen = 1000

// Resolver turns a comment's (kind, id) parent reference into the entity it names.
type Resolver struct {
	store store.StoreInterface
}

func New(st store.StoreInterface) *Resolver {
	return &Resolver{store: st}
}

// Resolve looks the reference up in the collection its kind selects.
func (r *Resolver) Resolve(ctx context.Context, ref models.ParentRef) (models.Parent, error) {
	if !ref.Kind.Valid() {
		return nil, apperr.BadRequest("unknown parent type %q", ref.Kind)
	}
	id, ok := models.ParseID(ref.ID)
	if !ok {
		return nil, apperr.BadRequest("invalid parent id %q", ref.ID)
	}

	switch ref.Kind {
	case models.ParentFeed:
		f, err := r.store.GetFeed(ctx, id)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		c, err := r.store.GetComment(ctx, id)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Parent resolves the parent of an existing comment.
func (r *Resolver) Parent(ctx context.Context, commentID string) (models.Parent, error) {
	c, err := r.comment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, c.Parent)
}

// CreateComment checks that the author and the parent exist before anything
// is written, so a stored comment never points at a missing parent.
func (r *Resolver) CreateComment(ctx context.Context, authorID, content string, parent models.ParentRef) (*models.Comment, error) {
	aid, ok := models.ParseID(authorID)
	if !ok {
		return nil, apperr.BadRequest("invalid author id %q", authorID)
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxContentLen {
		return nil, apperr.BadRequest("comment must be 1-%d characters", maxContentLen)
	}
	if _, err := r.store.GetUser(ctx, aid); err != nil {
		return nil, err
	}
	p, err := r.Resolve(ctx, parent)
	if err != nil {
		return nil, err
	}

	id, err := r.store.CreateComment(ctx, models.Comment{
		ID:        models.NewID(),
		AuthorID:  aid,
		Content:   content,
		Parent:    models.ParentRef{Kind: p.ParentKind(), ID: p.ParentID()},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logg.Error("thread", "Failed to create comment", err, zap.String("parent", p.ParentID()))
		return nil, err
	}
	logg.Debug("thread", "Comment created", zap.String("comment", id), zap.String("parent_type", string(p.ParentKind())))
	return r.store.GetComment(ctx, id)
}

// Node is one comment of a thread with its replies.
type Node struct {
	Comment *models.Comment `json:"comment"`
	Replies []*Node         `json:"replies"`
}

// Thread returns the reply tree below a feed or a comment, in creation order.
// The walk is iterative so depth is bounded only by the data.
func (r *Resolver) Thread(ctx context.Context, ref models.ParentRef) ([]*Node, error) {
	p, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	type pending struct {
		id   string
		into *[]*Node
	}
	roots := []*Node{}
	queue := make([]pending, 0, len(p.Children()))
	for _, id := range p.Children() {
		queue = append(queue, pending{id: id, into: &roots})
	}
	seen := map[string]bool{p.ParentID(): true}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := queue[0]
		queue = queue[1:]
		if seen[next.id] {
			continue
		}
		seen[next.id] = true

		c, err := r.store.GetComment(ctx, next.id)
		if apperr.IsNotFound(err) {
			logg.Info("thread", "Skipping dangling reply", zap.String("comment", next.id))
			continue
		}
		if err != nil {
			return nil, err
		}

		n := &Node{Comment: c, Replies: []*Node{}}
		*next.into = append(*next.into, n)
		for _, id := range c.Recomments {
			queue = append(queue, pending{id: id, into: &n.Replies})
		}
	}
	return roots, nil
}

// Root walks parent references upward and returns the feed the thread hangs off.
func (r *Resolver) Root(ctx context.Context, commentID string) (*models.Feed, error) {
	c, err := r.comment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{c.ID: true}
	for c.Parent.Kind == models.ParentComment {
		if seen[c.Parent.ID] {
			return nil, apperr.Internal("resolve thread root", fmt.Errorf("comment %s is its own ancestor", c.Parent.ID))
		}
		seen[c.Parent.ID] = true
		if c, err = r.store.GetComment(ctx, c.Parent.ID); err != nil {
			return nil, err
		}
	}
	if c.Parent.Kind != models.ParentFeed {
		return nil, apperr.Internal("resolve thread root", fmt.Errorf("unknown parent type %q", c.Parent.Kind))
	}
	return r.store.GetFeed(ctx, c.Parent.ID)
}

func (r *Resolver) comment(ctx context.Context, commentID string) (*models.Comment, error) {
	id, ok := models.ParseID(commentID)
	if !ok {
		return nil, apperr.BadRequest("invalid comment id %q", commentID)
	}
	return r.store.GetComment(ctx, id)
}
