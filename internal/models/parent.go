package models

// ParentKind tags which collection a comment's parent id refers to.
type ParentKind string

const (
	ParentFeed    ParentKind = "Feed"
	ParentComment ParentKind = "Comment"
)

func (k ParentKind) Valid() bool {
	return k == ParentFeed || k == ParentComment
}

// ParentRef is the discriminated pointer from a comment to the entity it is attached to.
type ParentRef struct {
	Kind ParentKind `json:"type"`
	ID   string     `json:"id"`
}

// Parent is a resolved parent reference: either a *Feed or a *Comment.
type Parent interface {
	ParentKind() ParentKind
	ParentID() string
	// Children lists the ids of the comments attached directly to this parent.
	Children() []string
}

func (f *Feed) ParentKind() ParentKind { return ParentFeed }
func (f *Feed) ParentID() string       { return f.ID }
func (f *Feed) Children() []string     { return f.Comments }

func (c *Comment) ParentKind() ParentKind { return ParentComment }
func (c *Comment) ParentID() string       { return c.ID }
func (c *Comment) Children() []string     { return c.Recomments }

// ChildSide returns the side a new child of this parent kind is recorded on.
func (k ParentKind) ChildSide() Side {
	if k == ParentComment {
		return SideCommentReplies
	}
	return SideFeedComments
}
