package models

import "time"

// Side names one denormalized half of a relationship. Each side is a set of
// members keyed by owner, e.g. SideFollowing owned by a user holds the ids it follows.
type Side string

const (
	SideFollowing      Side = "following"
	SideFollower       Side = "follower"
	SideUserScraps     Side = "user_scraps"
	SideStoreScraps    Side = "store_scraps"
	SideFeedLikes      Side = "feed_likes"
	SideFeedReports    Side = "feed_reports"
	SideFeedComments   Side = "feed_comments"
	SideCommentReplies Side = "comment_replies"
)

// HasSnapshot reports whether members on this side carry a display snapshot.
func (s Side) HasSnapshot() bool {
	return s == SideFollowing || s == SideFollower
}

type EdgeOp string

const (
	OpAdd    EdgeOp = "add"
	OpRemove EdgeOp = "remove"
)

// EdgeWrite is a single-sided mutation. A logical edge operation is a list of
// EdgeWrites that the store applies all-or-nothing.
type EdgeWrite struct {
	Side     Side
	Op       EdgeOp
	Owner    string
	Member   string
	Snapshot *Snapshot // only for sides with HasSnapshot
	At       time.Time
}

type EdgeKind string

const (
	EdgeFollow EdgeKind = "follow"
	EdgeScrap  EdgeKind = "scrap"
	EdgeLike   EdgeKind = "like"
	EdgeReport EdgeKind = "report"
)

// EdgeEvent is published after an edge mutation has been committed.
type EdgeEvent struct {
	Kind EdgeKind  `json:"kind"`
	Op   EdgeOp    `json:"op"`
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}
