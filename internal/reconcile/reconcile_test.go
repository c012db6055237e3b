package reconcile

import (
	"context"
	"testing"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"github.com/stretchr/testify/require"
)

func user(t *testing.T, st *store.MockStore, nickname string) string {
	t.Helper()
	id, err := st.CreateUser(context.Background(), models.User{Nickname: nickname, Email: nickname + "@example.com"})
	require.NoError(t, err)
	return id
}

func shop(t *testing.T, st *store.MockStore) string {
	t.Helper()
	id, err := st.CreateStore(context.Background(), models.Store{Title: "popup"})
	require.NoError(t, err)
	return id
}

// half writes a single side, the way the old two-write code could leave it.
func half(t *testing.T, st *store.MockStore, side models.Side, owner, member string) {
	t.Helper()
	w := models.EdgeWrite{Side: side, Op: models.OpAdd, Owner: owner, Member: member}
	if side.HasSnapshot() {
		w.Snapshot = &models.Snapshot{ID: member, Nickname: "n"}
	}
	require.NoError(t, st.ApplyEdges(context.Background(), w))
}

func TestCheckEventAddsMissingFollower(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")
	half(t, st, models.SideFollowing, a, b)

	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1, Repaired: 1}, rep)

	target, err := st.GetUser(ctx, b)
	require.NoError(t, err)
	require.Len(t, target.Follower, 1)
	require.Equal(t, a, target.Follower[0].ID)
	require.Equal(t, "a", target.Follower[0].Nickname)
}

func TestCheckEventRemovesOrphanFollower(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")
	half(t, st, models.SideFollower, b, a)

	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpRemove, From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Repaired)

	target, err := st.GetUser(ctx, b)
	require.NoError(t, err)
	require.Empty(t, target.Follower)
}

func TestStaleEventDoesNotUndoNewerState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")

	// the edge was added and removed; the add event arrives late
	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: a, To: b, At: time.Now()})
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1}, rep)

	u, err := st.GetUser(ctx, a)
	require.NoError(t, err)
	require.Empty(t, u.Following)
	require.Zero(t, st.Batches)
}

func TestCheckEventScrap(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	u := user(t, st, "u")
	s := shop(t, st)
	half(t, st, models.SideUserScraps, u, s)

	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeScrap, Op: models.OpAdd, From: u, To: s})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Repaired)

	got, err := st.GetStore(ctx, s)
	require.NoError(t, err)
	require.Equal(t, []string{u}, got.Scraps)
}

func TestCheckEventCountsDangling(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")
	half(t, st, models.SideFollowing, a, b)
	require.NoError(t, st.DeleteUser(ctx, b))

	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1, Dangling: 1}, rep)

	// dangling entries are reported, never removed
	u, err := st.GetUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, u.Following, 1)
}

func TestCheckEventLikeFromDeletedUser(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a := user(t, st, "a")
	feed, err := st.CreateFeed(ctx, models.Feed{Title: "t", AuthorID: a, Board: models.BoardFree})
	require.NoError(t, err)
	half(t, st, models.SideFeedLikes, feed, a)
	require.NoError(t, st.DeleteUser(ctx, a))

	rep, err := New(st, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeLike, Op: models.OpAdd, From: a, To: feed})
	require.NoError(t, err)
	require.Equal(t, 1, rep.Dangling)
}

func TestCheckEventRejectsBadEvents(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMock(), 1)

	_, err := r.CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, From: "x", To: models.NewID()})
	require.True(t, apperr.IsBadRequest(err))
	_, err = r.CheckEvent(ctx, models.EdgeEvent{Kind: "block", From: models.NewID(), To: models.NewID()})
	require.True(t, apperr.IsBadRequest(err))
}

func TestSweepRestoresSymmetry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b, c := user(t, st, "a"), user(t, st, "b"), user(t, st, "c")
	s1, s2 := shop(t, st), shop(t, st)

	half(t, st, models.SideFollowing, a, b)   // missing follower
	half(t, st, models.SideFollower, c, a)    // orphan follower
	half(t, st, models.SideUserScraps, b, s1) // missing store side
	half(t, st, models.SideStoreScraps, s2, c)

	rep, err := New(st, 4).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, rep.Repaired)
	require.Equal(t, 4, rep.Checked)
	require.Zero(t, rep.Dangling)

	ub, err := st.GetUser(ctx, b)
	require.NoError(t, err)
	require.Len(t, ub.Follower, 1)
	uc, err := st.GetUser(ctx, c)
	require.NoError(t, err)
	require.Empty(t, uc.Follower)
	g1, err := st.GetStore(ctx, s1)
	require.NoError(t, err)
	require.Equal(t, []string{b}, g1.Scraps)
	g2, err := st.GetStore(ctx, s2)
	require.NoError(t, err)
	require.Empty(t, g2.Scraps)

	again, err := New(st, 4).Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, again.Repaired)
}

func TestSweepStoreFailure(t *testing.T) {
	_, err := New(&store.MockStoreFail{}, 2).Sweep(context.Background())
	require.Error(t, err)
}

// editingStore runs edit once, after the first `after` user reads.
type editingStore struct {
	*store.MockStore
	after int
	edit  func()
	reads int
}

func (s *editingStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	if s.reads == s.after && s.edit != nil {
		s.edit()
		s.edit = nil
	}
	s.reads++
	return s.MockStore.GetUser(ctx, id)
}

func TestCheckEventSkipsRepairWhenPairChangesMidCheck(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")
	half(t, st, models.SideFollowing, a, b)

	// the first pass sees following without follower; then a unfollows
	editing := &editingStore{MockStore: st, after: 2, edit: func() {
		require.NoError(t, st.ApplyEdges(ctx,
			models.EdgeWrite{Side: models.SideFollowing, Op: models.OpRemove, Owner: a, Member: b},
			models.EdgeWrite{Side: models.SideFollower, Op: models.OpRemove, Owner: b, Member: a},
		))
	}}

	rep, err := New(editing, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1}, rep)

	source, err := st.GetUser(ctx, a)
	require.NoError(t, err)
	target, err := st.GetUser(ctx, b)
	require.NoError(t, err)
	require.Empty(t, source.Following)
	require.Empty(t, target.Follower, "no follower row for an edge that no longer exists")
}

func TestCheckEventRepairsWhenPairIsStable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	a, b := user(t, st, "a"), user(t, st, "b")
	half(t, st, models.SideFollowing, a, b)

	counting := &editingStore{MockStore: st}
	rep, err := New(counting, 1).CheckEvent(ctx, models.EdgeEvent{Kind: models.EdgeFollow, Op: models.OpAdd, From: a, To: b})
	require.NoError(t, err)
	require.Equal(t, Report{Checked: 1, Repaired: 1}, rep)
	require.Equal(t, 4, counting.reads, "both sides are read again before the repair")
}
