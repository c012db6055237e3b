package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/graph"
	"example.com/popular/internal/models"
	"example.com/popular/internal/store"
	"example.com/popular/internal/thread"
	"github.com/stretchr/testify/require"
)

// plainHasher keeps tests fast; bcrypt is covered in auth_test.go.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Verify(pw, hash string) bool    { return hash == "hashed:"+pw }

type memImages struct{ saved []string }

func (m *memImages) Save(ctx context.Context, blob string) (string, error) {
	m.saved = append(m.saved, blob)
	return "/uploads/" + blob, nil
}

func newService(t *testing.T) (*Service, *store.MockStore, *memImages) {
	t.Helper()
	st := store.NewMock()
	img := &memImages{}
	return New(st, graph.New(st, nil), thread.New(st), plainHasher{}, img), st, img
}

func signup(t *testing.T, s *Service, nickname string) *models.User {
	t.Helper()
	u, err := s.Signup(context.Background(), SignupInput{
		Nickname: nickname, Email: nickname + "@Example.com", Password: "password123",
	})
	require.NoError(t, err)
	return u
}

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	s, _, img := newService(t)

	u, err := s.Signup(ctx, SignupInput{
		Nickname: " alice ", Email: "Alice@Example.com", Password: "password123", Profile: "a.png",
		InterestedCategory: []string{"fashion"},
	})
	require.NoError(t, err)
	require.Equal(t, "alice", u.Nickname)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, "/uploads/a.png", u.Profile)
	require.Equal(t, []string{"a.png"}, img.saved)

	got, err := s.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.Login(ctx, "alice@example.com", "wrong-password")
	require.True(t, apperr.IsUnauthorized(err))
	_, err = s.Login(ctx, "nobody@example.com", "password123")
	require.True(t, apperr.IsUnauthorized(err))
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)

	cases := map[string]SignupInput{
		"empty nickname": {Nickname: "", Email: "a@example.com", Password: "password123"},
		"long nickname":  {Nickname: strings.Repeat("n", maxNicknameLen+1), Email: "a@example.com", Password: "password123"},
		"bad email":      {Nickname: "a", Email: "not-an-email", Password: "password123"},
		"short password": {Nickname: "a", Email: "a@example.com", Password: "short"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Signup(ctx, in)
			require.True(t, apperr.IsBadRequest(err))
		})
	}
}

func TestSignupDuplicates(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	signup(t, s, "alice")

	_, err := s.Signup(ctx, SignupInput{Nickname: "alice", Email: "x@example.com", Password: "password123"})
	require.True(t, apperr.IsConflict(err))

	exists, err := s.NicknameExists(ctx, "alice")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = s.EmailExists(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = s.NicknameExists(ctx, "bob")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestUpdateUserKeepsSnapshotsStale(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a, b := signup(t, s, "alice"), signup(t, s, "bob")

	_, err := s.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	nickname, intro, notify := "bobby", "hello", true
	updated, err := s.UpdateUser(ctx, b.ID, UserUpdate{Nickname: &nickname, Introduce: &intro, AllowNotification: &notify})
	require.NoError(t, err)
	require.Equal(t, "bobby", updated.Nickname)
	require.Equal(t, "hello", updated.Introduce)
	require.True(t, updated.AllowNotification)

	alice, err := s.GetUser(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "bob", alice.Following[0].Nickname)
}

func TestUpdateUserPasswordAndConflict(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a := signup(t, s, "alice")
	signup(t, s, "bob")

	pw := "newpassword1"
	_, err := s.UpdateUser(ctx, a.ID, UserUpdate{Password: &pw})
	require.NoError(t, err)
	_, err = s.Login(ctx, "alice@example.com", pw)
	require.NoError(t, err)

	taken := "bob"
	_, err = s.UpdateUser(ctx, a.ID, UserUpdate{Nickname: &taken})
	require.True(t, apperr.IsConflict(err))
}

func TestDeleteUserLeavesEdges(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a, b := signup(t, s, "alice"), signup(t, s, "bob")
	_, err := s.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, b.ID))
	_, err = s.GetUser(ctx, b.ID)
	require.True(t, apperr.IsNotFound(err))

	alice, err := s.GetUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, alice.Following, 1)

	require.True(t, apperr.IsBadRequest(s.DeleteUser(ctx, "nope")))
}

func storeInput() StoreInput {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return StoreInput{
		Title: "popup", Description: "d", Brand: "b", Location: "Seoul",
		StartDate: start, EndDate: start.AddDate(0, 0, 14), Price: 0, Images: []string{"s.png"},
	}
}

func TestCreateStoreAndScrap(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	u := signup(t, s, "alice")

	st, err := s.CreateStore(ctx, storeInput())
	require.NoError(t, err)
	require.Equal(t, []string{"/uploads/s.png"}, st.Images)

	user, err := s.Scrap(ctx, u.ID, st.ID)
	require.NoError(t, err)
	require.Equal(t, []string{st.ID}, user.Scraps)

	got, err := s.GetStore(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, []string{u.ID}, got.Scraps)
}

func TestCreateStoreValidation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)

	in := storeInput()
	in.Brand = " "
	_, err := s.CreateStore(ctx, in)
	require.True(t, apperr.IsBadRequest(err))

	in = storeInput()
	in.EndDate = in.StartDate.AddDate(0, 0, -1)
	_, err = s.CreateStore(ctx, in)
	require.True(t, apperr.IsBadRequest(err))
}

func TestCreateFeed(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	u := signup(t, s, "alice")
	st, err := s.CreateStore(ctx, storeInput())
	require.NoError(t, err)

	f, err := s.CreateFeed(ctx, u.ID, FeedInput{
		Title: "review", Board: models.BoardReview, Content: "great", StoreID: st.ID, Ratings: 4.5,
	})
	require.NoError(t, err)
	require.Equal(t, u.ID, f.AuthorID)
	require.Equal(t, st.ID, f.StoreID)
	require.Equal(t, 4.5, f.Ratings)

	_, err = s.CreateFeed(ctx, u.ID, FeedInput{Title: "t", Board: "news", Content: "c"})
	require.True(t, apperr.IsBadRequest(err))
	_, err = s.CreateFeed(ctx, u.ID, FeedInput{Title: "t", Board: models.BoardFree, Content: "c", Ratings: 6})
	require.True(t, apperr.IsBadRequest(err))
	_, err = s.CreateFeed(ctx, u.ID, FeedInput{Title: "t", Board: models.BoardFree, Content: "c", StoreID: models.NewID()})
	require.True(t, apperr.IsNotFound(err))
	_, err = s.CreateFeed(ctx, models.NewID(), FeedInput{Title: "t", Board: models.BoardFree, Content: "c"})
	require.True(t, apperr.IsNotFound(err))
}

func TestUpdateAndDeleteFeedByAuthorOnly(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a, b := signup(t, s, "alice"), signup(t, s, "bob")
	f, err := s.CreateFeed(ctx, a.ID, FeedInput{Title: "t", Board: models.BoardGather, Content: "c"})
	require.NoError(t, err)

	title := "new title"
	_, err = s.UpdateFeed(ctx, b.ID, f.ID, FeedUpdate{Title: &title})
	require.True(t, apperr.IsForbidden(err))

	updated, err := s.UpdateFeed(ctx, a.ID, f.ID, FeedUpdate{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "new title", updated.Title)
	require.Equal(t, "c", updated.Content)

	require.True(t, apperr.IsForbidden(s.DeleteFeed(ctx, b.ID, f.ID)))
	require.NoError(t, s.DeleteFeed(ctx, a.ID, f.ID))
	_, err = s.GetFeed(ctx, f.ID)
	require.True(t, apperr.IsNotFound(err))
}

func TestViewFeedCounts(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a := signup(t, s, "alice")
	f, err := s.CreateFeed(ctx, a.ID, FeedInput{Title: "t", Board: models.BoardFree, Content: "c"})
	require.NoError(t, err)

	_, err = s.ViewFeed(ctx, f.ID)
	require.NoError(t, err)
	viewed, err := s.ViewFeed(ctx, f.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, viewed.Views)
}

func TestCommentsThroughService(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a := signup(t, s, "alice")
	f, err := s.CreateFeed(ctx, a.ID, FeedInput{Title: "t", Board: models.BoardFree, Content: "c"})
	require.NoError(t, err)

	c, err := s.CreateComment(ctx, a.ID, "hi", models.ParentRef{Kind: models.ParentFeed, ID: f.ID})
	require.NoError(t, err)
	reply, err := s.CreateComment(ctx, a.ID, "re", models.ParentRef{Kind: models.ParentComment, ID: c.ID})
	require.NoError(t, err)

	p, err := s.CommentParent(ctx, reply.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, p.ParentID())

	root, err := s.ThreadRoot(ctx, reply.ID)
	require.NoError(t, err)
	require.Equal(t, f.ID, root.ID)

	nodes, err := s.Thread(ctx, models.ParentRef{Kind: models.ParentFeed, ID: f.ID})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Replies, 1)

	resolved, err := s.ResolveParent(ctx, models.ParentRef{Kind: models.ParentFeed, ID: f.ID})
	require.NoError(t, err)
	require.Equal(t, models.ParentFeed, resolved.ParentKind())
}

func TestLikesThroughService(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	a := signup(t, s, "alice")
	f, err := s.CreateFeed(ctx, a.ID, FeedInput{Title: "t", Board: models.BoardFree, Content: "c"})
	require.NoError(t, err)

	liked, err := s.Like(ctx, a.ID, f.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, liked.Likes)
	reported, err := s.Report(ctx, a.ID, f.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, reported.Reports)
	unliked, err := s.Unlike(ctx, a.ID, f.ID)
	require.NoError(t, err)
	require.Empty(t, unliked.Likes)
}
