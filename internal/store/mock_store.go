package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
)

// MockStore simulates Cassandra operations for testing. Relationship sides are
// kept in the same (side, owner, member) shape as the Cassandra side tables.
type MockStore struct {
	mu       sync.Mutex
	Users    map[string]models.User
	Stores   map[string]models.Store
	Feeds    map[string]models.Feed
	Comments map[string]models.Comment
	Views    map[string]int64
	Sides    map[models.Side]map[string]map[string]sideRow

	ShouldFail bool // flag to simulate failures
	FailApply  bool // ApplyEdges and CreateComment fail without writing anything
	Batches    int  // number of committed edge batches
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[string]models.User),
		Stores:   make(map[string]models.Store),
		Feeds:    make(map[string]models.Feed),
		Comments: make(map[string]models.Comment),
		Views:    make(map[string]int64),
		Sides:    make(map[models.Side]map[string]map[string]sideRow),
	}
}

var errMockFail = errors.New("mock: operation failed")

// SetFailApply toggles FailApply while other goroutines may be using the store.
func (m *MockStore) SetFailApply(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailApply = fail
}

func (m *MockStore) Close() {}

// --- Users ---

func (m *MockStore) CreateUser(ctx context.Context, u models.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errors.New("mock: create user failed")
	}
	for _, other := range m.Users {
		if other.Nickname == u.Nickname {
			return "", apperr.Conflict("nickname already in use")
		}
		if other.Email == u.Email {
			return "", apperr.Conflict("email already in use")
		}
	}
	if u.ID == "" {
		u.ID = models.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Following, u.Follower, u.Scraps = nil, nil, nil
	m.Users[u.ID] = u
	return u.ID, nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	u.InterestedCategory = append([]string(nil), u.InterestedCategory...)
	u.Following = rowSnapshots(m.side(models.SideFollowing, id))
	u.Follower = rowSnapshots(m.side(models.SideFollower, id))
	u.Scraps = rowIDs(m.side(models.SideUserScraps, id))
	return &u, nil
}

func (m *MockStore) GetUserIDByNickname(ctx context.Context, nickname string) (string, error) {
	return m.findUser(func(u models.User) bool { return u.Nickname == nickname })
}

func (m *MockStore) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	return m.findUser(func(u models.User) bool { return u.Email == email })
}

func (m *MockStore) findUser(match func(models.User) bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errMockFail
	}
	for id, u := range m.Users {
		if match(u) {
			return id, nil
		}
	}
	return "", nil
}

func (m *MockStore) UpdateUser(ctx context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	current, ok := m.Users[u.ID]
	if !ok {
		return apperr.NotFound("user %s not found", u.ID)
	}
	for id, other := range m.Users {
		if id != u.ID && other.Nickname == u.Nickname {
			return apperr.Conflict("nickname already in use")
		}
	}
	u.Email = current.Email
	u.CreatedAt = current.CreatedAt
	u.Following, u.Follower, u.Scraps = nil, nil, nil
	m.Users[u.ID] = u
	return nil
}

func (m *MockStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if _, ok := m.Users[id]; !ok {
		return apperr.NotFound("user %s not found", id)
	}
	delete(m.Users, id)
	return nil
}

func (m *MockStore) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return sortedKeys(m.Users), nil
}

// --- Stores ---

func (m *MockStore) CreateStore(ctx context.Context, st models.Store) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errMockFail
	}
	if st.ID == "" {
		st.ID = models.NewID()
	}
	st.Scraps = nil
	m.Stores[st.ID] = st
	return st.ID, nil
}

func (m *MockStore) GetStore(ctx context.Context, id string) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	st, ok := m.Stores[id]
	if !ok {
		return nil, apperr.NotFound("store %s not found", id)
	}
	st.Images = append([]string(nil), st.Images...)
	st.Scraps = rowIDs(m.side(models.SideStoreScraps, id))
	return &st, nil
}

func (m *MockStore) DeleteStore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if _, ok := m.Stores[id]; !ok {
		return apperr.NotFound("store %s not found", id)
	}
	delete(m.Stores, id)
	return nil
}

func (m *MockStore) ListStoreIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	return sortedKeys(m.Stores), nil
}

// --- Feeds ---

func (m *MockStore) CreateFeed(ctx context.Context, f models.Feed) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errMockFail
	}
	if f.ID == "" {
		f.ID = models.NewID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.Comments, f.Likes, f.Reports, f.Views = nil, nil, nil, 0
	m.Feeds[f.ID] = f
	return f.ID, nil
}

func (m *MockStore) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	f, ok := m.Feeds[id]
	if !ok {
		return nil, apperr.NotFound("feed %s not found", id)
	}
	f.Images = append([]string(nil), f.Images...)
	f.Comments = rowIDs(m.side(models.SideFeedComments, id))
	f.Likes = rowIDs(m.side(models.SideFeedLikes, id))
	f.Reports = rowIDs(m.side(models.SideFeedReports, id))
	f.Views = m.Views[id]
	return &f, nil
}

func (m *MockStore) UpdateFeed(ctx context.Context, f models.Feed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	current, ok := m.Feeds[f.ID]
	if !ok {
		return apperr.NotFound("feed %s not found", f.ID)
	}
	current.Title, current.Content, current.StoreID, current.Ratings = f.Title, f.Content, f.StoreID, f.Ratings
	current.Images = append([]string(nil), f.Images...)
	m.Feeds[f.ID] = current
	return nil
}

func (m *MockStore) DeleteFeed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	if _, ok := m.Feeds[id]; !ok {
		return apperr.NotFound("feed %s not found", id)
	}
	delete(m.Feeds, id)
	return nil
}

func (m *MockStore) AddFeedView(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockFail
	}
	m.Views[id]++
	return nil
}

// --- Comments ---

func (m *MockStore) CreateComment(ctx context.Context, c models.Comment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail || m.FailApply {
		return "", errMockFail
	}
	if !c.Parent.Kind.Valid() {
		return "", apperr.BadRequest("unknown parent type %q", c.Parent.Kind)
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Recomments = nil
	m.Comments[c.ID] = c
	m.apply(models.EdgeWrite{
		Side: c.Parent.Kind.ChildSide(), Op: models.OpAdd,
		Owner: c.Parent.ID, Member: c.ID, At: c.CreatedAt,
	})
	return c.ID, nil
}

func (m *MockStore) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errMockFail
	}
	c, ok := m.Comments[id]
	if !ok {
		return nil, apperr.NotFound("comment %s not found", id)
	}
	c.Recomments = rowIDs(m.side(models.SideCommentReplies, id))
	return &c, nil
}

// --- Edges ---

// ApplyEdges validates every write first, then applies them all under one lock.
func (m *MockStore) ApplyEdges(ctx context.Context, writes ...models.EdgeWrite) error {
	for _, w := range writes {
		if err := validateWrite(w); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail || m.FailApply {
		return apperr.Internal("apply edges", errMockFail)
	}
	for _, w := range writes {
		m.apply(w)
	}
	if len(writes) > 0 {
		m.Batches++
	}
	return nil
}

// apply must be called with mu held.
func (m *MockStore) apply(w models.EdgeWrite) {
	owners, ok := m.Sides[w.Side]
	if !ok {
		owners = make(map[string]map[string]sideRow)
		m.Sides[w.Side] = owners
	}
	members, ok := owners[w.Owner]
	if !ok {
		members = make(map[string]sideRow)
		owners[w.Owner] = members
	}

	if w.Op == models.OpRemove {
		delete(members, w.Member)
		return
	}

	at := w.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := sideRow{Member: w.Member, At: at}
	if w.Snapshot != nil {
		row.Nickname, row.Profile = w.Snapshot.Nickname, w.Snapshot.Profile
	}
	members[w.Member] = row
}

// side must be called with mu held.
func (m *MockStore) side(side models.Side, owner string) []sideRow {
	members := m.Sides[side][owner]
	rows := make([]sideRow, 0, len(members))
	for _, r := range members {
		rows = append(rows, r)
	}
	sortRows(rows)
	return rows
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

var errStoreFail = errors.New("mock store failed")

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(ctx context.Context, u models.User) (string, error) {
	return "", errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUser(ctx context.Context, id string) (*models.User, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) GetUserIDByNickname(ctx context.Context, nickname string) (string, error) {
	return "", errors.New("mock store get user by nickname failed")
}

func (m *MockStoreFail) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	return "", errors.New("mock store get user by email failed")
}

func (m *MockStoreFail) UpdateUser(ctx context.Context, u models.User) error { return errStoreFail }
func (m *MockStoreFail) DeleteUser(ctx context.Context, id string) error     { return errStoreFail }

func (m *MockStoreFail) ListUserIDs(ctx context.Context) ([]string, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) CreateStore(ctx context.Context, st models.Store) (string, error) {
	return "", errStoreFail
}

func (m *MockStoreFail) GetStore(ctx context.Context, id string) (*models.Store, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) DeleteStore(ctx context.Context, id string) error { return errStoreFail }

func (m *MockStoreFail) ListStoreIDs(ctx context.Context) ([]string, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) CreateFeed(ctx context.Context, f models.Feed) (string, error) {
	return "", errStoreFail
}

func (m *MockStoreFail) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) UpdateFeed(ctx context.Context, f models.Feed) error { return errStoreFail }
func (m *MockStoreFail) DeleteFeed(ctx context.Context, id string) error     { return errStoreFail }
func (m *MockStoreFail) AddFeedView(ctx context.Context, id string) error    { return errStoreFail }

func (m *MockStoreFail) CreateComment(ctx context.Context, c models.Comment) (string, error) {
	return "", errStoreFail
}

func (m *MockStoreFail) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return nil, errStoreFail
}

func (m *MockStoreFail) ApplyEdges(ctx context.Context, writes ...models.EdgeWrite) error {
	return errors.New("mock store apply edges failed")
}
