package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"github.com/gocql/gocql"
)

// sideTable maps a relationship side onto its Cassandra table. Every side
// table is keyed by (owner, member), so adding an edge twice rewrites one row.
type sideTable struct {
	table    string
	owner    string
	member   string
	snapshot bool
}

var sideTables = map[models.Side]sideTable{
	models.SideFollowing:      {table: "user_following", owner: "user_id", member: "target_id", snapshot: true},
	models.SideFollower:       {table: "user_followers", owner: "user_id", member: "follower_id", snapshot: true},
	models.SideUserScraps:     {table: "user_scraps", owner: "user_id", member: "store_id"},
	models.SideStoreScraps:    {table: "store_scraps", owner: "store_id", member: "user_id"},
	models.SideFeedLikes:      {table: "feed_likes", owner: "feed_id", member: "user_id"},
	models.SideFeedReports:    {table: "feed_reports", owner: "feed_id", member: "user_id"},
	models.SideFeedComments:   {table: "feed_comments", owner: "feed_id", member: "comment_id"},
	models.SideCommentReplies: {table: "comment_replies", owner: "comment_id", member: "reply_id"},
}

// sideRow is one member read back from a side table.
type sideRow struct {
	Member   string
	Nickname string
	Profile  string
	At       time.Time
}

// validateWrite rejects writes the store cannot apply, before anything is sent.
func validateWrite(w models.EdgeWrite) error {
	t, ok := sideTables[w.Side]
	if !ok {
		return apperr.BadRequest("unknown relationship side %q", w.Side)
	}
	if w.Owner == "" || w.Member == "" {
		return apperr.BadRequest("edge write on %s needs owner and member", w.Side)
	}
	if w.Op != models.OpAdd && w.Op != models.OpRemove {
		return apperr.BadRequest("unknown edge op %q", w.Op)
	}
	if w.Op == models.OpAdd && t.snapshot && w.Snapshot == nil {
		return apperr.BadRequest("edge write on %s needs a snapshot", w.Side)
	}
	return nil
}

// edgeStatement renders one write as a CQL statement and its bind values.
func edgeStatement(w models.EdgeWrite) (string, []interface{}, error) {
	if err := validateWrite(w); err != nil {
		return "", nil, err
	}
	t := sideTables[w.Side]

	if w.Op == models.OpRemove {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND %s = ?`, t.table, t.owner, t.member)
		return stmt, []interface{}{w.Owner, w.Member}, nil
	}

	at := w.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if t.snapshot {
		stmt := fmt.Sprintf(`INSERT INTO %s (%s, %s, nickname, profile, created_at) VALUES (?, ?, ?, ?, ?)`,
			t.table, t.owner, t.member)
		return stmt, []interface{}{w.Owner, w.Member, w.Snapshot.Nickname, w.Snapshot.Profile, at}, nil
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s, %s, created_at) VALUES (?, ?, ?)`, t.table, t.owner, t.member)
	return stmt, []interface{}{w.Owner, w.Member, at}, nil
}

// ApplyEdges writes all sides in one LOGGED batch: Cassandra guarantees that
// either every statement of the batch is eventually applied or none is.
func (s *Store) ApplyEdges(ctx context.Context, writes ...models.EdgeWrite) error {
	if len(writes) == 0 {
		return nil
	}
	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, w := range writes {
		stmt, args, err := edgeStatement(w)
		if err != nil {
			return err
		}
		batch.Query(stmt, args...)
	}

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to apply edge batch", err)
		return apperr.Internal("apply edges", err)
	}

	logg.Debug("store", fmt.Sprintf("Applied %d edge writes atomically", len(writes)))
	return nil
}

// loadSide reads every member of one side, ordered by creation time then id.
func (s *Store) loadSide(ctx context.Context, side models.Side, owner string) ([]sideRow, error) {
	t, ok := sideTables[side]
	if !ok {
		return nil, apperr.BadRequest("unknown relationship side %q", side)
	}

	var rows []sideRow
	if t.snapshot {
		iter := s.Session.Query(
			fmt.Sprintf(`SELECT %s, nickname, profile, created_at FROM %s WHERE %s = ?`, t.member, t.table, t.owner),
			owner,
		).WithContext(ctx).Iter()
		var r sideRow
		for iter.Scan(&r.Member, &r.Nickname, &r.Profile, &r.At) {
			rows = append(rows, r)
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("load %s: %w", side, err)
		}
	} else {
		iter := s.Session.Query(
			fmt.Sprintf(`SELECT %s, created_at FROM %s WHERE %s = ?`, t.member, t.table, t.owner),
			owner,
		).WithContext(ctx).Iter()
		var r sideRow
		for iter.Scan(&r.Member, &r.At) {
			rows = append(rows, r)
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("load %s: %w", side, err)
		}
	}

	sortRows(rows)
	return rows, nil
}

func sortRows(rows []sideRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].At.Equal(rows[j].At) {
			return rows[i].At.Before(rows[j].At)
		}
		return rows[i].Member < rows[j].Member
	})
}

func rowIDs(rows []sideRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Member)
	}
	return ids
}

func rowSnapshots(rows []sideRow) []models.Snapshot {
	snaps := make([]models.Snapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, models.Snapshot{ID: r.Member, Nickname: r.Nickname, Profile: r.Profile, At: r.At})
	}
	return snaps
}
