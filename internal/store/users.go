package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"
)

// --- User operations ---

// GetUserIDByNickname returns the existing user_id by nickname.
// If the user does not exist, it returns empty string without an error.
func (s *Store) GetUserIDByNickname(ctx context.Context, nickname string) (string, error) {
	return s.lookupIndex(ctx, `SELECT user_id FROM users_by_nickname WHERE nickname = ?`, nickname)
}

// GetUserIDByEmail returns the existing user_id by email, or "" when absent.
func (s *Store) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	return s.lookupIndex(ctx, `SELECT user_id FROM users_by_email WHERE email = ?`, email)
}

func (s *Store) lookupIndex(ctx context.Context, stmt, key string) (string, error) {
	var id string
	err := s.Session.Query(stmt, key).WithContext(ctx).Scan(&id)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return "", nil
		}
		logg.Error("store", "Failed to query user index", err)
		return "", err
	}
	return id, nil
}

// reserve claims a unique index entry with a lightweight transaction.
// It reports false when another user already holds the key.
func (s *Store) reserve(ctx context.Context, table, column, key, userID string) (bool, error) {
	result := make(map[string]interface{})
	applied, err := s.Session.Query(
		fmt.Sprintf(`INSERT INTO %s (%s, user_id) VALUES (?, ?) IF NOT EXISTS`, table, column),
		key, userID,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to reserve "+column, err)
		return false, err
	}
	return applied, nil
}

func (s *Store) release(ctx context.Context, table, column, key string) {
	err := s.Session.Query(
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, column), key,
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to release "+column+" reservation", err)
	}
}

// CreateUser inserts a user after reserving its nickname and email.
// A taken nickname or email is reported as a Conflict.
func (s *Store) CreateUser(ctx context.Context, u models.User) (string, error) {
	if u.ID == "" {
		u.ID = models.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	insert := func() error {
		err := s.Session.Query(`
			INSERT INTO users (user_id, nickname, email, pw_hash, profile, introduce,
				phone_number, interested_category, allow_notification, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Nickname, u.Email, u.PasswordHash, u.Profile, u.Introduce,
			u.PhoneNumber, u.InterestedCategory, u.AllowNotification, u.CreatedAt,
		).WithContext(ctx).Exec()
		if err != nil {
			logg.Error("store", "Failed to create user in main table", err)
		}
		return err
	}
	if err := writeWithClaims(ctx, s, u.ID, insert, nicknameClaim(u.Nickname), emailClaim(u.Email)); err != nil {
		return "", err
	}

	logg.Info("store", "User created successfully (nickname anonymized)")
	return u.ID, nil
}

func (s *Store) getUserRow(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{ID: id}
	err := s.Session.Query(`
		SELECT nickname, email, pw_hash, profile, introduce, phone_number,
			interested_category, allow_notification, created_at
		FROM users WHERE user_id = ?`, id,
	).WithContext(ctx).Scan(
		&u.Nickname, &u.Email, &u.PasswordHash, &u.Profile, &u.Introduce, &u.PhoneNumber,
		&u.InterestedCategory, &u.AllowNotification, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperr.NotFound("user %s not found", id)
		}
		logg.Error("store", "Failed to query user", err)
		return nil, err
	}
	return u, nil
}

// GetUser returns the user with its following, follower and scrap sides.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.getUserRow(ctx, id)
	if err != nil {
		return nil, err
	}

	var following, followers, scraps []sideRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		following, err = s.loadSide(gctx, models.SideFollowing, id)
		return err
	})
	g.Go(func() (err error) {
		followers, err = s.loadSide(gctx, models.SideFollower, id)
		return err
	})
	g.Go(func() (err error) {
		scraps, err = s.loadSide(gctx, models.SideUserScraps, id)
		return err
	})
	if err := g.Wait(); err != nil {
		logg.Error("store", "Failed to hydrate user relationships", err)
		return nil, err
	}

	u.Following = rowSnapshots(following)
	u.Follower = rowSnapshots(followers)
	u.Scraps = rowIDs(scraps)
	return u, nil
}

// UpdateUser rewrites the user's own fields. Snapshots held by other users are left as they are.
func (s *Store) UpdateUser(ctx context.Context, u models.User) error {
	current, err := s.getUserRow(ctx, u.ID)
	if err != nil {
		return err
	}

	update := func() error {
		err := s.Session.Query(`
			UPDATE users SET nickname = ?, pw_hash = ?, profile = ?, introduce = ?,
				phone_number = ?, interested_category = ?, allow_notification = ?
			WHERE user_id = ?`,
			u.Nickname, u.PasswordHash, u.Profile, u.Introduce,
			u.PhoneNumber, u.InterestedCategory, u.AllowNotification, u.ID,
		).WithContext(ctx).Exec()
		if err != nil {
			logg.Error("store", "Failed to update user", err)
		}
		return err
	}

	if u.Nickname == current.Nickname {
		return update()
	}
	return switchClaim(ctx, s, u.ID, nicknameClaim(current.Nickname), nicknameClaim(u.Nickname), update)
}

// DeleteUser removes the user record and its unique index rows. Edges that
// reference the user elsewhere are not touched.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	u, err := s.getUserRow(ctx, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM users WHERE user_id = ?`, id)
	batch.Query(`DELETE FROM users_by_nickname WHERE nickname = ?`, u.Nickname)
	batch.Query(`DELETE FROM users_by_email WHERE email = ?`, u.Email)
	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete user", err)
		return err
	}

	logg.Info("store", "User deleted (user ID anonymized)")
	return nil
}

// ListUserIDs scans the users table.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.scanIDs(ctx, `SELECT user_id FROM users`)
}

func (s *Store) scanIDs(ctx context.Context, stmt string) ([]string, error) {
	iter := s.Session.Query(stmt).WithContext(ctx).PageSize(500).Iter()

	var id string
	var res []string
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to scan ids", err)
		return nil, err
	}
	return res, nil
}
