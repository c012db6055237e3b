package store

import (
	"context"

	"example.com/popular/internal/apperr"
)

// uniqueIndex claims and frees rows in the users_by_* lookup tables.
type uniqueIndex interface {
	reserve(ctx context.Context, table, column, key, userID string) (bool, error)
	release(ctx context.Context, table, column, key string)
}

// indexClaim is one unique key a user write must hold.
type indexClaim struct {
	table, column, key string
}

func nicknameClaim(nickname string) indexClaim {
	return indexClaim{table: "users_by_nickname", column: "nickname", key: nickname}
}

func emailClaim(email string) indexClaim {
	return indexClaim{table: "users_by_email", column: "email", key: email}
}

// releaseAll frees claims even when ctx is already cancelled.
func releaseAll(ctx context.Context, idx uniqueIndex, claims []indexClaim) {
	ctx = context.WithoutCancel(ctx)
	for _, c := range claims {
		idx.release(ctx, c.table, c.column, c.key)
	}
}

// writeWithClaims reserves every claim for userID, then runs write. A taken
// key is a Conflict. If any reservation or the write fails, every key claimed
// by this call is released again.
func writeWithClaims(ctx context.Context, idx uniqueIndex, userID string, write func() error, claims ...indexClaim) error {
	held := make([]indexClaim, 0, len(claims))
	for _, c := range claims {
		ok, err := idx.reserve(ctx, c.table, c.column, c.key, userID)
		if err != nil {
			releaseAll(ctx, idx, held)
			return err
		}
		if !ok {
			releaseAll(ctx, idx, held)
			return apperr.Conflict("%s already in use", c.column)
		}
		held = append(held, c)
	}

	if err := write(); err != nil {
		releaseAll(ctx, idx, held)
		return err
	}
	return nil
}

// switchClaim moves userID from old to next. The old key is released only
// after write succeeds, so a failed write leaves the user on its old key.
func switchClaim(ctx context.Context, idx uniqueIndex, userID string, old, next indexClaim, write func() error) error {
	if err := writeWithClaims(ctx, idx, userID, write, next); err != nil {
		return err
	}
	releaseAll(ctx, idx, []indexClaim{old})
	return nil
}
