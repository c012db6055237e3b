package graph

import "example.com/popular/internal/models"

// HasSnapshot reports whether id is present in snaps. Membership is decided by
// identifier alone; nickname and profile of the snapshot are ignored.
func HasSnapshot(snaps []models.Snapshot, id string) bool {
	for _, s := range snaps {
		if s.ID == id {
			return true
		}
	}
	return false
}

// HasID reports whether id is present in ids.
func HasID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// WithoutID returns ids with every occurrence of id removed. ids is not modified.
func WithoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
