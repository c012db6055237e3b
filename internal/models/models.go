package models

import "time"

// Snapshot is a copy of another user's display fields, taken when an edge is created.
// It is never refreshed when the user later edits their profile.
type Snapshot struct {
	ID       string    `json:"id"`
	Nickname string    `json:"nickname"`
	Profile  string    `json:"profile"`
	At       time.Time `json:"-"`
}

type User struct {
	ID                 string     `json:"id"`
	Nickname           string     `json:"nickname"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Profile            string     `json:"profile"`
	Introduce          string     `json:"introduce"`
	PhoneNumber        string     `json:"phone_number"`
	InterestedCategory []string   `json:"interested_category"`
	AllowNotification  bool       `json:"allow_notification"`
	Following          []Snapshot `json:"following"`
	Follower           []Snapshot `json:"follower"`
	Scraps             []string   `json:"scraps"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Snapshot returns the user's current display fields.
func (u *User) Snapshot() Snapshot {
	return Snapshot{ID: u.ID, Nickname: u.Nickname, Profile: u.Profile}
}

type Store struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Brand               string    `json:"brand"`
	Location            string    `json:"location"`
	Lat                 string    `json:"lat"`
	Lng                 string    `json:"lng"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	Price               int       `json:"price"`
	ReservationRequired bool      `json:"reservation_required"`
	Images              []string  `json:"images"`
	Scraps              []string  `json:"scraps"`
	CreatedAt           time.Time `json:"created_at"`
}

type BoardType string

const (
	BoardGather BoardType = "gather"
	BoardReview BoardType = "review"
	BoardFree   BoardType = "free"
)

func (b BoardType) Valid() bool {
	switch b {
	case BoardGather, BoardReview, BoardFree:
		return true
	}
	return false
}

type Feed struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AuthorID  string    `json:"author_id"`
	Board     BoardType `json:"board"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	StoreID   string    `json:"store_id,omitempty"`
	Ratings   float64   `json:"ratings,omitempty"` // 0 means unrated
	Comments  []string  `json:"comments"`
	Likes     []string  `json:"likes"`
	Reports   []string  `json:"reports"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	Parent     ParentRef `json:"parent"`
	Recomments []string  `json:"recomments"`
	CreatedAt  time.Time `json:"created_at"`
}
