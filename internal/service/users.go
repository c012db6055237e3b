package service

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/models"
	"go.uber.org/zap"
)

const (
	maxNicknameLen = 20
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

type SignupInput struct {
	Nickname           string   `json:"nickname"`
	Email              string   `json:"email"`
	Password           string   `json:"pw"`
	Profile            string   `json:"profile"`
	Introduce          string   `json:"introduce"`
	PhoneNumber        string   `json:"phone_number"`
	InterestedCategory []string `json:"interested_category"`
	AllowNotification  bool     `json:"allow_notification"`
}

// UserUpdate holds the editable profile fields. Nil fields are left unchanged.
type UserUpdate struct {
	Profile            *string  `json:"profile"`
	Password           *string  `json:"pw"`
	Introduce          *string  `json:"introduce"`
	Nickname           *string  `json:"nickname"`
	PhoneNumber        *string  `json:"phone_number"`
	InterestedCategory []string `json:"interested_category"`
	AllowNotification  *bool    `json:"allow_notification"`
}

func validNickname(n string) error {
	if n == "" || utf8.RuneCountInString(n) > maxNicknameLen {
		return apperr.BadRequest("nickname must be 1-%d characters", maxNicknameLen)
	}
	return nil
}

func validPassword(pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return apperr.BadRequest("password must be %d-%d bytes", minPasswordLen, maxPasswordLen)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", apperr.BadRequest("invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	nickname := strings.TrimSpace(in.Nickname)
	if err := validNickname(nickname); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.auth.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	var profile string
	if in.Profile != "" {
		if profile, err = s.images.Save(ctx, in.Profile); err != nil {
			return nil, err
		}
	}

	id, err := s.store.CreateUser(ctx, models.User{
		ID:                 models.NewID(),
		Nickname:           nickname,
		Email:              email,
		PasswordHash:       hash,
		Profile:            profile,
		Introduce:          in.Introduce,
		PhoneNumber:        in.PhoneNumber,
		InterestedCategory: in.InterestedCategory,
		AllowNotification:  in.AllowNotification,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	logg.Info("service", "User signed up", zap.String("user", id))
	return s.store.GetUser(ctx, id)
}

// Login checks the credentials. Unknown email and wrong password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	id, err := s.store.GetUserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.auth.Verify(password, u.PasswordHash) {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	return u, nil
}

func (s *Service) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	id, err := s.store.GetUserIDByNickname(ctx, strings.TrimSpace(nickname))
	return id != "", err
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	id, err := s.store.GetUserIDByEmail(ctx, email)
	return id != "", err
}

// UpdateUser applies the non-nil fields. Snapshots of this user held in other
// users' following or follower lists keep their old nickname and profile.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserUpdate) (*models.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Profile != nil {
		if *in.Profile == "" {
			u.Profile = ""
		} else if u.Profile, err = s.images.Save(ctx, *in.Profile); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if err := validPassword(*in.Password); err != nil {
			return nil, err
		}
		if u.PasswordHash, err = s.auth.Hash(*in.Password); err != nil {
			return nil, apperr.Internal("hash password", err)
		}
	}
	if in.Introduce != nil {
		u.Introduce = *in.Introduce
	}
	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if err := validNickname(nickname); err != nil {
			return nil, err
		}
		u.Nickname = nickname
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = *in.PhoneNumber
	}
	if in.InterestedCategory != nil {
		u.InterestedCategory = in.InterestedCategory
	}
	if in.AllowNotification != nil {
		u.AllowNotification = *in.AllowNotification
	}

	if err := s.store.UpdateUser(ctx, *u); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, u.ID)
}

// DeleteUser removes the user record only. Edges that point at the user are
// left in place and reported by the reconciler as dangling.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id, err := parseID(id, "user")
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	logg.Info("service", "User deleted", zap.String("user", id))
	return nil
}
