package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/popular/internal/apperr"
	"example.com/popular/internal/middleware"
	"example.com/popular/internal/models"
	"example.com/popular/internal/service"
)

const maxBodyBytes = 20 << 20 // base64 images travel in JSON bodies

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindBadRequest:   http.StatusBadRequest,
	apperr.KindConflict:     http.StatusConflict,
	apperr.KindUnauthorized: http.StatusUnauthorized,
	apperr.KindForbidden:    http.StatusForbidden,
}

// writeError maps an apperr kind to its status. Internal errors are logged and
// their details are not sent to the client.
func writeError(w http.ResponseWriter, module string, err error) {
	status, ok := statusByKind[apperr.KindOf(err)]
	if !ok {
		logg.Error(module, "Request failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	msg := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	logg.Debug(module, "Request rejected: "+msg)
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, module string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logg.Error(module, "Invalid request body", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request, module string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info(module, "Unauthorized request")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return userID, ok
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, module string, u *models.User) {
	token, err := middleware.IssueToken(u.ID)
	if err != nil {
		logg.Error(module, "Failed to generate token", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
		return
	}
	writeJSON(w, status, authResponse{User: u, Token: token})
}

// --- Users ---

// signupHandler creates a user and returns it with a token.
func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	var body service.SignupInput
	if !decodeBody(w, r, "http/users", &body) {
		return
	}
	u, err := s.svc.Signup(r.Context(), body)
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	logg.Info("http/users", "User created successfully with user_id="+u.ID)
	s.respondWithToken(w, http.StatusCreated, "http/users", u)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"pw"`
	}
	if !decodeBody(w, r, "http/login", &body) {
		return
	}
	u, err := s.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, "http/login", err)
		return
	}
	s.respondWithToken(w, http.StatusOK, "http/login", u)
}

func (s *Server) checkNicknameHandler(w http.ResponseWriter, r *http.Request) {
	exists, err := s.svc.NicknameExists(r.Context(), r.URL.Query().Get("nickname"))
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isExists": exists})
}

func (s *Server) checkEmailHandler(w http.ResponseWriter, r *http.Request) {
	exists, err := s.svc.EmailExists(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isExists": exists})
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) getMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	u, err := s.svc.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	var body service.UserUpdate
	if !decodeBody(w, r, "http/users", &body) {
		return
	}
	u, err := s.svc.UpdateUser(r.Context(), userID, body)
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/users")
	if !ok {
		return
	}
	if err := s.svc.DeleteUser(r.Context(), userID); err != nil {
		writeError(w, "http/users", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Edges ---

// userEdge runs a follow or scrap operation for the authenticated user.
func (s *Server) userEdge(w http.ResponseWriter, r *http.Request, module, param string,
	op func(r *http.Request, userID, otherID string) (*models.User, error)) {
	userID, ok := currentUser(w, r, module)
	if !ok {
		return
	}
	u, err := op(r, userID, r.PathValue(param))
	if err != nil {
		writeError(w, module, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	s.userEdge(w, r, "http/follow", "targetId", func(r *http.Request, userID, targetID string) (*models.User, error) {
		return s.svc.Follow(r.Context(), userID, targetID)
	})
}

func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	s.userEdge(w, r, "http/follow", "targetId", func(r *http.Request, userID, targetID string) (*models.User, error) {
		return s.svc.Unfollow(r.Context(), userID, targetID)
	})
}

func (s *Server) scrapHandler(w http.ResponseWriter, r *http.Request) {
	s.userEdge(w, r, "http/scrap", "storeId", func(r *http.Request, userID, storeID string) (*models.User, error) {
		return s.svc.Scrap(r.Context(), userID, storeID)
	})
}

func (s *Server) unscrapHandler(w http.ResponseWriter, r *http.Request) {
	s.userEdge(w, r, "http/scrap", "storeId", func(r *http.Request, userID, storeID string) (*models.User, error) {
		return s.svc.Unscrap(r.Context(), userID, storeID)
	})
}
