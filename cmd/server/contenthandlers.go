package server

import (
	"net/http"

	"example.com/popular/internal/models"
	"example.com/popular/internal/service"
)

// --- Stores ---

func (s *Server) createStoreHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, "http/stores"); !ok {
		return
	}
	var body service.StoreInput
	if !decodeBody(w, r, "http/stores", &body) {
		return
	}
	st, err := s.svc.CreateStore(r.Context(), body)
	if err != nil {
		writeError(w, "http/stores", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) getStoreHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetStore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/stores", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deleteStoreHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r, "http/stores"); !ok {
		return
	}
	if err := s.svc.DeleteStore(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, "http/stores", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Feeds ---

func (s *Server) createFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/feeds")
	if !ok {
		return
	}
	var body service.FeedInput
	if !decodeBody(w, r, "http/feeds", &body) {
		return
	}
	f, err := s.svc.CreateFeed(r.Context(), userID, body)
	if err != nil {
		writeError(w, "http/feeds", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// getFeedHandler returns the feed and counts the view.
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.ViewFeed(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/feeds", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/feeds")
	if !ok {
		return
	}
	var body service.FeedUpdate
	if !decodeBody(w, r, "http/feeds", &body) {
		return
	}
	f, err := s.svc.UpdateFeed(r.Context(), userID, r.PathValue("id"), body)
	if err != nil {
		writeError(w, "http/feeds", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/feeds")
	if !ok {
		return
	}
	if err := s.svc.DeleteFeed(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, "http/feeds", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// feedEdge runs a like, unlike or report for the authenticated user.
func (s *Server) feedEdge(w http.ResponseWriter, r *http.Request,
	op func(r *http.Request, userID, feedID string) (*models.Feed, error)) {
	userID, ok := currentUser(w, r, "http/likes")
	if !ok {
		return
	}
	f, err := op(r, userID, r.PathValue("id"))
	if err != nil {
		writeError(w, "http/likes", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) likeHandler(w http.ResponseWriter, r *http.Request) {
	s.feedEdge(w, r, func(r *http.Request, userID, feedID string) (*models.Feed, error) {
		return s.svc.Like(r.Context(), userID, feedID)
	})
}

func (s *Server) unlikeHandler(w http.ResponseWriter, r *http.Request) {
	s.feedEdge(w, r, func(r *http.Request, userID, feedID string) (*models.Feed, error) {
		return s.svc.Unlike(r.Context(), userID, feedID)
	})
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	s.feedEdge(w, r, func(r *http.Request, userID, feedID string) (*models.Feed, error) {
		return s.svc.Report(r.Context(), userID, feedID)
	})
}

// --- Comments ---

func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, "http/comments")
	if !ok {
		return
	}
	var body struct {
		Content string           `json:"content"`
		Parent  models.ParentRef `json:"parent"`
	}
	if !decodeBody(w, r, "http/comments", &body) {
		return
	}
	c, err := s.svc.CreateComment(r.Context(), userID, body.Content, body.Parent)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCommentHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetComment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type parentResponse struct {
	Type models.ParentKind `json:"type"`
	Data models.Parent     `json:"data"`
}

func (s *Server) commentParentHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.CommentParent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, parentResponse{Type: p.ParentKind(), Data: p})
}

func (s *Server) commentRootHandler(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.ThreadRoot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) feedCommentsHandler(w http.ResponseWriter, r *http.Request) {
	s.thread(w, r, models.ParentFeed)
}

func (s *Server) commentRepliesHandler(w http.ResponseWriter, r *http.Request) {
	s.thread(w, r, models.ParentComment)
}

func (s *Server) thread(w http.ResponseWriter, r *http.Request, kind models.ParentKind) {
	nodes, err := s.svc.Thread(r.Context(), models.ParentRef{Kind: kind, ID: r.PathValue("id")})
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}
