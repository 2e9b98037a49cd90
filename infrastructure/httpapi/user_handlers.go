package httpapi

import (
	"net/http"
	"time"

	"github.com/samber/lo"

	"chat-relay/domain"
)

type userView struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
	Bio          string `json:"bio"`
	Online       bool   `json:"online"`
	LastSeen     int64  `json:"last_seen"`
}

const searchLimit = 20

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"users": []userView{}})
		return
	}

	users, err := s.users.SearchByUsername(query, currentUserID(r), searchLimit)
	if err != nil {
		s.log.Error("User search failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	views := lo.Map(users, func(user domain.User, _ int) userView {
		return s.toUserView(user)
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.toUserView(user))
}

// toUserView attaches presence. A user with no status record reads as
// offline, last seen now, as the conversation list expects a timestamp.
func (s *Server) toUserView(user domain.User) userView {
	record := s.tracker.Get(user.ID)
	lastSeen := record.LastSeen
	if !record.Online && lastSeen == 0 {
		lastSeen = time.Now().UnixMilli()
	}
	return userView{
		ID:           user.ID,
		Username:     user.Username,
		ProfileImage: user.ProfileImage,
		Bio:          user.Bio,
		Online:       record.Online,
		LastSeen:     lastSeen,
	}
}
