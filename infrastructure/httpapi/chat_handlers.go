package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
)

const defaultHistoryLimit = 50

type chatView struct {
	PeerID          string `json:"chat_user_id"`
	LastMessage     string `json:"last_message"`
	LastMessageTime int64  `json:"last_message_time"`
	Username        string `json:"username"`
	ProfileImage    string `json:"profile_image"`
	Bio             string `json:"bio"`
	Online          bool   `json:"online"`
	LastSeen        int64  `json:"last_seen"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.chatService.ListChats(currentUserID(r))
	if err != nil {
		s.log.Error("Chat list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Chat list failed")
		return
	}

	views := make([]chatView, 0, len(summaries))
	for _, summary := range summaries {
		view := chatView{
			PeerID:          summary.PeerID,
			LastMessage:     summary.LastMessage,
			LastMessageTime: summary.LastMessageTime,
		}
		if peer, err := s.users.GetUserByID(summary.PeerID); err == nil {
			peerView := s.toUserView(peer)
			view.Username = peerView.Username
			view.ProfileImage = peerView.ProfileImage
			view.Bio = peerView.Bio
			view.Online = peerView.Online
			view.LastSeen = peerView.LastSeen
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"chats": views})
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PeerID string `json:"chat_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PeerID == "" {
		s.writeError(w, http.StatusBadRequest, "chat_user_id required")
		return
	}

	if err := s.chatService.EnsureChat(currentUserID(r), req.PeerID); err != nil {
		s.log.Error("Chat create failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Chat create failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"message": "Chat created successfully"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := s.chatService.GetMessages(currentUserID(r), r.PathValue("peer"), limit)
	if err != nil {
		s.log.Error("History read failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "History read failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Ternary(messages != nil, messages, []domain.Message{}),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Text       string `json:"text"`
		ImageURL   string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.ReceiverID == "" || (req.Text == "" && req.ImageURL == "") {
		s.writeError(w, http.StatusBadRequest, "receiver_id and message content required")
		return
	}

	message, err := s.chatService.SendMessage(r.Context(), services.SendMessageCommand{
		SenderID:   currentUserID(r),
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		s.log.Error("Send failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Send failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Mode == "" {
		req.Mode = "me"
	}

	err := s.chatService.DeleteMessage(r.Context(), currentUserID(r), r.PathValue("id"), req.Mode)
	switch {
	case stderrors.Is(err, errors.ErrMessageNotFound):
		s.writeError(w, http.StatusNotFound, "Message not found")
		return
	case stderrors.Is(err, errors.ErrNotMessageSender):
		s.writeError(w, http.StatusForbidden, "You can only delete your own messages for everyone")
		return
	case err != nil:
		s.log.Error("Delete failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Delete failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}
