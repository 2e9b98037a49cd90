package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"chat-relay/errors"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
	Bio          string `json:"bio"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	token, userID, err := s.authService.Register(req.Email, req.Password)
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		s.writeError(w, http.StatusBadRequest, "User already exists")
		return
	case stderrors.Is(err, errors.ErrInvalidPassword):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("Signup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Signup failed")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"token":   string(token),
		"user_id": userID,
		"email":   req.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	token, userID, err := s.authService.Login(req.Email, req.Password)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		s.log.Error("Login profile read failed", "user_id", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":         string(token),
		"user_id":       user.ID,
		"email":         user.Email,
		"username":      user.Username,
		"profile_image": user.ProfileImage,
		"bio":           user.Bio,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUserByID(currentUserID(r))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"username":      user.Username,
		"profile_image": user.ProfileImage,
		"bio":           user.Bio,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "Username required")
		return
	}
	if req.ProfileImage == "" {
		req.ProfileImage = "👨‍💻"
	}

	err := s.users.UpdateProfile(currentUserID(r), req.Username, req.ProfileImage, req.Bio)
	switch {
	case stderrors.Is(err, errors.ErrUsernameTaken):
		s.writeError(w, http.StatusBadRequest, "Username already taken")
		return
	case err != nil:
		s.log.Error("Profile update failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Profile update failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Profile updated successfully",
		"username":      req.Username,
		"profile_image": req.ProfileImage,
		"bio":           req.Bio,
	})
}
