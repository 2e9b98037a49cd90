package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, string, error)
	Register(email, password string) (Token, string, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	verifier       *auth.Verifier
}

type Token string

func NewAuthService(repo repositories.IUserRepository, verifier *auth.Verifier) *AuthService {
	return &AuthService{userRepository: repo, verifier: verifier}
}

// Register creates an account and returns its first session token with the
// new user id.
func (s *AuthService) Register(email, password string) (Token, string, error) {
	valReq := auth.RegisterRequest{
		Email:    email,
		Password: password,
	}

	// Validate business rules (email format, password complexity) before
	// any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hash in the service layer to keep the repository unaware of plain
	// passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return "", "", err // Propagates ErrUserAlreadyExists if email is taken
	}

	token, err := s.verifier.GenerateToken(userID, []string{"user"})
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}
	return Token(token), userID, nil
}

func (s *AuthService) Login(email, password string) (Token, string, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", "", errors.ErrInvalidCredentials
	}

	token, err := s.verifier.GenerateToken(user.ID, user.Roles)
	if err != nil {
		return "", "", errors.ErrTokenGeneration
	}
	return Token(token), user.ID, nil
}
