package dto

import (
	"github.com/chamados-app/chamados-api/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Name     string `json:"nome" form:"nome"`
	Email    string `json:"email" form:"email"`
	Password string `json:"senha" form:"senha"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"senha" form:"senha"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"nome"`
	Email string      `json:"email"`
	Role  domain.Role `json:"papel"`
}

// AuthResponse standard response for auth endpoints. The refresh token
// travels only in its cookie.
type AuthResponse struct {
	TokenType   string       `json:"token_type"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
