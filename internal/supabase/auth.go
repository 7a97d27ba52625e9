package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"creative-studio-backend/internal/models"
)

// SignUp registers a new account. AccessToken is empty when the project
// requires email confirmation before the first sign in.
func (c *Client) SignUp(email, password string) (*models.AuthResponse, error) {
	resp, err := c.Supabase.Auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	userID := resp.User.ID
	if userID == uuid.Nil {
		userID = resp.Session.User.ID
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("failed to sign up: no user returned")
	}

	return &models.AuthResponse{
		UserID:       userID.String(),
		Email:        email,
		AccessToken:  resp.Session.AccessToken,
		RefreshToken: resp.Session.RefreshToken,
		ExpiresIn:    resp.Session.ExpiresIn,
	}, nil
}

// SignIn exchanges an email and password for a session. The shared client's
// own auth header is left untouched.
func (c *Client) SignIn(email, password string) (*models.AuthResponse, error) {
	resp, err := c.Supabase.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	return &models.AuthResponse{
		UserID:       resp.User.ID.String(),
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(accessToken string) error {
	if err := c.Supabase.Auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}
