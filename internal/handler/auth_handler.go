package handler

import (
	"context"
	"log/slog"
	"strings"

	"lexpertease/internal/model"
	"lexpertease/internal/rpc"
	"lexpertease/internal/service"
)

// ForgotPasswordMessage is returned by auth.forgotPassword in every case.
const ForgotPasswordMessage = "If an account with that email exists, we have sent a password reset link."

// AuthHandler serves the auth.* procedures.
type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authService: authService, logger: logger}
}

// Procedures returns the auth.* procedures for registration.
func (h *AuthHandler) Procedures() []*rpc.Procedure {
	return []*rpc.Procedure{
		rpc.Mutation("auth.signup", h.Signup),
		rpc.Mutation("auth.login", h.Login),
		rpc.Mutation("auth.logout", h.Logout, rpc.Authenticated),
		rpc.Mutation("auth.refreshToken", h.RefreshToken),
		rpc.Query("auth.me", h.Me, rpc.Authenticated),
		rpc.Mutation("auth.updateProfile", h.UpdateProfile, rpc.Authenticated),
		rpc.Mutation("auth.changePassword", h.ChangePassword, rpc.Authenticated),
		rpc.Mutation("auth.forgotPassword", h.ForgotPassword),
		rpc.Mutation("auth.resetPassword", h.ResetPassword),
	}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=50,personname" msg:"required=First name is required;max=First name cannot exceed 50 characters;personname=First name can only contain letters and spaces"`
	LastName        string `json:"lastName" validate:"required,max=50,personname" msg:"required=Last name is required;max=Last name cannot exceed 50 characters;personname=Last name can only contain letters and spaces"`
	Email           string `json:"email" validate:"required,email" msg:"required=Please provide a valid email address;email=Please provide a valid email address"`
	Phone           string `json:"phone" validate:"required,min=10,max=15,phone" msg:"required=Phone number must be at least 10 digits;min=Phone number must be at least 10 digits;max=Phone number cannot exceed 15 digits;phone=Please provide a valid phone number"`
	Password        string `json:"password" validate:"required,min=8,max=128" msg:"required=Password must be at least 8 characters long;min=Password must be at least 8 characters long;max=Password cannot exceed 128 characters"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password" msg:"eqfield=Passwords do not match"`
	AcceptTerms     bool   `json:"acceptTerms" validate:"eq=true" msg:"eq=You must accept the terms and conditions"`
}

func (r *SignupRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = service.NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" msg:"required=Please provide a valid email address;email=Please provide a valid email address"`
	Password string `json:"password" validate:"required" msg:"required=Password is required"`
}

func (r *LoginRequest) Normalize() { r.Email = service.NormalizeEmail(r.Email) }

// LogoutRequest represents a logout request. Without a refresh token every
// session of the caller is ended.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required" msg:"required=Refresh token is required"`
}

// UpdateProfileRequest represents a partial profile update.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitnil,min=1,max=50,personname" msg:"min=First name is required;max=First name cannot exceed 50 characters;personname=First name can only contain letters and spaces"`
	LastName  *string `json:"lastName,omitempty" validate:"omitnil,min=1,max=50,personname" msg:"min=Last name is required;max=Last name cannot exceed 50 characters;personname=Last name can only contain letters and spaces"`
	Phone     *string `json:"phone,omitempty" validate:"omitnil,min=10,max=15,phone" msg:"min=Phone number must be at least 10 digits;max=Phone number cannot exceed 15 digits;phone=Please provide a valid phone number"`
}

func (r *UpdateProfileRequest) Normalize() {
	for _, field := range []*string{r.FirstName, r.LastName, r.Phone} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required" msg:"required=Current password is required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128" msg:"required=Password must be at least 8 characters long;min=Password must be at least 8 characters long;max=Password cannot exceed 128 characters"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=NewPassword" msg:"eqfield=Passwords do not match"`
}

// ForgotPasswordRequest represents a password reset request.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" msg:"required=Please provide a valid email address;email=Please provide a valid email address"`
}

func (r *ForgotPasswordRequest) Normalize() { r.Email = service.NormalizeEmail(r.Email) }

// ResetPasswordRequest represents a password reset confirmation.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required" msg:"required=Reset token is required"`
	Password        string `json:"password" validate:"required,min=8,max=128" msg:"required=Password must be at least 8 characters long;min=Password must be at least 8 characters long;max=Password cannot exceed 128 characters"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password" msg:"eqfield=Passwords do not match"`
}

// MessageResponse is returned by procedures without a payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AuthData carries a signed-in user and their tokens.
type AuthData struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    AuthData `json:"data"`
}

// TokenResponse is returned by refreshToken.
type TokenResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    service.TokenPair `json:"data"`
}

// UserData wraps a single user.
type UserData struct {
	User *model.User `json:"user"`
}

// UserResponse is returned by procedures that yield a user.
type UserResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    UserData `json:"data"`
}

func clientInfo(call *rpc.Call) service.ClientInfo {
	return service.ClientInfo{UserAgent: call.UserAgent(), IPAddress: call.RealIP()}
}

// Signup godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup data"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.signup [post]
func (h *AuthHandler) Signup(ctx context.Context, call *rpc.Call, req SignupRequest) (*AuthResponse, error) {
	res, err := h.authService.Signup(ctx, service.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	}, clientInfo(call))
	if err != nil {
		return nil, err
	}
	return authResponse("Account created successfully", res), nil
}

// Login godoc
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.login [post]
func (h *AuthHandler) Login(ctx context.Context, call *rpc.Call, req LoginRequest) (*AuthResponse, error) {
	res, err := h.authService.Login(ctx, req.Email, req.Password, clientInfo(call))
	if err != nil {
		return nil, err
	}
	return authResponse("Login successful", res), nil
}

func authResponse(message string, res *service.AuthResult) *AuthResponse {
	return &AuthResponse{
		Success: true,
		Message: message,
		Data: AuthData{
			User:         res.User,
			Token:        res.Token,
			RefreshToken: res.RefreshToken,
		},
	}
}

// Logout godoc
// @Summary Sign out
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.logout [post]
func (h *AuthHandler) Logout(ctx context.Context, call *rpc.Call, req LogoutRequest) (*MessageResponse, error) {
	id := call.Identity
	if err := h.authService.Logout(ctx, id.User.ID, req.RefreshToken, id.Claims); err != nil {
		return nil, err
	}
	return &MessageResponse{Success: true, Message: "Logout successful"}, nil
}

// RefreshToken godoc
// @Summary Rotate a refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.refreshToken [post]
func (h *AuthHandler) RefreshToken(ctx context.Context, call *rpc.Call, req RefreshRequest) (*TokenResponse, error) {
	pair, err := h.authService.RefreshToken(ctx, req.RefreshToken, clientInfo(call))
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Success: true, Message: "Token refreshed successfully", Data: *pair}, nil
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.me [get]
func (h *AuthHandler) Me(ctx context.Context, call *rpc.Call, _ rpc.Empty) (*UserResponse, error) {
	user, err := h.authService.Me(ctx, call.Identity.User.ID)
	if err != nil {
		return nil, err
	}
	return &UserResponse{Success: true, Data: UserData{User: user}}, nil
}

// UpdateProfile godoc
// @Summary Update profile fields
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.updateProfile [post]
func (h *AuthHandler) UpdateProfile(ctx context.Context, call *rpc.Call, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := h.authService.UpdateProfile(ctx, call.Identity.User.ID, model.ProfilePatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, err
	}
	return &UserResponse{Success: true, Message: "Profile updated successfully", Data: UserData{User: user}}, nil
}

// ChangePassword godoc
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.changePassword [post]
func (h *AuthHandler) ChangePassword(ctx context.Context, call *rpc.Call, req ChangePasswordRequest) (*MessageResponse, error) {
	if err := h.authService.ChangePassword(ctx, call.Identity.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, err
	}
	return &MessageResponse{Success: true, Message: "Password changed successfully"}, nil
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description Always succeeds so that callers cannot probe which addresses are registered.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /trpc/auth.forgotPassword [post]
func (h *AuthHandler) ForgotPassword(ctx context.Context, _ *rpc.Call, req ForgotPasswordRequest) (*MessageResponse, error) {
	if err := h.authService.ForgotPassword(ctx, req.Email); err != nil {
		h.logger.ErrorContext(ctx, "forgot password failed", slog.Any("error", err))
	}
	return &MessageResponse{Success: true, Message: ForgotPasswordMessage}, nil
}

// ResetPassword godoc
// @Summary Set a new password with a reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/auth.resetPassword [post]
func (h *AuthHandler) ResetPassword(ctx context.Context, _ *rpc.Call, req ResetPasswordRequest) (*MessageResponse, error) {
	if err := h.authService.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return nil, err
	}
	return &MessageResponse{Success: true, Message: "Password reset successfully. You can now log in with your new password."}, nil
}
