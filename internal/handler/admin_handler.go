package handler

import (
	"context"
	"errors"
	"log/slog"

	"lexpertease/internal/mailer"
	"lexpertease/internal/model"
	"lexpertease/internal/rpc"
	"lexpertease/internal/service"
)

// AdminHandler serves the admin.* procedures.
type AdminHandler struct {
	svc    service.UserService
	mailer mailer.Sender
	logger *slog.Logger
}

// NewAdminHandler creates the admin handler layer.
func NewAdminHandler(svc service.UserService, sender mailer.Sender, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{svc: svc, mailer: sender, logger: logger}
}

// Procedures returns the admin.* procedures for registration.
func (h *AdminHandler) Procedures() []*rpc.Procedure {
	return []*rpc.Procedure{
		rpc.Mutation("admin.testEmail", h.TestEmail, rpc.AdminOnly),
		rpc.Query("admin.listUsers", h.ListUsers, rpc.AdminOnly),
		rpc.Query("admin.getUser", h.GetUser, rpc.AdminOnly),
		rpc.Mutation("admin.setRole", h.SetRole, rpc.AdminOnly),
	}
}

// TestEmailRequest names the address a test message goes to.
type TestEmailRequest struct {
	Email string `json:"email" validate:"required,email" msg:"required=Please provide a valid email address;email=Please provide a valid email address"`
}

func (r *TestEmailRequest) Normalize() { r.Email = service.NormalizeEmail(r.Email) }

// GetUserRequest names the user to fetch.
type GetUserRequest struct {
	UserID string `json:"userId" validate:"required" msg:"required=User id is required"`
}

// SetRoleRequest changes the role of a user.
type SetRoleRequest struct {
	UserID string     `json:"userId" validate:"required" msg:"required=User id is required"`
	Role   model.Role `json:"role" validate:"required,oneof=client admin" msg:"required=Role must be client or admin;oneof=Role must be client or admin"`
}

// UsersData wraps a user listing.
type UsersData struct {
	Users []model.User `json:"users"`
}

// UsersResponse is returned by admin.listUsers.
type UsersResponse struct {
	Success bool      `json:"success"`
	Data    UsersData `json:"data"`
}

// TestEmail godoc
// @Summary Check SMTP delivery
// @Description Verifies the SMTP connection and sends a test message. Delivery problems are reported with success=false.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TestEmailRequest true "Destination address"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /trpc/admin.testEmail [post]
func (h *AdminHandler) TestEmail(ctx context.Context, _ *rpc.Call, req TestEmailRequest) (*MessageResponse, error) {
	if h.mailer == nil {
		return &MessageResponse{Success: false, Message: "Email is not configured"}, nil
	}
	if err := h.mailer.Verify(ctx); err != nil {
		h.logger.WarnContext(ctx, "smtp verify failed", slog.Any("error", err))
		if errors.Is(err, mailer.ErrNotConfigured) {
			return &MessageResponse{Success: false, Message: "Email is not configured"}, nil
		}
		return &MessageResponse{Success: false, Message: "SMTP connection failed. Please check your email configuration."}, nil
	}
	if err := h.mailer.Send(ctx, mailer.TestMessage(req.Email)); err != nil {
		h.logger.WarnContext(ctx, "test email failed", slog.Any("error", err))
		return &MessageResponse{Success: false, Message: "Failed to send test email"}, nil
	}
	return &MessageResponse{Success: true, Message: "Test email sent successfully"}, nil
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UsersResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /trpc/admin.listUsers [get]
func (h *AdminHandler) ListUsers(ctx context.Context, _ *rpc.Call, _ rpc.Empty) (*UsersResponse, error) {
	users, err := h.svc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return &UsersResponse{Success: true, Data: UsersData{Users: users}}, nil
}

// GetUser godoc
// @Summary Get a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param input query string true "JSON encoded GetUserRequest"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /trpc/admin.getUser [get]
func (h *AdminHandler) GetUser(ctx context.Context, _ *rpc.Call, req GetUserRequest) (*UserResponse, error) {
	user, err := h.svc.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &UserResponse{Success: true, Data: UserData{User: user}}, nil
}

// SetRole godoc
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SetRoleRequest true "User and role"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /trpc/admin.setRole [post]
func (h *AdminHandler) SetRole(ctx context.Context, call *rpc.Call, req SetRoleRequest) (*UserResponse, error) {
	user, err := h.svc.SetRole(ctx, call.Identity.User.ID, req.UserID, req.Role)
	if err != nil {
		return nil, err
	}
	return &UserResponse{Success: true, Message: "Role updated", Data: UserData{User: user}}, nil
}
