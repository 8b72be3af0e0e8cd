package rpc

import (
	apperrors "lexpertease/internal/errors"
)

const (
	MsgLoginRequired    = "You must be logged in to perform this action"
	MsgPermissionDenied = "You do not have permission to perform this action"
)

// Guard rejects a call before its input is decoded.
type Guard func(call *Call) error

// Authenticated requires a verified identity.
func Authenticated(call *Call) error {
	if call.Identity == nil || call.Identity.User == nil {
		return apperrors.Unauthorized(MsgLoginRequired)
	}
	return nil
}

// AdminOnly requires a verified identity holding the admin role.
func AdminOnly(call *Call) error {
	if err := Authenticated(call); err != nil {
		return err
	}
	if !call.Identity.IsAdmin() {
		return apperrors.Forbidden(MsgPermissionDenied)
	}
	return nil
}
