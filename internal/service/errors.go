package service

import "errors"

var (
	ErrIdentityAlreadyExists = errors.New("identity already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrRefreshTokenInvalid   = errors.New("refresh token invalid or revoked")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserDisabled          = errors.New("user is disabled or banned")
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrCannotUnbindLast      = errors.New("cannot unbind last identity")
	ErrIdentityNotOwned      = errors.New("identity does not belong to this user")
	ErrUnsupportedIdentity   = errors.New("unsupported identity type for direct binding")
	ErrChallengeNotFound     = errors.New("2fa challenge not found or expired")
	ErrTwoFactorCodeInvalid  = errors.New("2fa code invalid")
	ErrOrderNotFound         = errors.New("payment order not found")
	ErrOrderNotOwned         = errors.New("payment order does not belong to this user")
)
