package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"openmates/payhub/internal/model"
	"openmates/payhub/internal/service"
	"openmates/payhub/pkg/response"
)

type IdentityHandler struct {
	identityService service.IdentityService
}

func NewIdentityHandler(identityService service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identityService: identityService}
}

type BindIdentityRequest struct {
	IdentityType   string                 `json:"identity_type" binding:"required"`
	Identifier     string                 `json:"identifier" binding:"required"`
	CredentialData map[string]interface{} `json:"credential_data" binding:"required"`
}

func (h *IdentityHandler) Bind(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req BindIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	err = h.identityService.BindIdentity(
		c.Request.Context(),
		userID,
		model.IdentityType(req.IdentityType),
		req.Identifier,
		model.CredentialData(req.CredentialData),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIdentityAlreadyExists):
			response.Conflict(c, err.Error())
		case errors.Is(err, service.ErrUnsupportedIdentity), errors.Is(err, service.ErrInvalidCredentials):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrUserDisabled):
			response.Error(c, 403, 403, "user is disabled")
		default:
			response.InternalError(c, "failed to bind identity")
		}
		return
	}

	response.Success(c, nil)
}

func (h *IdentityHandler) Unbind(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	identityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid identity id")
		return
	}

	if err := h.identityService.UnbindIdentity(c.Request.Context(), userID, identityID); err != nil {
		switch {
		case errors.Is(err, service.ErrCannotUnbindLast):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrIdentityNotOwned):
			response.Forbidden(c, err.Error())
		default:
			response.InternalError(c, "failed to unbind identity")
		}
		return
	}

	response.Success(c, nil)
}

func (h *IdentityHandler) List(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	identities, err := h.identityService.ListIdentities(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "failed to list identities")
		return
	}

	response.Success(c, identities)
}
