package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

// StateHandler exposes read/write access to a user's scheduling state.
type StateHandler struct {
	service *service.StateService
}

// NewStateHandler constructs a StateHandler.
func NewStateHandler(svc *service.StateService) *StateHandler {
	return &StateHandler{service: svc}
}

// Get godoc
// @Summary Fetch scheduling state
// @Description Returns the authenticated user's current normalised scheduling state
// @Tags State
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /state [get]
func (h *StateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	state, err := h.service.Load(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Put godoc
// @Summary Replace scheduling state
// @Description Normalises and persists a new version of the authenticated user's scheduling state
// @Tags State
// @Accept json
// @Produce json
// @Param payload body dto.UpdateStateRequest true "State payload"
// @Success 204 "No Content"
// @Failure 400 {object} response.Envelope
// @Router /state [put]
func (h *StateHandler) Put(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.Save(c.Request.Context(), claims.UserID, req.State); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export scheduling state
// @Description Returns a portable, versioned document of the authenticated user's scheduling state
// @Tags State
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /state/export [get]
func (h *StateHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	export, err := h.service.Export(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, export, nil)
}

// Import godoc
// @Summary Import scheduling state
// @Description Validates and restores a previously exported state document
// @Tags State
// @Accept json
// @Produce json
// @Param payload body dto.ImportStateRequest true "Import payload"
// @Success 204 "No Content"
// @Failure 400 {object} response.Envelope
// @Router /state/import [post]
func (h *StateHandler) Import(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ImportStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.Import(c.Request.Context(), claims.UserID, req.Export); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
