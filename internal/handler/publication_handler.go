package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/repository"
	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

// PublicationHandler manages admin-issued clinician iCal feed links and serves
// the public feed itself.
type PublicationHandler struct {
	links   *repository.PublicationRepository
	exports *service.ExportService
}

// NewPublicationHandler constructs a PublicationHandler.
func NewPublicationHandler(links *repository.PublicationRepository, exports *service.ExportService) *PublicationHandler {
	return &PublicationHandler{links: links, exports: exports}
}

// Create godoc
// @Summary Issue a clinician feed link
// @Description Creates a token-addressable iCal subscription link for one clinician
// @Tags Publications
// @Accept json
// @Produce json
// @Param payload body dto.CreatePublicationLinkRequest true "Publication request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /publications [post]
func (h *PublicationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	var req dto.CreatePublicationLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	link := &models.PublicationLink{
		UserID:      claims.UserID,
		ClinicianID: req.ClinicianID,
		Token:       uuid.NewString(),
		CreatedBy:   claims.UserID,
	}
	if err := h.links.Create(c.Request.Context(), link); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// List godoc
// @Summary List feed links
// @Description Returns every publication link issued by the caller
// @Tags Publications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /publications [get]
func (h *PublicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	links, err := h.links.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Revoke godoc
// @Summary Revoke a feed link
// @Description Revokes a previously issued publication link
// @Tags Publications
// @Param id path string true "Publication link ID"
// @Success 204 "No Content"
// @Router /publications/{id} [delete]
func (h *PublicationHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role != models.RoleAdmin {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	if err := h.links.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Feed godoc
// @Summary Fetch a clinician's iCal feed
// @Description Public, unauthenticated endpoint serving a clinician's published schedule
// @Tags Publications
// @Produce text/calendar
// @Param token path string true "Publication token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /ical/{token} [get]
func (h *PublicationHandler) Feed(c *gin.Context) {
	link, err := h.links.FindByToken(c.Request.Context(), c.Param("token"))
	if err != nil || !link.Active() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "feed not found"))
		return
	}

	payload, err := h.exports.RenderClinicianFeed(c.Request.Context(), link.UserID, link.ClinicianID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", payload)
}
