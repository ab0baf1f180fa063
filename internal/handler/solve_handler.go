package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

// SolveHandler exposes the solve_day and solve_range scheduling operations.
type SolveHandler struct {
	service *service.SchedulerService
}

// NewSolveHandler constructs a SolveHandler.
func NewSolveHandler(svc *service.SchedulerService) *SolveHandler {
	return &SolveHandler{service: svc}
}

// Day godoc
// @Summary Solve a single day
// @Description Normalise state, expand slots, and run CP-SAT coverage optimisation for one date
// @Tags Solve
// @Accept json
// @Produce json
// @Param payload body dto.SolveDayRequest true "Solve day payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /solve/day [post]
func (h *SolveHandler) Day(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SolveDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.SolveDay(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Range godoc
// @Summary Solve a date range
// @Description Normalise state, expand slots, and run CP-SAT coverage optimisation across a date range
// @Tags Solve
// @Accept json
// @Produce json
// @Param payload body dto.SolveRangeRequest true "Solve range payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /solve/range [post]
func (h *SolveHandler) Range(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SolveRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.service.SolveRange(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
