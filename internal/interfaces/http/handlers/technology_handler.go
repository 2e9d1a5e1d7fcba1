package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TechIntel/internal/application/tracking"
	"github.com/turtacn/TechIntel/internal/domain/readiness"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/pkg/client"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// Tracker follows technologies until their analytics are ready.
// *tracking.Tracker implements it.
type Tracker interface {
	Track(tech string) (readiness.State, error)
	Remove(tech string) error
	State(tech string) (tracking.Status, error)
	List() []tracking.Status
}

// Validator checks free-text technology queries against the backend.
// *client.Client implements it.
type Validator interface {
	ValidateTechnology(ctx context.Context, query string) (*client.Validation, error)
}

// TechnologyHandler serves /api/v1/technologies and /api/v1/validate.
type TechnologyHandler struct {
	tracker   Tracker
	validator Validator
	logger    logging.Logger
}

// NewTechnologyHandler creates a TechnologyHandler.  A nil validator
// disables /api/v1/validate.
func NewTechnologyHandler(tracker Tracker, validator Validator, log logging.Logger) *TechnologyHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TechnologyHandler{tracker: tracker, validator: validator, logger: log.Named("technology_handler")}
}

// TrackResponse is returned when tracking starts.
type TrackResponse struct {
	Technology string          `json:"technology"`
	State      readiness.State `json:"state"`
}

// ListResponse wraps the tracked technologies.
type ListResponse struct {
	Technologies []tracking.Status `json:"technologies"`
}

// List handles GET /api/v1/technologies.
func (h *TechnologyHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, ListResponse{Technologies: h.tracker.List()})
}

// Track handles POST /api/v1/technologies/:name.  A new technology is
// accepted for polling; an already tracked one reports its state.
func (h *TechnologyHandler) Track(c *gin.Context) {
	name := c.Param("name")
	state, err := h.tracker.Track(name)
	if err != nil {
		writeAppError(c, err)
		return
	}
	status := http.StatusOK
	if state == readiness.Unstarted {
		status = http.StatusAccepted
	}
	c.JSON(status, TrackResponse{Technology: name, State: state})
}

// Get handles GET /api/v1/technologies/:name.
func (h *TechnologyHandler) Get(c *gin.Context) {
	st, err := h.tracker.State(c.Param("name"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Delete handles DELETE /api/v1/technologies/:name.
func (h *TechnologyHandler) Delete(c *gin.Context) {
	if err := h.tracker.Remove(c.Param("name")); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ValidateRequest is the body of POST /api/v1/validate.
type ValidateRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate handles POST /api/v1/validate.  Rejected queries are reported
// as TRK_004; accepted and needs-confirmation verdicts are returned as is.
func (h *TechnologyHandler) Validate(c *gin.Context) {
	if h.validator == nil {
		writeAppError(c, errors.New(errors.ErrCodeNotImplemented, "no backend configured"))
		return
	}
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid validate request", err)
		return
	}

	v, err := h.validator.ValidateTechnology(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Warn("Technology validation failed",
			logging.String("query", req.Query), logging.Err(err))
		writeAppError(c, errors.Wrap(err, errors.ErrCodeExternalService, "technology validation failed"))
		return
	}
	if v.Decision == client.DecisionReject {
		writeAppError(c, errors.New(errors.ErrCodeTechnologyRejected, "technology was rejected").WithDetail(v.Message))
		return
	}
	c.JSON(http.StatusOK, v)
}
