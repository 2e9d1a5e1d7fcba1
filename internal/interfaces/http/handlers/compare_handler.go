package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/TechIntel/internal/application/comparison"
	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/pkg/errors"
)

// Comparer runs comparisons.  *comparison.Service implements it.
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request) (*comparison.Result, error)
}

// SnapshotSource supplies payloads of tracked technologies.
// *tracking.Tracker implements it.
type SnapshotSource interface {
	Snapshot(names ...string) (payload.Snapshot, error)
}

// CompareHandler serves /api/v1/compare.
type CompareHandler struct {
	svc    Comparer
	source SnapshotSource
	logger logging.Logger
}

// NewCompareHandler creates a CompareHandler.  A nil source restricts POST
// requests to inline payloads and disables GET.
func NewCompareHandler(svc Comparer, source SnapshotSource, log logging.Logger) *CompareHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CompareHandler{svc: svc, source: source, logger: log.Named("compare_handler")}
}

// CompareRequest is the POST body.  Technologies given without a payload
// are taken from the tracked, ready technologies.
type CompareRequest struct {
	Metric       string           `json:"metric" binding:"required"`
	Technologies []payload.Entity `json:"technologies" binding:"required"`
	FromYear     int              `json:"from_year"`
	ToYear       int              `json:"to_year"`
	NodeTypes    []string         `json:"node_types"`
}

// Post handles POST /api/v1/compare.
func (h *CompareHandler) Post(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid compare request", err)
		return
	}

	snap, err := h.resolve(req.Technologies)
	if err != nil {
		writeAppError(c, err)
		return
	}

	h.compare(c, comparison.Request{
		Metric:   comparison.Metric(req.Metric),
		Snapshot: snap,
		Filter:   comparison.Filter{FromYear: req.FromYear, ToYear: req.ToYear, NodeTypes: req.NodeTypes},
	})
}

// Get handles GET /api/v1/compare?metric=m&tech=a&tech=b over tracked
// technologies.  Without tech parameters every ready technology is compared.
func (h *CompareHandler) Get(c *gin.Context) {
	if h.source == nil {
		writeAppError(c, errors.New(errors.ErrCodeNotImplemented, "no technology tracker configured"))
		return
	}

	filter := comparison.Filter{NodeTypes: c.QueryArray("node_type")}
	for name, dst := range map[string]*int{"from_year": &filter.FromYear, "to_year": &filter.ToYear} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		year, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid "+name, err)
			return
		}
		*dst = year
	}

	snap, err := h.source.Snapshot(c.QueryArray("tech")...)
	if err != nil {
		writeAppError(c, err)
		return
	}

	h.compare(c, comparison.Request{
		Metric:   comparison.Metric(c.Query("metric")),
		Snapshot: snap,
		Filter:   filter,
	})
}

func (h *CompareHandler) compare(c *gin.Context, req comparison.Request) {
	res, err := h.svc.Compare(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// resolve builds the snapshot of a POST request, filling payload-less
// technologies from the tracker.  A technology the tracker cannot supply is
// skipped and reported on the result.
func (h *CompareHandler) resolve(entities []payload.Entity) (payload.Snapshot, error) {
	seen := make(map[string]bool, len(entities))
	var missing []string
	for i := range entities {
		name := strings.TrimSpace(entities[i].Name)
		if name == "" {
			return payload.Snapshot{}, errors.New(errors.ErrCodeValidation, "technology name is empty")
		}
		if seen[name] {
			return payload.Snapshot{}, errors.New(errors.ErrCodeDuplicateTechnology, "technology listed more than once").WithDetail(name)
		}
		seen[name] = true
		entities[i].Name = name
		if entities[i].Payload.IsZero() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 && h.source == nil {
		return payload.Snapshot{}, errors.New(errors.ErrCodeValidation, "technologies without payload").
			WithDetail(strings.Join(missing, ", "))
	}

	names := make([]string, len(entities))
	loaded := make([]payload.Payload, len(entities))
	errs := make([]error, len(entities))
	for i, e := range entities {
		names[i] = e.Name
		if !e.Payload.IsZero() {
			loaded[i] = e.Payload
			continue
		}
		tracked, err := h.source.Snapshot(e.Name)
		if err != nil {
			errs[i] = err
			continue
		}
		loaded[i], _ = tracked.Get(e.Name)
	}
	return payload.Collect(names, loaded, errs)
}
