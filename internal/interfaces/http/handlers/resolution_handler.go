package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/intelligence/entity_detect"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// ResolutionHandler serves the entity resolution endpoints.
type ResolutionHandler struct {
	svc    resolution.Service
	logger logging.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(svc resolution.Service, logger logging.Logger) *ResolutionHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResolutionHandler{svc: svc, logger: logger}
}

// ResolveRequest is the body of POST /api/v1/resolve.
type ResolveRequest struct {
	Text             string   `json:"text" binding:"required"`
	ExpectedEntities []string `json:"expected_entities"`
}

// EntitiesRequest is the body of POST /api/v1/entities.
type EntitiesRequest struct {
	Text             string   `json:"text" binding:"required"`
	ExpectedEntities []string `json:"expected_entities"`
	Entity           string   `json:"entity"`
}

// EntitiesResponse lists raw entities.
type EntitiesResponse struct {
	Entities []entity.Entity `json:"entities"`
}

// ValueRequest is the body of POST /api/v1/entities/:name/value.
type ValueRequest struct {
	Text string `json:"text" binding:"required"`
}

// ValueResponse carries an extracted entity value.
type ValueResponse struct {
	Entity string      `json:"entity"`
	Value  interface{} `json:"value"`
}

// DependenciesResponse lists dependent entities.
type DependenciesResponse struct {
	Dependencies []string `json:"dependencies"`
}

// DetectorsResponse lists registered detectors.
type DetectorsResponse struct {
	Detectors []resolution.DetectorInfo `json:"detectors"`
}

// Resolve handles POST /api/v1/resolve.
func (h *ResolutionHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	out, err := h.svc.Resolve(c.Request.Context(), &resolution.ResolveInput{
		Text:             req.Text,
		ExpectedEntities: req.ExpectedEntities,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// Entities handles POST /api/v1/entities.
func (h *ResolutionHandler) Entities(c *gin.Context) {
	var req EntitiesRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ents, err := h.svc.Entities(c.Request.Context(), &resolution.EntitiesInput{
		Text:             req.Text,
		ExpectedEntities: req.ExpectedEntities,
		Entity:           req.Entity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if ents == nil {
		ents = []entity.Entity{}
	}
	respond(c, http.StatusOK, EntitiesResponse{Entities: ents})
}

// Value handles POST /api/v1/entities/:name/value.
func (h *ResolutionHandler) Value(c *gin.Context) {
	var req ValueRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	name := c.Param("name")
	v, err := h.svc.Value(c.Request.Context(), &resolution.ValueInput{Entity: name, Text: req.Text})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ValueResponse{Entity: name, Value: v})
}

// Dependencies handles GET /api/v1/dependencies?known=true|false.
func (h *ResolutionHandler) Dependencies(c *gin.Context) {
	filter := entity_detect.AllDependencies
	if raw, ok := c.GetQuery("known"); ok {
		known, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, errors.InvalidParam("known must be true or false").WithDetail("known="+raw))
			return
		}
		filter = entity_detect.UnknownDependencies
		if known {
			filter = entity_detect.KnownDependencies
		}
	}
	deps := h.svc.Dependencies(filter)
	if deps == nil {
		deps = []string{}
	}
	respond(c, http.StatusOK, DependenciesResponse{Dependencies: deps})
}

// Detectors handles GET /api/v1/detectors.
func (h *ResolutionHandler) Detectors(c *gin.Context) {
	respond(c, http.StatusOK, DetectorsResponse{Detectors: h.svc.Detectors()})
}

//Personal.AI order the ending
