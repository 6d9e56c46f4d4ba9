package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/collector"
	"github.com/bbernstein/flowebb/tidesensors/internal/compose"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

type instanceResponse struct {
	ID                    string               `json:"id"`
	Identifier            string               `json:"identifier"`
	Name                  string               `json:"name"`
	ProviderType          models.ProviderType  `json:"providerType"`
	Sensors               []models.ProductKind `json:"sensors"`
	UpdateIntervalSeconds int                  `json:"updateIntervalSeconds"`
	LastRefresh           *time.Time           `json:"lastRefresh,omitempty"`
}

type readingResponse struct {
	models.Reading
	Summary string `json:"summary"`
}

type identifyRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

type configureRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	setup.ConfigureInput
}

func newInstanceResponse(c *collector.Collector) instanceResponse {
	entry := c.Entry()
	resp := instanceResponse{
		ID:                    entry.ID,
		Identifier:            entry.Identifier,
		Name:                  entry.Options.Name,
		ProviderType:          entry.Capabilities.ProviderType,
		Sensors:               entry.Options.SensorList(),
		UpdateIntervalSeconds: entry.Options.UpdateIntervalSeconds,
	}
	if last := c.LastRefresh(); !last.IsZero() {
		resp.LastRefresh = &last
	}
	return resp
}

func (s *Server) listInstancesHandler(c *gin.Context) {
	collectors := s.manager.List()
	out := make([]instanceResponse, 0, len(collectors))
	for _, col := range collectors {
		out = append(out, newInstanceResponse(col))
	}
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

func (s *Server) readingsHandler(c *gin.Context) {
	col, ok := s.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instance": newInstanceResponse(col),
		"readings": toReadingResponses(col.Readings()),
	})
}

func (s *Server) refreshHandler(c *gin.Context) {
	col, ok := s.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}

	result := col.RefreshOnce(c.Request.Context())
	if result.Skipped {
		c.JSON(http.StatusConflict, gin.H{"error": "refresh already in progress"})
		return
	}

	failed := make(map[models.ProductKind]string, len(result.Failed))
	for product, err := range result.Failed {
		failed[product] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome":  result.Outcome(),
		"failed":   failed,
		"readings": toReadingResponses(result.Readings),
	})
}

func (s *Server) removeInstanceHandler(c *gin.Context) {
	id := c.Param("id")
	col, ok := s.manager.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		return
	}
	entry := col.Entry()

	if s.flow != nil {
		if err := s.flow.Remove(c.Request.Context(), id); err != nil {
			s.writeError(c, err)
			return
		}
	}
	s.manager.Remove(id)
	if s.onRemoved != nil {
		if err := s.onRemoved(c.Request.Context(), entry); err != nil {
			log.Warn().Err(err).Str("entry_id", id).Msg("Cleanup after removal failed")
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) identifyHandler(c *gin.Context) {
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": setup.CodeInvalidIdentifier, "field": "identifier", "message": err.Error()})
		return
	}

	result, err := s.flow.Identify(c.Request.Context(), req.Identifier)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) configureHandler(c *gin.Context) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": setup.CodeInvalidIdentifier, "field": "identifier", "message": err.Error()})
		return
	}

	entry, err := s.flow.Configure(c.Request.Context(), req.Identifier, req.ConfigureInput)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.onConfigured != nil {
		if err := s.onConfigured(c.Request.Context(), entry); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) reconfigureHandler(c *gin.Context) {
	var input setup.ConfigureInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	id := c.Param("id")
	entry, err := s.flow.Reconfigure(c.Request.Context(), id, input)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if col, ok := s.manager.Get(id); ok && s.onRemoved != nil {
		if dropped := droppedSensors(col.Entry(), entry); dropped != nil {
			if err := s.onRemoved(c.Request.Context(), dropped); err != nil {
				log.Warn().Err(err).Str("entry_id", id).Msg("Cleanup of dropped sensors failed")
			}
		}
	}
	s.manager.Remove(id)
	if s.onConfigured != nil {
		if err := s.onConfigured(c.Request.Context(), entry); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, entry)
}

// droppedSensors returns a copy of old limited to the sensors updated no
// longer enables, or nil when nothing was dropped.
func droppedSensors(old, updated *models.ConfigEntry) *models.ConfigEntry {
	var dropped []models.ProductKind
	for _, p := range old.Options.SensorList() {
		if !updated.Options.Enabled(p) {
			dropped = append(dropped, p)
		}
	}
	if len(dropped) == 0 {
		return nil
	}
	out := *old
	out.Options.EnabledSensors = models.SensorSet(dropped...)
	return &out
}

func (s *Server) writeError(c *gin.Context, err error) {
	var inputErr *setup.InputError
	switch {
	case errors.As(err, &inputErr):
		status := http.StatusBadRequest
		if inputErr.Code == setup.CodeUpstreamUnavailable {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error":   inputErr.Code,
			"field":   inputErr.Field,
			"message": inputErr.Error(),
		})
	case errors.Is(err, setup.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toReadingResponses(readings []models.Reading) []readingResponse {
	out := make([]readingResponse, 0, len(readings))
	for _, r := range readings {
		out = append(out, readingResponse{Reading: r, Summary: compose.Summary(r)})
	}
	return out
}
