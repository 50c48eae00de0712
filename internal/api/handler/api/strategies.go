// internal/api/handler/api/strategies.go
package api

import (
	"net/http"

	"github.com/newthinker/lookback/internal/api/response"
	"github.com/newthinker/lookback/internal/strategy"
)

// StrategiesHandler lists the available strategies.
type StrategiesHandler struct {
	registry *strategy.Registry
}

// NewStrategiesHandler creates a new strategies handler.
func NewStrategiesHandler(registry *strategy.Registry) *StrategiesHandler {
	return &StrategiesHandler{registry: registry}
}

// List returns every registered strategy.
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.registry.Describe())
}
