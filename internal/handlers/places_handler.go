package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// PlacesHandler serves address suggestions
type PlacesHandler struct {
	addresses *services.AddressService
	logger    *logrus.Logger
}

// NewPlacesHandler creates a new places handler
func NewPlacesHandler(addresses *services.AddressService, logger *logrus.Logger) *PlacesHandler {
	return &PlacesHandler{addresses: addresses, logger: logger}
}

// PlacesRequest is the body of a suggestion request
type PlacesRequest struct {
	Input    string `json:"input"`
	Provider string `json:"provider"`
}

// Suggest handles POST /functions/google-places
func (h *PlacesHandler) Suggest(c *gin.Context) {
	var req PlacesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	h.suggest(c, req)
}

// Lookup handles GET /functions/google-places. Without an input parameter it
// returns the browser script config, otherwise suggestions for ?input=&provider=.
func (h *PlacesHandler) Lookup(c *gin.Context) {
	input, ok := c.GetQuery("input")
	if !ok {
		h.ScriptConfig(c)
		return
	}
	h.suggest(c, PlacesRequest{Input: input, Provider: c.Query("provider")})
}

func (h *PlacesHandler) suggest(c *gin.Context, req PlacesRequest) {
	predictions, err := h.addresses.Suggest(c.Request.Context(), req.Input, req.Provider)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}

// ScriptConfig handles GET /functions/maps-config, an alias of the bare google-places GET
func (h *PlacesHandler) ScriptConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.addresses.ScriptConfig())
}
