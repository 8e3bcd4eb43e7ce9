package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler serves the booking form helpers and booking CRUD
type BookingHandler struct {
	bookings  *services.BookingService
	estimator services.Estimator
	logger    *logrus.Logger
	now       func() time.Time
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings *services.BookingService, estimator services.Estimator, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings:  bookings,
		estimator: estimator,
		logger:    logger,
		now:       time.Now,
	}
}

// DraftResponse is the booking form state after a validate call
type DraftResponse struct {
	State    services.DraftState `json:"state"`
	Draft    services.Draft      `json:"draft"`
	Estimate *services.Estimate  `json:"estimate,omitempty"`
	Errors   map[string]string   `json:"errors,omitempty"`
}

// Estimate handles POST /api/v1/bookings/estimate
func (h *BookingHandler) Estimate(c *gin.Context) {
	var req models.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Pickup and dropoff locations are required")
		return
	}

	estimate, err := h.estimator.Estimate(c.Request.Context(), req.PickupLocation, req.DropoffLocation)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, estimate)
}

// Validate handles POST /api/v1/bookings/validate. It runs the draft through
// the booking form steps and returns the confirming state with its estimate.
func (h *BookingHandler) Validate(c *gin.Context) {
	var draft services.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	machine := services.NewDraftMachine(h.estimator, h.now)
	if err := machine.Update(func(d *services.Draft) { *d = draft }); err != nil {
		respondError(c, h.logger, err)
		return
	}

	// An out of range count is rejected and the form keeps its current value
	if err := machine.SetPassengers(draft.Passengers); err != nil {
		c.JSON(http.StatusBadRequest, DraftResponse{
			State:  machine.State(),
			Draft:  machine.Draft(),
			Errors: draft.Validate(h.now()),
		})
		return
	}

	err := machine.Submit(c.Request.Context())
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, DraftResponse{
			State:  machine.State(),
			Draft:  machine.Draft(),
			Errors: verr.Fields,
		})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, DraftResponse{
		State:    machine.State(),
		Draft:    machine.Draft(),
		Estimate: machine.Estimate(),
	})
}

// TimeSlots handles GET /api/v1/bookings/time-slots
func (h *BookingHandler) TimeSlots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"time_slots": services.TimeSlots()})
}

// ListMine handles GET /api/v1/bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListOwn(userCtx.Actor(), queryLimit(c, 50))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ListAssigned handles GET /api/v1/bookings/assigned
func (h *BookingHandler) ListAssigned(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}

	bookings, err := h.bookings.ListAssigned(userCtx.Actor(), queryLimit(c, 50))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Get(id, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// UpdateBooking handles PUT /api/v1/bookings/:id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	booking, err := h.bookings.UpdateDetails(c.Request.Context(), id, userCtx.Actor(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), id, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListAll handles GET /api/v1/admin/bookings?status=
func (h *BookingHandler) ListAll(c *gin.Context) {
	var status models.BookingStatus
	if s := c.Query("status"); s != "" {
		parsed, ok := models.ParseBookingStatus(s)
		if !ok {
			badRequest(c, "Invalid status")
			return
		}
		status = parsed
	}

	bookings, err := h.bookings.ListAll(c.Request.Context(), status, queryLimit(c, 100))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// UpdateStatus handles PUT /api/v1/admin/bookings/:id/status
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Status is required")
		return
	}

	booking, err := h.bookings.UpdateStatus(c.Request.Context(), id, req.Status, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// AssignDriver handles PUT /api/v1/admin/bookings/:id/driver
func (h *BookingHandler) AssignDriver(c *gin.Context) {
	userCtx, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Driver id is required")
		return
	}

	booking, err := h.bookings.AssignDriver(c.Request.Context(), id, req.DriverID, userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}
