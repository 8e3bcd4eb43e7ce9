package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DraftState is a step of the booking form
type DraftState string

const (
	DraftEditing    DraftState = "editing"
	DraftValidating DraftState = "validating"
	DraftConfirming DraftState = "confirming"
	DraftSubmitted  DraftState = "submitted"
)

const (
	MinPassengers = 1
	MaxPassengers = 4
	dateLayout    = "2006-01-02"
)

var (
	draftEmailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

	// ErrInvalidPassengers is returned when a passenger count is outside 1..4
	ErrInvalidPassengers = fmt.Errorf("passengers must be between %d and %d", MinPassengers, MaxPassengers)

	// ErrDraftState is returned when an operation does not apply to the current state
	ErrDraftState = errors.New("operation not allowed in the current booking step")

	timeSlots = buildTimeSlots()
	slotSet   = func() map[string]struct{} {
		set := make(map[string]struct{}, len(timeSlots))
		for _, s := range timeSlots {
			set[s] = struct{}{}
		}
		return set
	}()
)

// ValidationError carries field-level messages keyed by draft field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}

// Draft is the unsubmitted booking form
type Draft struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	PickupLocation      string `json:"pickupLocation"`
	DropoffLocation     string `json:"dropoffLocation"`
	Date                string `json:"date"` // YYYY-MM-DD
	Time                string `json:"time"` // HH:MM
	Passengers          int    `json:"passengers"`
	SpecialInstructions string `json:"specialInstructions"`
}

// TimeSlots returns the 30 minute pickup grid from 00:00 to 23:30
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

func buildTimeSlots() []string {
	slots := make([]string, 0, 48)
	for h := 0; h < 24; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return slots
}

// IsTimeSlot reports whether s is on the pickup grid
func IsTimeSlot(s string) bool {
	_, ok := slotSet[s]
	return ok
}

// Validate checks the draft against today's date in now's location.
// The returned map is empty when the draft is valid.
func (d Draft) Validate(now time.Time) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(d.Name) == "" {
		errs["name"] = "Name is required"
	}

	switch email := strings.TrimSpace(d.Email); {
	case email == "":
		errs["email"] = "Email is required"
	case !draftEmailPattern.MatchString(email):
		errs["email"] = "Invalid email format"
	}

	if strings.TrimSpace(d.Phone) == "" {
		errs["phone"] = "Phone is required"
	}
	if strings.TrimSpace(d.PickupLocation) == "" {
		errs["pickupLocation"] = "Pickup location is required"
	}
	if strings.TrimSpace(d.DropoffLocation) == "" {
		errs["dropoffLocation"] = "Dropoff location is required"
	}

	if msg := validateDate(d.Date, now); msg != "" {
		errs["date"] = msg
	}

	switch {
	case d.Time == "":
		errs["time"] = "Time is required"
	case !IsTimeSlot(d.Time):
		errs["time"] = "Select a valid time slot"
	}

	switch {
	case d.Passengers == 0:
		errs["passengers"] = "Passengers is required"
	case d.Passengers < MinPassengers || d.Passengers > MaxPassengers:
		errs["passengers"] = fmt.Sprintf("Select between %d and %d passengers", MinPassengers, MaxPassengers)
	}

	return errs
}

func validateDate(s string, now time.Time) string {
	if strings.TrimSpace(s) == "" {
		return "Date is required"
	}
	date, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return "Invalid date format"
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return "Date cannot be in the past"
	}
	return ""
}

// PickupDate parses the draft date. Call only after Validate succeeded.
func (d Draft) PickupDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, d.Date, loc)
}

// DraftMachine drives a draft through editing, validating, confirming and submitted
type DraftMachine struct {
	state     DraftState
	draft     Draft
	errors    map[string]string
	estimate  *Estimate
	estimator Estimator
	now       func() time.Time
}

// NewDraftMachine starts a machine in the editing state with one passenger selected
func NewDraftMachine(estimator Estimator, now func() time.Time) *DraftMachine {
	if now == nil {
		now = time.Now
	}
	return &DraftMachine{
		state:     DraftEditing,
		draft:     Draft{Passengers: MinPassengers},
		errors:    map[string]string{},
		estimator: estimator,
		now:       now,
	}
}

// State returns the current step
func (m *DraftMachine) State() DraftState { return m.state }

// Draft returns a copy of the form values
func (m *DraftMachine) Draft() Draft { return m.draft }

// Errors returns the field errors of the last failed submit
func (m *DraftMachine) Errors() map[string]string { return m.errors }

// Estimate returns the computed estimate while confirming or submitted
func (m *DraftMachine) Estimate() *Estimate { return m.estimate }

// Update edits the form. Only allowed while editing.
func (m *DraftMachine) Update(fn func(d *Draft)) error {
	if m.state != DraftEditing {
		return ErrDraftState
	}
	passengers := m.draft.Passengers
	fn(&m.draft)
	// Passenger count can only change through SetPassengers.
	m.draft.Passengers = passengers
	return nil
}

// SetPassengers selects a passenger count. Out of range values are rejected and
// the current count is kept.
func (m *DraftMachine) SetPassengers(n int) error {
	if m.state != DraftEditing {
		return ErrDraftState
	}
	if n < MinPassengers || n > MaxPassengers {
		return ErrInvalidPassengers
	}
	m.draft.Passengers = n
	return nil
}

// Submit validates the draft and, when valid, prices it and moves to confirming.
// On validation failure it returns a *ValidationError and stays in editing.
// Estimator failures also return to editing.
func (m *DraftMachine) Submit(ctx context.Context) error {
	if m.state != DraftEditing {
		return ErrDraftState
	}
	m.state = DraftValidating

	if errs := m.draft.Validate(m.now()); len(errs) > 0 {
		m.errors = errs
		m.state = DraftEditing
		return &ValidationError{Fields: errs}
	}
	m.errors = map[string]string{}

	estimate, err := m.estimator.Estimate(ctx, m.draft.PickupLocation, m.draft.DropoffLocation)
	if err != nil {
		m.state = DraftEditing
		return err
	}

	m.estimate = estimate
	m.state = DraftConfirming
	return nil
}

// Edit returns from confirming to editing and discards the estimate
func (m *DraftMachine) Edit() error {
	if m.state != DraftConfirming {
		return ErrDraftState
	}
	m.estimate = nil
	m.state = DraftEditing
	return nil
}

// Confirm marks the draft as handed to checkout
func (m *DraftMachine) Confirm() error {
	if m.state != DraftConfirming {
		return ErrDraftState
	}
	m.state = DraftSubmitted
	return nil
}
