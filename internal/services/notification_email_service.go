package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/luxride/booking-portal/pkg/email"
	"github.com/sirupsen/logrus"
)

// Notification email types
const (
	NotificationEmailBooking        = "booking"
	NotificationEmailDriver         = "driver"
	NotificationEmailDriverDecision = "driver_decision"
)

// ErrUnknownNotificationType is returned for a type with no template
var ErrUnknownNotificationType = errors.New("unknown notification type")

// NotificationRequest is the input of send-notification
type NotificationRequest struct {
	Type string                 `json:"type" binding:"required"`
	Data map[string]interface{} `json:"data"`
}

var notificationTemplates = template.Must(template.New("booking").Parse(`<h2>New booking request</h2>
<p><strong>Customer:</strong> {{.Name}}</p>
<p><strong>Pickup:</strong> {{.PickupLocation}}</p>
<p><strong>Dropoff:</strong> {{.DropoffLocation}}</p>
<p><strong>Date:</strong> {{.Date}} at {{.Time}}</p>
<p><strong>Passengers:</strong> {{.Passengers}}</p>
{{if .SpecialInstructions}}<p><strong>Notes:</strong> {{.SpecialInstructions}}</p>{{end}}`))

func init() {
	template.Must(notificationTemplates.New("driver").Parse(`<h2>New driver application</h2>
<p><strong>Applicant:</strong> {{.Name}} ({{.Email}})</p>
<p><strong>Years of experience:</strong> {{.YearsExperience}}</p>
<p><strong>License number:</strong> {{.LicenseNumber}}</p>
{{if .About}}<p>{{.About}}</p>{{end}}`))

	template.Must(notificationTemplates.New("driver_decision").Parse(`<h2>Your driver application</h2>
<p>Hello {{.Name}},</p>
{{if .Approved}}<p>Your application has been approved. You can now sign in to see your assigned rides.</p>
{{else}}<p>Thank you for applying. We are unable to move forward with your application at this time.</p>{{end}}`))
}

type bookingEmail struct {
	Name                string
	PickupLocation      string
	DropoffLocation     string
	Date                string
	Time                string
	Passengers          string
	SpecialInstructions string
}

type driverEmail struct {
	Name            string
	Email           string
	YearsExperience string
	LicenseNumber   string
	About           string
}

type decisionEmail struct {
	Name     string
	Approved bool
}

// NotificationEmailService renders and sends operator notification emails
type NotificationEmailService struct {
	sender     email.Sender
	recipients []string
	logger     *logrus.Logger
}

// NewNotificationEmailService creates a new notification email service.
// recipients receive booking and driver notifications.
func NewNotificationEmailService(sender email.Sender, recipients []string, logger *logrus.Logger) *NotificationEmailService {
	return &NotificationEmailService{sender: sender, recipients: recipients, logger: logger}
}

// Send renders the template for req.Type and mails it to the admin recipients
func (s *NotificationEmailService) Send(ctx context.Context, req NotificationRequest) (string, error) {
	var (
		subject string
		data    interface{}
	)

	switch req.Type {
	case NotificationEmailBooking:
		subject = "New booking request"
		data = bookingEmail{
			Name:                field(req.Data, "name"),
			PickupLocation:      field(req.Data, "pickupLocation"),
			DropoffLocation:     field(req.Data, "dropoffLocation"),
			Date:                field(req.Data, "date"),
			Time:                field(req.Data, "time"),
			Passengers:          field(req.Data, "passengers"),
			SpecialInstructions: field(req.Data, "specialInstructions"),
		}
	case NotificationEmailDriver:
		subject = "New driver application"
		data = driverEmail{
			Name:            field(req.Data, "name"),
			Email:           field(req.Data, "email"),
			YearsExperience: field(req.Data, "yearsExperience"),
			LicenseNumber:   field(req.Data, "licenseNumber"),
			About:           field(req.Data, "about"),
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNotificationType, req.Type)
	}

	return s.deliver(ctx, req.Type, s.recipients, subject, data)
}

// SendDecision tells an applicant the outcome of their driver application
func (s *NotificationEmailService) SendDecision(ctx context.Context, to, name string, approved bool) (string, error) {
	subject := "Your driver application"
	return s.deliver(ctx, NotificationEmailDriverDecision, []string{to}, subject, decisionEmail{Name: name, Approved: approved})
}

func (s *NotificationEmailService) deliver(ctx context.Context, name string, to []string, subject string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := notificationTemplates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}

	id, err := s.sender.Send(ctx, email.Message{To: to, Subject: subject, HTML: body.String()})
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"type":       name,
		"recipients": len(to),
		"email_id":   id,
	}).Info("Notification email sent")

	return id, nil
}

func field(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
