package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryApplications struct {
	mu       sync.Mutex
	apps     []*models.DriverApplication
	profiles *memoryProfiles
	grantErr error
}

func (m *memoryApplications) Create(app *models.DriverApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app.ID = uuid.New()
	app.CreatedAt = time.Now()
	cp := *app
	m.apps = append(m.apps, &cp)
	return nil
}

func (m *memoryApplications) GetByID(id uuid.UUID) (*models.DriverApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryApplications) GetLatestByUser(userID uuid.UUID) (*models.DriverApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.apps) - 1; i >= 0; i-- {
		if m.apps[i].UserID == userID {
			cp := *m.apps[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryApplications) List(status models.ApplicationStatus, limit int) ([]models.DriverApplicationWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DriverApplicationWithProfile
	for _, a := range m.apps {
		if status == "" || a.Status == status {
			out = append(out, models.DriverApplicationWithProfile{DriverApplication: *a})
		}
	}
	return out, nil
}

// Review mirrors the repository transaction: a failed grant leaves the
// application pending
func (m *memoryApplications) Review(id uuid.UUID, status models.ApplicationStatus, reviewerID uuid.UUID, grant models.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.ID == id && a.Status == models.ApplicationStatusPending {
			if grant != "" {
				if m.grantErr != nil {
					return false, m.grantErr
				}
				if p, _ := m.profiles.GetByID(a.UserID); p != nil && p.Role != models.RoleAdmin {
					if err := m.profiles.UpdateRole(a.UserID, grant); err != nil {
						return false, err
					}
				}
			}
			a.Status = status
			a.ReviewedBy = uuid.NullUUID{UUID: reviewerID, Valid: true}
			return true, nil
		}
	}
	return false, nil
}

type applicationFixture struct {
	svc      *DriverApplicationService
	apps     *memoryApplications
	profiles *memoryProfiles
	sender   *recordingSender
	admin    Actor
}

func newApplicationFixture(t *testing.T) *applicationFixture {
	t.Helper()
	auth := newAuthFixture(nil)
	f := &applicationFixture{
		apps:     &memoryApplications{profiles: auth.profiles},
		profiles: auth.profiles,
		sender:   &recordingSender{},
	}

	admin := &models.Profile{Email: "admin@example.com", Role: models.RoleAdmin}
	require.NoError(t, f.profiles.Create(admin))
	f.admin = Actor{ID: admin.ID, Role: models.RoleAdmin}

	notifier := NewNotificationEmailService(f.sender, []string{"ops@example.com"}, newTestLogger())
	f.svc = NewDriverApplicationService(f.apps, f.profiles, auth.svc, notifier, nil, nil, newTestLogger())
	return f
}

func publicApplication() models.CreateDriverApplicationRequest {
	return models.CreateDriverApplicationRequest{
		Email:           "sam@example.com",
		Password:        "drive safely",
		FirstName:       "Sam",
		LastName:        "Park",
		YearsExperience: 7,
		LicenseNumber:   " D1234567 ",
		AboutText:       "Ten years of airport runs",
	}
}

func TestDriverApplication_PublicApplyAndApprove(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Apply(ctx, publicApplication(), nil, Caller{IPAddress: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, "D1234567", app.LicenseNumber)

	applicant, err := f.profiles.GetByEmail("sam@example.com")
	require.NoError(t, err)
	require.NotNil(t, applicant)
	assert.Equal(t, models.RoleClient, applicant.Role)
	assert.Equal(t, applicant.ID, app.UserID)

	assert.Equal(t, "New driver application", f.sender.last().Subject)

	reviewed, err := f.svc.Review(ctx, app.ID, true, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, reviewed.Status)
	assert.Equal(t, f.admin.ID, reviewed.ReviewedBy.UUID)

	promoted, err := f.profiles.GetByID(applicant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDriver, promoted.Role)
	assert.Equal(t, []string{"sam@example.com"}, f.sender.last().To)

	_, err = f.svc.Review(ctx, app.ID, false, f.admin)
	assert.ErrorIs(t, err, ErrApplicationNotPending)
}

func TestDriverApplication_RejectKeepsRole(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Apply(ctx, publicApplication(), nil, Caller{})
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, app.ID, false, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, reviewed.Status)

	applicant, err := f.profiles.GetByID(app.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, applicant.Role)
}

func TestDriverApplication_FailedGrantLeavesPending(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	app, err := f.svc.Apply(ctx, publicApplication(), nil, Caller{})
	require.NoError(t, err)

	f.apps.grantErr = errors.New("connection reset")
	_, err = f.svc.Review(ctx, app.ID, true, f.admin)
	require.Error(t, err)

	stored, err := f.apps.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, stored.Status)

	applicant, err := f.profiles.GetByID(app.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, applicant.Role)

	f.apps.grantErr = nil
	reviewed, err := f.svc.Review(ctx, app.ID, true, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, reviewed.Status)
}

func TestDriverApplication_ApprovedAdminKeepsRole(t *testing.T) {
	f := newApplicationFixture(t)
	ctx := context.Background()

	adminActor := &Actor{ID: f.admin.ID, Role: models.RoleAdmin}
	req := models.CreateDriverApplicationRequest{YearsExperience: 12, LicenseNumber: "A1112223"}
	app, err := f.svc.Apply(ctx, req, adminActor, Caller{})
	require.NoError(t, err)

	reviewed, err := f.svc.Review(ctx, app.ID, true, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, reviewed.Status)

	profile, err := f.profiles.GetByID(f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, profile.Role)
}

func TestDriverApplication_SignedInApplicant(t *testing.T) {
	f := newApplicationFixture(t)
	client := &models.Profile{Email: "kim@example.com", Role: models.RoleClient}
	require.NoError(t, f.profiles.Create(client))
	actor := &Actor{ID: client.ID, Role: models.RoleClient}

	req := models.CreateDriverApplicationRequest{YearsExperience: 3, LicenseNumber: "K7654321"}
	app, err := f.svc.Apply(context.Background(), req, actor, Caller{})
	require.NoError(t, err)
	assert.Equal(t, client.ID, app.UserID)

	_, err = f.svc.Apply(context.Background(), req, actor, Caller{})
	assert.ErrorIs(t, err, ErrApplicationExists)

	mine, err := f.svc.Mine(*actor)
	require.NoError(t, err)
	assert.Equal(t, app.ID, mine.ID)
}

func TestDriverApplication_Validation(t *testing.T) {
	f := newApplicationFixture(t)

	_, err := f.svc.Apply(context.Background(), models.CreateDriverApplicationRequest{YearsExperience: 61}, nil, Caller{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "License number is required", verr.Fields["license_number"])
	assert.Equal(t, "First name is required", verr.Fields["first_name"])
	assert.Contains(t, verr.Fields, "years_experience")

	_, err = f.svc.List("maybe", 10)
	assert.ErrorAs(t, err, &verr)

	_, err = f.svc.Mine(Actor{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrApplicationNotFound)

	_, err = f.svc.Review(context.Background(), uuid.New(), true, f.admin)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestDriverApplication_DuplicateEmail(t *testing.T) {
	f := newApplicationFixture(t)

	_, err := f.svc.Apply(context.Background(), publicApplication(), nil, Caller{})
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), publicApplication(), nil, Caller{})
	assert.ErrorIs(t, err, ErrEmailTaken)

	pending, err := f.svc.List(string(models.ApplicationStatusPending), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
