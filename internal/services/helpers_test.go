package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sosalert/internal/config"
	"sosalert/internal/models"
	"sosalert/internal/repositories/memory"
	"sosalert/internal/validators"
	"sosalert/pkg/logger"
	"sosalert/pkg/push"
	"sosalert/pkg/sms"
	"sosalert/pkg/storage"
)

type publishedEvent struct {
	Room  string
	Event string
	Data  interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, room, event string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Room: room, Event: event, Data: data})
	return p.err
}

func (p *recordingPublisher) named(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) Name() string { return "mock" }

func (m *mockSMS) SendSMS(ctx context.Context, request *sms.SMSRequest) (*sms.SMSResponse, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*sms.SMSResponse)
	return resp, args.Error(1)
}

type mockPush struct{ mock.Mock }

func (m *mockPush) Name() string { return "mock" }

func (m *mockPush) SendNotification(ctx context.Context, request *push.NotificationRequest) (*push.NotificationResponse, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*push.NotificationResponse)
	return resp, args.Error(1)
}

type alertFixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	notifier  NotificationService
	service   AlertService
	dispatch  *config.DispatchConfig
}

type fixtureOptions struct {
	notifications NotificationOptions
	media         storage.Provider
}

func newAlertFixture(t *testing.T, opts ...fixtureOptions) *alertFixture {
	t.Helper()

	var o fixtureOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	store := memory.NewStore()
	publisher := &recordingPublisher{}
	log := logger.NewNop()
	dispatch := &config.DispatchConfig{
		MatchDelta:        0.45,
		MaxCandidates:     20,
		ActiveAlertsLimit: 50,
		ArrivalWindow:     15 * time.Minute,
		OperationTimeout:  time.Second,
	}
	notifier := NewNotificationService(publisher, o.notifications, log)
	matcher := NewMatcherService(store, dispatch.MatchDelta, dispatch.MaxCandidates)

	return &alertFixture{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		service:   NewAlertService(store, matcher, notifier, o.media, nil, dispatch, nil, log),
		dispatch:  dispatch,
	}
}

var userSeq int64

func (f *alertFixture) victim(t *testing.T, name string) *models.User {
	t.Helper()
	return f.createUser(t, &models.User{Name: name, Role: models.UserRoleVictim, IsActive: true})
}

func (f *alertFixture) volunteerAt(t *testing.T, name string, lat, lng float64) *models.User {
	t.Helper()
	return f.createUser(t, &models.User{
		Name:     name,
		Role:     models.UserRoleVolunteer,
		IsActive: true,
		Location: &models.Coordinates{Latitude: lat, Longitude: lng},
	})
}

func (f *alertFixture) createUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	u.Email = fmt.Sprintf("%s-%d@example.com", u.Name, atomic.AddInt64(&userSeq, 1))
	created, err := f.store.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (f *alertFixture) raise(t *testing.T, raiser *models.User, lat, lng float64) *models.EmergencyAlert {
	t.Helper()
	alert, err := f.service.CreateAlert(context.Background(), raiser, alertRequest(lat, lng))
	require.NoError(t, err)
	return alert
}

func alertRequest(lat, lng float64) *validators.CreateAlertRequest {
	return &validators.CreateAlertRequest{
		Location: validators.LocationRequest{Latitude: &lat, Longitude: &lng},
		UserDetails: validators.ContactDetailsRequest{
			Name:    "Asha",
			Phone:   "+91 98450 00000",
			Address: "12 MG Road, Bengaluru",
		},
	}
}
