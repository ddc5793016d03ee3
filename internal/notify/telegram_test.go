package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"carshare/internal/domain"
	"carshare/internal/events"
	"carshare/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f fakeUsers) UpsertUsers(ctx context.Context, users []models.User) error {
	return nil
}

func testPayload() events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:       "b-1",
		CustomerID:      "cust-1",
		CarID:           "car-1",
		OwnerID:         "owner-1",
		CarName:         "Skoda Octavia",
		StartDate:       time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC),
		TotalPriceCents: 15000,
	}
}

func messageTo(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

// startNotifier subscribes a running notifier to a fresh bus. stop flushes the
// queue and waits for Run to return.
func startNotifier(t *testing.T, sender domain.TelegramSender, users domain.UserRepository) (bus *events.EventBus, stop func()) {
	t.Helper()
	bus = events.NewEventBus()
	n := NewTelegramNotifier(sender, users, nil)
	n.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return bus, stop
}

func TestTelegramNotifier(t *testing.T) {
	users := fakeUsers{
		"owner-1": {ID: "owner-1", Role: models.RoleOwner, TelegramChatID: 100},
		"cust-1":  {ID: "cust-1", Role: models.RoleCustomer, TelegramChatID: 200},
		"cust-2":  {ID: "cust-2", Role: models.RoleCustomer},
	}

	t.Run("CreatedNotifiesOwner", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		sender.On("Send", messageTo(100, "New booking request for Skoda Octavia")).Return(tgbotapi.Message{}, nil).Once()

		require.NoError(t, bus.PublishJSON(events.EventBookingCreated, testPayload()))
		stop()
		sender.AssertExpectations(t)
	})

	t.Run("ConfirmedNotifiesCustomer", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		sender.On("Send", messageTo(200, "2024-06-10 to 2024-06-13")).Return(tgbotapi.Message{}, nil).Once()

		require.NoError(t, bus.PublishJSON(events.EventBookingConfirmed, testPayload()))
		stop()
		sender.AssertExpectations(t)
	})

	t.Run("RejectedIncludesReason", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		p := testPayload()
		p.RejectionReason = "car is in service"
		sender.On("Send", messageTo(200, "Reason: car is in service")).Return(tgbotapi.Message{}, nil).Once()

		require.NoError(t, bus.PublishJSON(events.EventBookingRejected, p))
		stop()
		sender.AssertExpectations(t)
	})

	t.Run("NoChatSkipsSend", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		p := testPayload()
		p.CustomerID = "cust-2"
		require.NoError(t, bus.PublishJSON(events.EventBookingConfirmed, p))
		stop()
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("UnknownRecipientIsLogged", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		p := testPayload()
		p.OwnerID = "ghost"
		assert.NoError(t, bus.PublishJSON(events.EventBookingCreated, p))
		stop()
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("SendFailureNotPropagated", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("telegram down")).Once()

		assert.NoError(t, bus.PublishJSON(events.EventBookingCreated, testPayload()))
		stop()
		sender.AssertExpectations(t)
	})

	t.Run("LifecycleEventsIgnored", func(t *testing.T) {
		sender := new(mockTelegramSender)
		bus, stop := startNotifier(t, sender, users)

		assert.NoError(t, bus.PublishJSON(events.EventBookingStarted, testPayload()))
		assert.NoError(t, bus.PublishJSON(events.EventBookingCompleted, testPayload()))
		stop()
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("BadPayload", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, users, nil)
		err := n.HandleBookingEvent(&events.Event{Type: events.EventBookingCreated, Payload: []byte("{")})
		assert.NoError(t, err)
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})
}

func TestTelegramNotifier_SlowSenderDoesNotBlockPublish(t *testing.T) {
	users := fakeUsers{"owner-1": {ID: "owner-1", Role: models.RoleOwner, TelegramChatID: 100}}
	release := make(chan struct{})
	sent := make(chan struct{})

	sender := new(mockTelegramSender)
	sender.On("Send", messageTo(100, "New booking request")).
		Run(func(mock.Arguments) {
			<-release
			close(sent)
		}).
		Return(tgbotapi.Message{}, nil).Once()

	bus, stop := startNotifier(t, sender, users)

	published := make(chan error, 1)
	go func() { published <- bus.PublishJSON(events.EventBookingCreated, testPayload()) }()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("publish waited for the telegram send")
	}

	close(release)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
	stop()
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_FullQueueDrops(t *testing.T) {
	users := fakeUsers{"owner-1": {ID: "owner-1", Role: models.RoleOwner, TelegramChatID: 100}}
	sender := new(mockTelegramSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

	n := NewTelegramNotifier(sender, users, nil)
	n.queue = make(chan notification, 1)
	bus := events.NewEventBus()
	n.Subscribe(bus)

	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, testPayload()))
	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, testPayload()))
	assert.Len(t, n.queue, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)

	assert.Empty(t, n.queue)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "150.00", FormatCents(15000))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-1.50", FormatCents(-150))
}
