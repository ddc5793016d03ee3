package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"carshare/internal/domain"
	"carshare/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) GetBookingDetails(ctx context.Context, id string) (*models.BookingDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) ListActiveCarBookings(ctx context.Context, carID, exclude string) ([]*models.Booking, error) {
	args := m.Called(ctx, carID, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) TransitionBooking(ctx context.Context, t models.StatusTransition) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockBookingRepo) ListCustomerBookings(ctx context.Context, id string, s models.BookingStatus) ([]*models.BookingDetails, error) {
	args := m.Called(ctx, id, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) ListOwnerBookings(ctx context.Context, id string, s models.BookingStatus) ([]*models.BookingDetails, error) {
	args := m.Called(ctx, id, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) ListBookingsToStart(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookingsToComplete(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockCarRepo struct {
	mock.Mock
}

func (m *mockCarRepo) GetCar(ctx context.Context, id string) (*models.Car, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}
func (m *mockCarRepo) SetCarListed(ctx context.Context, id string, listed bool) error {
	return m.Called(ctx, id, listed).Error(0)
}
func (m *mockCarRepo) UpsertCars(ctx context.Context, cars []models.Car) error {
	return m.Called(ctx, cars).Error(0)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) HasReview(ctx context.Context, bookingID string) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}
func (m *mockReviewRepo) CreateReview(ctx context.Context, r *models.Review) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockReviewRepo) ListCarReviews(ctx context.Context, carID string) ([]models.Review, error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

// fakeStore is an in-memory repository whose TransitionBooking behaves like
// the sqlite conditional update.
type fakeStore struct {
	mu       sync.Mutex
	cars     map[string]*models.Car
	users    map[string]*models.User
	bookings map[string]*models.Booking
	reviews  map[string]models.Review

	// beforeCheck runs inside ListActiveCarBookings, outside the lock.
	beforeCheck func()
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		cars:     map[string]*models.Car{},
		users:    map[string]*models.User{},
		bookings: map[string]*models.Booking{},
		reviews:  map[string]models.Review{},
	}
	for _, u := range []models.User{
		{ID: "owner-1", Name: "Olga", Role: models.RoleOwner},
		{ID: "owner-2", Name: "Oscar", Role: models.RoleOwner},
		{ID: "cust-1", Name: "Chris", Role: models.RoleCustomer},
		{ID: "cust-2", Name: "Dana", Role: models.RoleCustomer},
	} {
		u := u
		s.users[u.ID] = &u
	}
	s.cars["car-1"] = &models.Car{ID: "car-1", OwnerID: "owner-1", Make: "Skoda", Model: "Octavia", PricePerDayCents: 5000, IsListed: true}
	s.cars["car-2"] = &models.Car{ID: "car-2", OwnerID: "owner-2", Make: "Lada", Model: "Vesta", PricePerDayCents: 3000, IsListed: false}
	return s
}

func (s *fakeStore) put(b models.Booking) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.bookings[b.ID] = &b
	return &b
}

func (s *fakeStore) status(id string) models.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].Status
}

func (s *fakeStore) CreateBooking(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) GetBookingDetails(_ context.Context, id string) (*models.BookingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return s.details(b), nil
}

func (s *fakeStore) details(b *models.Booking) *models.BookingDetails {
	d := &models.BookingDetails{Booking: *b}
	if u, ok := s.users[b.CustomerID]; ok {
		d.Customer = models.CustomerSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if c, ok := s.cars[b.CarID]; ok {
		d.Car = c.Summary()
	}
	return d
}

func (s *fakeStore) ListActiveCarBookings(_ context.Context, carID, exclude string) ([]*models.Booking, error) {
	s.mu.Lock()
	var out []*models.Booking
	for _, b := range s.bookings {
		if b.CarID == carID && b.ID != exclude && !b.Status.IsTerminal() {
			cp := *b
			out = append(out, &cp)
		}
	}
	hook := s.beforeCheck
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (s *fakeStore) TransitionBooking(_ context.Context, t models.StatusTransition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[t.BookingID]
	if !ok {
		return 0, nil
	}
	matched := false
	for _, f := range t.From {
		if b.Status == f {
			matched = true
		}
	}
	if !matched {
		return 0, nil
	}
	if t.CustomerID != "" && b.CustomerID != t.CustomerID {
		return 0, nil
	}
	if t.OwnerID != "" && s.cars[b.CarID].OwnerID != t.OwnerID {
		return 0, nil
	}
	b.Status = t.To
	b.RejectionReason = nil
	if t.To == models.StatusRejected {
		b.RejectionReason = t.RejectionReason
	}
	b.UpdatedAt = time.Now()
	return 1, nil
}

func (s *fakeStore) list(match func(b *models.Booking) bool) []*models.BookingDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BookingDetails
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, s.details(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakeStore) ListCustomerBookings(_ context.Context, id string, st models.BookingStatus) ([]*models.BookingDetails, error) {
	return s.list(func(b *models.Booking) bool {
		return b.CustomerID == id && (st == "" || b.Status == st)
	}), nil
}

func (s *fakeStore) ListOwnerBookings(_ context.Context, id string, st models.BookingStatus) ([]*models.BookingDetails, error) {
	return s.list(func(b *models.Booking) bool {
		return s.cars[b.CarID].OwnerID == id && (st == "" || b.Status == st)
	}), nil
}

func (s *fakeStore) ListBookingsToStart(_ context.Context, today time.Time) ([]*models.Booking, error) {
	return s.bookingsWhere(func(b *models.Booking) bool {
		return b.Status == models.StatusUpcoming && !b.StartDate.After(today)
	}), nil
}

func (s *fakeStore) ListBookingsToComplete(_ context.Context, today time.Time) ([]*models.Booking, error) {
	return s.bookingsWhere(func(b *models.Booking) bool {
		return b.Status == models.StatusOngoing && b.EndDate.Before(today)
	}), nil
}

func (s *fakeStore) bookingsWhere(match func(b *models.Booking) bool) []*models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Booking
	for _, b := range s.bookings {
		if match(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

func (s *fakeStore) GetCar(_ context.Context, id string) (*models.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cars[id]
	if !ok {
		return nil, domain.ErrCarNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) SetCarListed(_ context.Context, id string, listed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cars[id]
	if !ok {
		return domain.ErrCarNotFound
	}
	c.IsListed = listed
	return nil
}

func (s *fakeStore) UpsertCars(_ context.Context, cars []models.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cars {
		c := c
		s.cars[c.ID] = &c
	}
	return nil
}

func (s *fakeStore) HasReview(_ context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reviews[bookingID]
	return ok, nil
}

func (s *fakeStore) CreateReview(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.BookingID]; ok {
		return domain.ErrReviewExists
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	s.reviews[r.BookingID] = *r
	return nil
}

func (s *fakeStore) ListCarReviews(_ context.Context, carID string) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Review
	for _, r := range s.reviews {
		if r.CarID == carID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func mustDate(raw string) time.Time {
	d, err := models.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	customer1 = models.Caller{UserID: "cust-1", Role: models.RoleCustomer}
	customer2 = models.Caller{UserID: "cust-2", Role: models.RoleCustomer}
	owner1    = models.Caller{UserID: "owner-1", Role: models.RoleOwner}
	owner2    = models.Caller{UserID: "owner-2", Role: models.RoleOwner}
)

var (
	_ domain.BookingRepository = (*fakeStore)(nil)
	_ domain.CarRepository     = (*fakeStore)(nil)
	_ domain.ReviewRepository  = (*fakeStore)(nil)
)
