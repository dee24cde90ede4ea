package services

import (
	"context"
	"testing"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/testutil"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type rideFixture struct {
	db       *gorm.DB
	svc      *RideshareService
	pusher   *recordingPusher
	notifier *recordingNotifier
	events   *recordingPublisher
	clock    *testutil.Clock
	driver   *models.User
}

func newRideFixture(t *testing.T) *rideFixture {
	db := testutil.NewDB(t)
	f := &rideFixture{
		db:       db,
		pusher:   &recordingPusher{},
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
		clock:    testutil.NewClock(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)),
	}
	points := NewPointsService(db, f.notifier, f.pusher, f.events, nil)
	points.Now = f.clock.Now
	f.svc = NewRideshareService(db, points, f.notifier, f.pusher, f.events, nil)
	f.svc.Now = f.clock.Now
	f.driver = testutil.CreateUser(t, db, "Dana")
	return f
}

func (f *rideFixture) ride(t *testing.T, seats int, departIn time.Duration) *models.Ride {
	t.Helper()
	ride, err := f.svc.Create(context.Background(), f.driver.ID, CreateRideInput{
		DepartureLocation:   "Ithaca Commons",
		DestinationLocation: "JFK Airport",
		DepartureTime:       f.clock.Now().Add(departIn),
		AvailableSeats:      seats,
		PricePerSeat:        25,
	})
	require.NoError(t, err)
	return ride
}

func (f *rideFixture) remaining(t *testing.T, id string) int {
	t.Helper()
	view, err := f.svc.Get(context.Background(), id, "")
	require.NoError(t, err)
	return view.RemainingSeats
}

func TestCreateRideValidation(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	base := CreateRideInput{
		DepartureLocation:   "Collegetown",
		DestinationLocation: "Syracuse",
		DepartureTime:       f.clock.Now().Add(time.Hour),
		AvailableSeats:      3,
	}

	past := base
	past.DepartureTime = f.clock.Now().Add(-time.Minute)
	_, err := f.svc.Create(ctx, f.driver.ID, past)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	tooMany := base
	tooMany.AvailableSeats = 9
	_, err = f.svc.Create(ctx, f.driver.ID, tooMany)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	negative := base
	negative.PricePerSeat = -1
	_, err = f.svc.Create(ctx, f.driver.ID, negative)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	arrival := base.DepartureTime.Add(-time.Minute)
	early := base
	early.ArrivalTime = &arrival
	_, err = f.svc.Create(ctx, f.driver.ID, early)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	ride, err := f.svc.Create(ctx, f.driver.ID, base)
	require.NoError(t, err)
	assert.Equal(t, models.RideActive, ride.Status)
	assert.Equal(t, "Collegetown to Syracuse", ride.Title)
	assert.Equal(t, int64(types.RIDE_CREATION_POINTS), testutil.Balance(t, f.db, f.driver.ID))
}

func TestBookSeatOverflow(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	ride := f.ride(t, 3, 24*time.Hour)
	first := testutil.CreateUser(t, f.db, "Pat")
	second := testutil.CreateUser(t, f.db, "Quinn")

	booking, err := f.svc.Book(ctx, ride.ID, first.ID, BookRideInput{Seats: 2})
	require.NoError(t, err)
	assert.Equal(t, float64(50), booking.TotalPrice)
	assert.Equal(t, 1, f.remaining(t, ride.ID))

	_, err = f.svc.Book(ctx, ride.ID, second.ID, BookRideInput{Seats: 2})
	ae := appErr(t, err)
	assert.Equal(t, 409, ae.Status)
	assert.Equal(t, SeatDetails{Available: 1, Requested: 2}, ae.Details)
	assert.Equal(t, 1, f.remaining(t, ride.ID))

	assert.Equal(t, []string{NotificationRideBooked}, f.notifier.types(f.driver.ID))
	assert.Contains(t, f.events.subjects, SubjectRideBooked)
}

func TestBookRejections(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	ride := f.ride(t, 2, 24*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Ray")

	_, err := f.svc.Book(ctx, ride.ID, f.driver.ID, BookRideInput{Seats: 1})
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	_, err = f.svc.Book(ctx, ride.ID, rider.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, ride.ID, rider.ID, BookRideInput{Seats: 1})
	assert.Equal(t, utils.CodeAlreadyExists, appErr(t, err).Code)

	other := testutil.CreateUser(t, f.db, "Otto")
	_, err = f.svc.Book(ctx, ride.ID, other.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)

	var stored models.Ride
	require.NoError(t, f.db.First(&stored, "id = ?", ride.ID).Error)
	assert.Equal(t, models.RideFull, stored.Status, "taking the last seat fills the ride")

	late := testutil.CreateUser(t, f.db, "Lou")
	_, err = f.svc.Book(ctx, ride.ID, late.ID, BookRideInput{Seats: 1})
	assert.Equal(t, 409, appErr(t, err).Status)

	_, err = f.svc.Book(ctx, "missing", late.ID, BookRideInput{Seats: 1})
	assert.Equal(t, 404, appErr(t, err).Status)
}

func TestCancelBookingCutoff(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	soon := f.ride(t, 2, time.Hour)
	later := f.ride(t, 1, 3*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Cass")

	soonBooking, err := f.svc.Book(ctx, soon.ID, rider.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)
	err = f.svc.CancelBooking(ctx, soonBooking.ID, rider.ID)
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	laterBooking, err := f.svc.Book(ctx, later.ID, rider.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)

	stranger := testutil.CreateUser(t, f.db, "Stan")
	err = f.svc.CancelBooking(ctx, laterBooking.ID, stranger.ID)
	assert.Equal(t, 403, appErr(t, err).Status)

	require.NoError(t, f.svc.CancelBooking(ctx, laterBooking.ID, rider.ID))
	var stored models.Ride
	require.NoError(t, f.db.First(&stored, "id = ?", later.ID).Error)
	assert.Equal(t, models.RideActive, stored.Status, "a full ride reopens")
	assert.Equal(t, 1, f.remaining(t, later.ID))
	assert.Contains(t, f.notifier.types(f.driver.ID), NotificationRideBookingCancelled)

	err = f.svc.CancelBooking(ctx, laterBooking.ID, rider.ID)
	assert.Equal(t, 409, appErr(t, err).Status)
}

func TestCompleteRideAwardsDriver(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	ride := f.ride(t, 3, 2*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Kim")
	booking, err := f.svc.Book(ctx, ride.ID, rider.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, ride.ID, rider.ID)
	assert.Equal(t, 403, appErr(t, err).Status)

	done, err := f.svc.Complete(ctx, ride.ID, f.driver.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideCompleted, done.Status)

	var stored models.RideBooking
	require.NoError(t, f.db.First(&stored, "id = ?", booking.ID).Error)
	assert.Equal(t, models.BookingCompleted, stored.Status)
	assert.Equal(t, int64(types.RIDE_CREATION_POINTS+15), testutil.Balance(t, f.db, f.driver.ID))
	assert.Equal(t, 1, f.pusher.count(RideRoom(ride.ID), "ride_completed"))

	_, err = f.svc.Complete(ctx, ride.ID, f.driver.ID)
	assert.Equal(t, 409, appErr(t, err).Status)
}

func TestCancelRideCancelsBookings(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	ride := f.ride(t, 3, 5*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Nia")
	_, err := f.svc.Book(ctx, ride.ID, rider.ID, BookRideInput{Seats: 2})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, ride.ID, f.driver.ID))
	assert.Equal(t, 3, f.remaining(t, ride.ID))
	assert.Contains(t, f.notifier.types(rider.ID), NotificationRideCancelled)

	err = f.svc.Cancel(ctx, ride.ID, f.driver.ID)
	assert.Equal(t, 409, appErr(t, err).Status)
}

func TestListRidesFilters(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	roomy := f.ride(t, 4, 24*time.Hour)
	tight := f.ride(t, 2, 48*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Lia")
	_, err := f.svc.Book(ctx, tight.ID, rider.ID, BookRideInput{Seats: 1})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, RideQuery{Destination: "jfk"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
	require.Len(t, all.Rides, 2)
	assert.Equal(t, roomy.ID, all.Rides[0].ID)
	assert.Equal(t, 1, all.Rides[1].RemainingSeats)
	require.NotNil(t, all.Rides[0].Driver)

	seats, err := f.svc.List(ctx, RideQuery{MinSeats: 2})
	require.NoError(t, err)
	require.Len(t, seats.Rides, 1)
	assert.Equal(t, roomy.ID, seats.Rides[0].ID)

	day := f.clock.Now().Add(48 * time.Hour).Format("2006-01-02")
	byDate, err := f.svc.List(ctx, RideQuery{Date: day})
	require.NoError(t, err)
	require.Len(t, byDate.Rides, 1)
	assert.Equal(t, tight.ID, byDate.Rides[0].ID)

	mine, err := f.svc.MyBookings(ctx, rider.ID, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, mine.Bookings, 1)
	require.NotNil(t, mine.Bookings[0].Ride)

	driven, err := f.svc.MyRides(ctx, f.driver.ID, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), driven.Total)
}

func TestUpdateRideSeats(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()
	ride := f.ride(t, 3, 24*time.Hour)
	rider := testutil.CreateUser(t, f.db, "Ivy")
	_, err := f.svc.Book(ctx, ride.ID, rider.ID, BookRideInput{Seats: 2})
	require.NoError(t, err)

	one := 1
	_, err = f.svc.Update(ctx, ride.ID, f.driver.ID, UpdateRideInput{AvailableSeats: &one})
	assert.Equal(t, 409, appErr(t, err).Status)

	two := 2
	updated, err := f.svc.Update(ctx, ride.ID, f.driver.ID, UpdateRideInput{AvailableSeats: &two})
	require.NoError(t, err)
	assert.Equal(t, models.RideFull, updated.Status)
	assert.Zero(t, updated.RemainingSeats)
	assert.Equal(t, 1, f.pusher.count(RideRoom(ride.ID), "ride_updated"))
}
