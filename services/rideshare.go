package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const BookingCancelLimit = 2 * time.Hour

type CreateRideInput struct {
	Title               string     `json:"title" binding:"max=200"`
	Description         string     `json:"description" binding:"max=2000"`
	DepartureLocation   string     `json:"departure_location" binding:"required,max=255"`
	DestinationLocation string     `json:"destination_location" binding:"required,max=255"`
	DepartureTime       time.Time  `json:"departure_time" binding:"required"`
	ArrivalTime         *time.Time `json:"arrival_time"`
	AvailableSeats      int        `json:"available_seats" binding:"required,min=1,max=8"`
	PricePerSeat        float64    `json:"price_per_seat" binding:"min=0"`
	RecurringType       string     `json:"recurring_type" binding:"omitempty,oneof=none daily weekly"`
	VehicleInfo         string     `json:"vehicle_info" binding:"max=255"`
	Rules               string     `json:"rules" binding:"max=1000"`
}

type UpdateRideInput struct {
	Title               *string    `json:"title" binding:"omitempty,max=200"`
	Description         *string    `json:"description" binding:"omitempty,max=2000"`
	DepartureLocation   *string    `json:"departure_location" binding:"omitempty,min=1,max=255"`
	DestinationLocation *string    `json:"destination_location" binding:"omitempty,min=1,max=255"`
	DepartureTime       *time.Time `json:"departure_time"`
	ArrivalTime         *time.Time `json:"arrival_time"`
	AvailableSeats      *int       `json:"available_seats" binding:"omitempty,min=1,max=8"`
	PricePerSeat        *float64   `json:"price_per_seat" binding:"omitempty,min=0"`
	VehicleInfo         *string    `json:"vehicle_info" binding:"omitempty,max=255"`
	Rules               *string    `json:"rules" binding:"omitempty,max=1000"`
}

type RideQuery struct {
	Departure   string   `form:"departure"`
	Destination string   `form:"destination"`
	Date        string   `form:"date"`
	MinSeats    int      `form:"min_seats" binding:"min=0,max=8"`
	MaxPrice    *float64 `form:"max_price" binding:"omitempty,min=0"`
	Page        int      `form:"page,default=1" binding:"min=1"`
	PageSize    int      `form:"pageSize,default=20" binding:"min=1,max=100"`
}

type BookRideInput struct {
	Seats          int    `json:"seats" binding:"required,min=1,max=8"`
	PickupLocation string `json:"pickup_location" binding:"max=255"`
	Notes          string `json:"notes" binding:"max=500"`
}

type SeatDetails struct {
	Available int `json:"available"`
	Requested int `json:"requested"`
}

type RideView struct {
	models.Ride
	Driver   *models.PublicProfile `json:"driver,omitempty"`
	Bookings []BookingView         `json:"bookings,omitempty"`
}

type BookingView struct {
	models.RideBooking
	Passenger *models.PublicProfile `json:"passenger,omitempty"`
}

type RideList struct {
	Rides []RideView `json:"rides"`
	PageInfo
}

type BookingList struct {
	Bookings []models.RideBooking `json:"bookings"`
	PageInfo
}

type RideshareService struct {
	db       *gorm.DB
	points   *PointsService
	notifier Notifier
	pusher   Pusher
	events   EventPublisher
	log      *slog.Logger
	Now      func() time.Time
}

func NewRideshareService(db *gorm.DB, points *PointsService, notifier Notifier, pusher Pusher, events EventPublisher, log *slog.Logger) *RideshareService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &RideshareService{
		db:       db,
		points:   points,
		notifier: notifier,
		pusher:   pusher,
		events:   events,
		log:      loggerOrDefault(log),
		Now:      defaultNow,
	}
}

// bookedSeats sums confirmed bookings per ride.
func bookedSeats(tx *gorm.DB, rideIDs ...string) (map[string]int, error) {
	out := make(map[string]int, len(rideIDs))
	if len(rideIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		RideID string
		Seats  int
	}
	err := tx.Model(&models.RideBooking{}).
		Select("ride_id, COALESCE(SUM(seats_booked), 0) AS seats").
		Where("ride_id IN ? AND status = ?", rideIDs, models.BookingConfirmed).
		Group("ride_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum booked seats: %w", err)
	}
	for _, r := range rows {
		out[r.RideID] = r.Seats
	}
	return out, nil
}

func (s *RideshareService) withRemaining(ctx context.Context, rides []models.Ride) error {
	ids := make([]string, len(rides))
	for i, r := range rides {
		ids[i] = r.ID
	}
	booked, err := bookedSeats(s.db.WithContext(ctx), ids...)
	if err != nil {
		return err
	}
	for i := range rides {
		rides[i].RemainingSeats = rides[i].AvailableSeats - booked[rides[i].ID]
	}
	return nil
}

func rideViews(rides []models.Ride) []RideView {
	out := make([]RideView, 0, len(rides))
	for _, r := range rides {
		view := RideView{Ride: r}
		if r.Driver != nil {
			profile := r.Driver.Public()
			view.Driver = &profile
		}
		out = append(out, view)
	}
	return out
}

func (s *RideshareService) Create(ctx context.Context, driverID string, in CreateRideInput) (*models.Ride, error) {
	departure := in.DepartureTime.UTC()
	from, to := strings.TrimSpace(in.DepartureLocation), strings.TrimSpace(in.DestinationLocation)
	if from == "" || to == "" {
		return nil, utils.NewAppError(400, utils.CodeRequiredFieldMissing, "Departure and destination are required")
	}
	if !departure.After(s.Now()) {
		return nil, utils.NewValidationError("Departure time must be in the future")
	}
	if in.ArrivalTime != nil && !in.ArrivalTime.After(departure) {
		return nil, utils.NewValidationError("Arrival time must be after departure time")
	}
	if in.AvailableSeats < models.MinRideSeats || in.AvailableSeats > models.MaxRideSeats {
		return nil, utils.NewValidationError(fmt.Sprintf("Seats must be between %d and %d", models.MinRideSeats, models.MaxRideSeats))
	}
	if in.PricePerSeat < 0 {
		return nil, utils.NewValidationError("Price cannot be negative")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = from + " to " + to
	}
	ride := &models.Ride{
		DriverID:            driverID,
		Title:               title,
		Description:         in.Description,
		DepartureLocation:   from,
		DestinationLocation: to,
		DepartureTime:       departure,
		ArrivalTime:         utcPtr(in.ArrivalTime),
		AvailableSeats:      in.AvailableSeats,
		PricePerSeat:        in.PricePerSeat,
		Status:              models.RideActive,
		RecurringType:       in.RecurringType,
		VehicleInfo:         in.VehicleInfo,
		Rules:               in.Rules,
		RemainingSeats:      in.AvailableSeats,
	}
	if err := s.db.WithContext(ctx).Create(ride).Error; err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	if s.points != nil {
		_, err := s.points.Award(ctx, AwardInput{
			UserID:   driverID,
			Points:   types.RIDE_CREATION_POINTS,
			Source:   SourceRideshareCreation,
			Reason:   "Offered a ride",
			Metadata: map[string]interface{}{"ride_id": ride.ID},
		})
		if err != nil {
			s.log.Warn("ride creation award failed", "ride_id", ride.ID, "error", err)
		}
	}
	return ride, nil
}

// List returns upcoming active rides. Remaining seats are recomputed from bookings on each call.
func (s *RideshareService) List(ctx context.Context, q RideQuery) (*RideList, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	day, err := parseDate(q.Date, "date")
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Ride{}).
		Where("status = ? AND departure_time > ?", models.RideActive, s.Now())
	if q.Departure != "" {
		query = query.Where("LOWER(departure_location) LIKE ?", utils.ContainsFold(q.Departure))
	}
	if q.Destination != "" {
		query = query.Where("LOWER(destination_location) LIKE ?", utils.ContainsFold(q.Destination))
	}
	if day != nil {
		query = query.Where("departure_time >= ? AND departure_time < ?", *day, day.AddDate(0, 0, 1))
	}
	if q.MaxPrice != nil {
		query = query.Where("price_per_seat <= ?", *q.MaxPrice)
	}
	if q.MinSeats > 0 {
		booked := s.db.Model(&models.RideBooking{}).
			Select("COALESCE(SUM(seats_booked), 0)").
			Where("ride_bookings.ride_id = rides.id AND ride_bookings.status = ?", models.BookingConfirmed)
		query = query.Where("rides.available_seats - (?) >= ?", booked, q.MinSeats)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count rides: %w", err)
	}
	var rides []models.Ride
	err = query.Preload("Driver").Order("departure_time ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&rides).Error
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if err := s.withRemaining(ctx, rides); err != nil {
		return nil, err
	}
	return &RideList{Rides: rideViews(rides), PageInfo: newPageInfo(page, pageSize, total)}, nil
}

// Get returns the ride with remaining seats. Only the driver sees the booking list.
func (s *RideshareService) Get(ctx context.Context, id, viewerID string) (*RideView, error) {
	var ride models.Ride
	if err := s.db.WithContext(ctx).Preload("Driver").First(&ride, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Ride")
	}
	rides := []models.Ride{ride}
	if err := s.withRemaining(ctx, rides); err != nil {
		return nil, err
	}
	view := rideViews(rides)[0]

	if ride.DriverID == viewerID {
		var bookings []models.RideBooking
		err := s.db.WithContext(ctx).Preload("Passenger").
			Where("ride_id = ? AND status = ?", id, models.BookingConfirmed).
			Order("created_at ASC").
			Find(&bookings).Error
		if err != nil {
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		view.Bookings = make([]BookingView, 0, len(bookings))
		for _, b := range bookings {
			bv := BookingView{RideBooking: b}
			if b.Passenger != nil {
				profile := b.Passenger.Public()
				bv.Passenger = &profile
			}
			view.Bookings = append(view.Bookings, bv)
		}
	}
	return &view, nil
}

func (s *RideshareService) loadOwned(tx *gorm.DB, id, driverID string) (*models.Ride, error) {
	var ride models.Ride
	if err := tx.First(&ride, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Ride")
	}
	if ride.DriverID != driverID {
		return nil, utils.NewForbidden("Only the driver can manage this ride")
	}
	return &ride, nil
}

func (s *RideshareService) Update(ctx context.Context, id, driverID string, in UpdateRideInput) (*models.Ride, error) {
	var ride *models.Ride
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ride, err = s.loadOwned(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, driverID)
		if err != nil {
			return err
		}
		if ride.Status == models.RideCompleted || ride.Status == models.RideCancelled {
			return utils.NewConflict("Completed or cancelled rides cannot be modified")
		}

		updates := map[string]interface{}{}
		departure, arrival := ride.DepartureTime, ride.ArrivalTime
		if in.DepartureTime != nil {
			departure = in.DepartureTime.UTC()
			if !departure.After(s.Now()) {
				return utils.NewValidationError("Departure time must be in the future")
			}
			updates["departure_time"] = departure
		}
		if in.ArrivalTime != nil {
			arrival = utcPtr(in.ArrivalTime)
			updates["arrival_time"] = *arrival
		}
		if arrival != nil && !arrival.After(departure) {
			return utils.NewValidationError("Arrival time must be after departure time")
		}
		if in.Title != nil {
			updates["title"] = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.DepartureLocation != nil {
			if strings.TrimSpace(*in.DepartureLocation) == "" {
				return utils.NewValidationError("Departure location cannot be empty")
			}
			updates["departure_location"] = strings.TrimSpace(*in.DepartureLocation)
		}
		if in.DestinationLocation != nil {
			if strings.TrimSpace(*in.DestinationLocation) == "" {
				return utils.NewValidationError("Destination cannot be empty")
			}
			updates["destination_location"] = strings.TrimSpace(*in.DestinationLocation)
		}
		if in.PricePerSeat != nil {
			if *in.PricePerSeat < 0 {
				return utils.NewValidationError("Price cannot be negative")
			}
			updates["price_per_seat"] = *in.PricePerSeat
		}
		if in.VehicleInfo != nil {
			updates["vehicle_info"] = *in.VehicleInfo
		}
		if in.Rules != nil {
			updates["rules"] = *in.Rules
		}
		if in.AvailableSeats != nil {
			seats := *in.AvailableSeats
			if seats < models.MinRideSeats || seats > models.MaxRideSeats {
				return utils.NewValidationError(fmt.Sprintf("Seats must be between %d and %d", models.MinRideSeats, models.MaxRideSeats))
			}
			booked, err := bookedSeats(tx, id)
			if err != nil {
				return err
			}
			if seats < booked[id] {
				return utils.NewConflict("Seats cannot be reduced below those already booked").
					WithDetails(SeatDetails{Available: booked[id], Requested: seats})
			}
			updates["available_seats"] = seats
			if seats == booked[id] {
				updates["status"] = models.RideFull
			} else {
				updates["status"] = models.RideActive
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(ride).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	fresh, err := s.Get(ctx, id, "")
	if err != nil {
		return nil, err
	}
	s.pusher.SendToRoom(RideRoom(id), "ride_updated", fresh.Ride)
	return &fresh.Ride, nil
}

// Cancel withdraws the ride and cancels every confirmed booking.
func (s *RideshareService) Cancel(ctx context.Context, id, driverID string) error {
	now := s.Now()
	var ride *models.Ride
	var passengers []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ride, err = s.loadOwned(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, driverID)
		if err != nil {
			return err
		}
		if ride.Status == models.RideCompleted || ride.Status == models.RideCancelled {
			return utils.NewConflict("Ride is already " + string(ride.Status))
		}
		if err := tx.Model(&models.RideBooking{}).
			Where("ride_id = ? AND status = ?", id, models.BookingConfirmed).
			Pluck("passenger_id", &passengers).Error; err != nil {
			return fmt.Errorf("list passengers: %w", err)
		}
		if err := tx.Model(&models.RideBooking{}).
			Where("ride_id = ? AND status = ?", id, models.BookingConfirmed).
			Updates(map[string]interface{}{"status": models.BookingCancelled, "cancelled_at": now}).Error; err != nil {
			return fmt.Errorf("cancel bookings: %w", err)
		}
		return tx.Model(ride).Update("status", models.RideCancelled).Error
	})
	if err != nil {
		return err
	}

	for _, p := range passengers {
		notifyBestEffort(ctx, s.log, s.notifier, p, NotificationInput{
			Type:     NotificationRideCancelled,
			Priority: PriorityHigh,
			Data: map[string]interface{}{
				"ride_id":        id,
				"destination":    ride.DestinationLocation,
				"departure_time": ride.DepartureTime.Format(time.RFC3339),
			},
		})
	}
	s.pusher.SendToRoom(RideRoom(id), "ride_cancelled", map[string]interface{}{"ride_id": id})
	return nil
}

// Book claims seats under a row lock on the ride, so concurrent bookings cannot oversell it.
func (s *RideshareService) Book(ctx context.Context, rideID, passengerID string, in BookRideInput) (*models.RideBooking, error) {
	if in.Seats < 1 || in.Seats > models.MaxRideSeats {
		return nil, utils.NewValidationError(fmt.Sprintf("Seats must be between 1 and %d", models.MaxRideSeats))
	}

	var ride models.Ride
	var booking *models.RideBooking
	remaining := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ride, "id = ?", rideID).Error; err != nil {
			return notFoundOr(err, "Ride")
		}
		if ride.DriverID == passengerID {
			return utils.NewValidationError("You cannot book your own ride")
		}
		if ride.Status != models.RideActive {
			return utils.NewConflict("Ride is not available for booking")
		}
		if !ride.DepartureTime.After(s.Now()) {
			return utils.NewValidationError("Ride has already departed")
		}

		var dup int64
		if err := tx.Model(&models.RideBooking{}).
			Where("ride_id = ? AND passenger_id = ? AND status = ?", rideID, passengerID, models.BookingConfirmed).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check booking: %w", err)
		}
		if dup > 0 {
			return utils.NewAlreadyExists("You already have a booking on this ride")
		}

		booked, err := bookedSeats(tx, rideID)
		if err != nil {
			return err
		}
		available := ride.AvailableSeats - booked[rideID]
		if in.Seats > available {
			return utils.NewConflict(fmt.Sprintf("Only %d seat(s) left", available)).
				WithDetails(SeatDetails{Available: available, Requested: in.Seats})
		}

		booking = &models.RideBooking{
			RideID:         rideID,
			PassengerID:    passengerID,
			SeatsBooked:    in.Seats,
			TotalPrice:     ride.PricePerSeat * float64(in.Seats),
			Status:         models.BookingConfirmed,
			PaymentStatus:  models.PaymentPaid,
			PickupLocation: in.PickupLocation,
			Notes:          in.Notes,
		}
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		remaining = available - in.Seats
		if remaining == 0 {
			return tx.Model(&ride).Update("status", models.RideFull).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var passenger models.User
	name := "A passenger"
	if err := s.db.WithContext(ctx).Select("first_name", "last_name").First(&passenger, "id = ?", passengerID).Error; err == nil {
		name = passenger.FullName()
	}
	notifyBestEffort(ctx, s.log, s.notifier, ride.DriverID, NotificationInput{
		Type: NotificationRideBooked,
		Data: map[string]interface{}{
			"ride_id":     rideID,
			"booking_id":  booking.ID,
			"passenger":   name,
			"seats":       in.Seats,
			"destination": ride.DestinationLocation,
		},
	})
	s.pusher.SendToRoom(RideRoom(rideID), "ride_booked", map[string]interface{}{"ride_id": rideID, "remaining_seats": remaining})
	publishBestEffort(ctx, s.log, s.events, SubjectRideBooked, booking)
	return booking, nil
}

// CancelBooking is refused within 2 hours of departure. A full ride reopens.
func (s *RideshareService) CancelBooking(ctx context.Context, bookingID, passengerID string) error {
	var booking models.RideBooking
	if err := s.db.WithContext(ctx).Preload("Ride").First(&booking, "id = ?", bookingID).Error; err != nil {
		return notFoundOr(err, "Booking")
	}
	if booking.PassengerID != passengerID {
		return utils.NewForbidden("Only the passenger can cancel this booking")
	}
	if booking.Status != models.BookingConfirmed {
		return utils.NewConflict("Booking is already " + string(booking.Status))
	}
	ride := booking.Ride
	if ride == nil {
		return utils.NewNotFound("Ride")
	}
	if ride.DepartureTime.Sub(s.Now()) < BookingCancelLimit {
		return utils.NewValidationError("Bookings cannot be cancelled within 2 hours of departure")
	}

	now := s.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RideBooking{}).
			Where("id = ? AND status = ?", bookingID, models.BookingConfirmed).
			Updates(map[string]interface{}{"status": models.BookingCancelled, "cancelled_at": now})
		if res.Error != nil {
			return fmt.Errorf("cancel booking: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflict("Booking is no longer active")
		}
		return tx.Model(&models.Ride{}).
			Where("id = ? AND status = ?", ride.ID, models.RideFull).
			Update("status", models.RideActive).Error
	})
	if err != nil {
		return err
	}

	var passenger models.User
	name := "A passenger"
	if err := s.db.WithContext(ctx).Select("first_name", "last_name").First(&passenger, "id = ?", passengerID).Error; err == nil {
		name = passenger.FullName()
	}
	notifyBestEffort(ctx, s.log, s.notifier, ride.DriverID, NotificationInput{
		Type: NotificationRideBookingCancelled,
		Data: map[string]interface{}{
			"ride_id":     ride.ID,
			"booking_id":  bookingID,
			"passenger":   name,
			"seats":       booking.SeatsBooked,
			"destination": ride.DestinationLocation,
		},
	})
	s.pusher.SendToRoom(RideRoom(ride.ID), "booking_cancelled", map[string]interface{}{"ride_id": ride.ID, "seats": booking.SeatsBooked})
	return nil
}

// Complete closes the ride and its confirmed bookings, then rewards the driver.
func (s *RideshareService) Complete(ctx context.Context, id, driverID string) (*models.Ride, error) {
	var ride *models.Ride
	var completed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ride, err = s.loadOwned(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, driverID)
		if err != nil {
			return err
		}
		if ride.Status != models.RideActive && ride.Status != models.RideFull {
			return utils.NewConflict("Only active or full rides can be completed")
		}
		res := tx.Model(&models.RideBooking{}).
			Where("ride_id = ? AND status = ?", id, models.BookingConfirmed).
			Update("status", models.BookingCompleted)
		if res.Error != nil {
			return fmt.Errorf("complete bookings: %w", res.Error)
		}
		completed = res.RowsAffected
		return tx.Model(ride).Update("status", models.RideCompleted).Error
	})
	if err != nil {
		return nil, err
	}
	ride.Status = models.RideCompleted

	if s.points != nil {
		_, err := s.points.Award(ctx, AwardInput{
			UserID:   driverID,
			Rule:     types.RuleRideshareCompletion,
			Metadata: map[string]interface{}{"ride_id": id, "bookings": completed},
		})
		if err != nil {
			s.log.Warn("ride completion award failed", "ride_id", id, "error", err)
		}
	}
	s.pusher.SendToRoom(RideRoom(id), "ride_completed", map[string]interface{}{"ride_id": id})
	publishBestEffort(ctx, s.log, s.events, SubjectRideCompleted, ride)
	return ride, nil
}

func (s *RideshareService) MyRides(ctx context.Context, driverID, status string, page, pageSize int) (*RideList, error) {
	page, pageSize = normalizePage(page, pageSize, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.Ride{}).Where("driver_id = ?", driverID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count rides: %w", err)
	}
	var rides []models.Ride
	if err := query.Order("departure_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rides).Error; err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if err := s.withRemaining(ctx, rides); err != nil {
		return nil, err
	}
	return &RideList{Rides: rideViews(rides), PageInfo: newPageInfo(page, pageSize, total)}, nil
}

func (s *RideshareService) MyBookings(ctx context.Context, passengerID, status string, page, pageSize int) (*BookingList, error) {
	page, pageSize = normalizePage(page, pageSize, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.RideBooking{}).Where("passenger_id = ?", passengerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	out := &BookingList{Bookings: []models.RideBooking{}}
	if err := query.Preload("Ride").Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&out.Bookings).Error; err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out.PageInfo = newPageInfo(page, pageSize, total)
	return out, nil
}
