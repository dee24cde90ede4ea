package models

import (
	"time"
)

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideFull      RideStatus = "full"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

const (
	MinRideSeats = 1
	MaxRideSeats = 8
)

type Ride struct {
	Base
	DriverID            string     `gorm:"size:36;not null;index" json:"driver_id"`
	Driver              *User      `gorm:"foreignKey:DriverID" json:"-"`
	Title               string     `json:"title"`
	Description         string     `gorm:"type:text" json:"description"`
	DepartureLocation   string     `gorm:"not null" json:"departure_location"`
	DestinationLocation string     `gorm:"not null" json:"destination_location"`
	DepartureTime       time.Time  `gorm:"not null;index" json:"departure_time"`
	ArrivalTime         *time.Time `json:"arrival_time,omitempty"`
	AvailableSeats      int        `gorm:"not null" json:"available_seats"`
	PricePerSeat        float64    `gorm:"not null;default:0" json:"price_per_seat"`
	Status              RideStatus `gorm:"size:20;not null;index" json:"status"`
	RecurringType       string     `gorm:"size:20" json:"recurring_type,omitempty"`
	VehicleInfo         string     `json:"vehicle_info,omitempty"`
	Rules               string     `json:"rules,omitempty"`
	RemainingSeats      int        `gorm:"-" json:"remaining_seats"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type RideBooking struct {
	Base
	RideID         string        `gorm:"size:36;not null;index" json:"ride_id"`
	PassengerID    string        `gorm:"size:36;not null;index" json:"passenger_id"`
	Ride           *Ride         `gorm:"foreignKey:RideID" json:"ride,omitempty"`
	Passenger      *User         `gorm:"foreignKey:PassengerID" json:"-"`
	SeatsBooked    int           `gorm:"not null" json:"seats_booked"`
	TotalPrice     float64       `gorm:"not null" json:"total_price"`
	Status         BookingStatus `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus  PaymentStatus `gorm:"size:20;not null" json:"payment_status"`
	PickupLocation string        `json:"pickup_location,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`
}
