package models

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&PointTransaction{},
		&Activity{},
		&ActivityParticipation{},
		&Ride{},
		&RideBooking{},
		&MarketplaceItem{},
		&ItemFavorite{},
		&Notification{},
	}
}
