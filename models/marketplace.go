package models

type ItemCondition string

const (
	ConditionNew     ItemCondition = "new"
	ConditionLikeNew ItemCondition = "like_new"
	ConditionGood    ItemCondition = "good"
	ConditionFair    ItemCondition = "fair"
	ConditionPoor    ItemCondition = "poor"
)

var ItemConditions = []ItemCondition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor}

func (c ItemCondition) Valid() bool {
	for _, v := range ItemConditions {
		if v == c {
			return true
		}
	}
	return false
}

type ItemStatus string

const (
	ItemActive   ItemStatus = "active"
	ItemSold     ItemStatus = "sold"
	ItemReserved ItemStatus = "reserved"
	ItemRemoved  ItemStatus = "removed"
)

type MarketplaceItem struct {
	Base
	SellerID       string        `gorm:"size:36;not null;index" json:"seller_id"`
	Seller         *User         `gorm:"foreignKey:SellerID" json:"-"`
	Title          string        `gorm:"not null" json:"title"`
	Slug           string        `gorm:"index" json:"slug"`
	Description    string        `gorm:"type:text" json:"description"`
	Category       string        `gorm:"size:50;not null;index" json:"category"`
	Price          float64       `gorm:"not null;default:0" json:"price"`
	Condition      ItemCondition `gorm:"size:20;not null" json:"condition"`
	Status         ItemStatus    `gorm:"size:20;not null;index" json:"status"`
	Location       string        `json:"location"`
	Images         StringList    `json:"images"`
	Tags           StringList    `json:"tags"`
	ViewsCount     int           `gorm:"not null;default:0" json:"views_count"`
	FavoritesCount int           `gorm:"not null;default:0" json:"favorites_count"`
	IsFavorited    bool          `gorm:"-" json:"is_favorited"`
}

type ItemFavorite struct {
	Base
	ItemID string           `gorm:"size:36;not null;uniqueIndex:idx_favorite_item_user" json:"item_id"`
	UserID string           `gorm:"size:36;not null;uniqueIndex:idx_favorite_item_user;index" json:"user_id"`
	Item   *MarketplaceItem `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}
