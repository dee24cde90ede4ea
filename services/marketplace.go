package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type CreateItemInput struct {
	Title       string               `json:"title" binding:"required,min=3,max=200"`
	Description string               `json:"description" binding:"max=5000"`
	Category    string               `json:"category" binding:"required,max=50"`
	Price       float64              `json:"price" binding:"min=0"`
	Condition   models.ItemCondition `json:"condition" binding:"required"`
	Location    string               `json:"location" binding:"max=255"`
	Images      []string             `json:"images" binding:"max=10,dive,url"`
	Tags        []string             `json:"tags" binding:"max=10,dive,max=30"`
}

type UpdateItemInput struct {
	Title       *string               `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string               `json:"description" binding:"omitempty,max=5000"`
	Category    *string               `json:"category" binding:"omitempty,max=50"`
	Price       *float64              `json:"price" binding:"omitempty,min=0"`
	Condition   *models.ItemCondition `json:"condition"`
	Location    *string               `json:"location" binding:"omitempty,max=255"`
	Images      []string              `json:"images" binding:"omitempty,max=10,dive,url"`
	Tags        []string              `json:"tags" binding:"omitempty,max=10,dive,max=30"`
	Status      *models.ItemStatus    `json:"status" binding:"omitempty,oneof=active reserved sold"`
}

type ItemQuery struct {
	Category  string   `form:"category"`
	Condition string   `form:"condition"`
	MinPrice  *float64 `form:"min_price" binding:"omitempty,min=0"`
	MaxPrice  *float64 `form:"max_price" binding:"omitempty,min=0"`
	SellerID  string   `form:"seller_id"`
	SortBy    string   `form:"sort_by" binding:"omitempty,oneof=created_at price views_count favorites_count"`
	SortOrder string   `form:"sort_order" binding:"omitempty,oneof=asc desc"`
	Page      int      `form:"page,default=1" binding:"min=1"`
	PageSize  int      `form:"pageSize,default=20" binding:"min=1,max=100"`
}

type ItemSearchQuery struct {
	Q        string `form:"q" binding:"required,min=2"`
	Category string `form:"category"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=20" binding:"min=1,max=100"`
}

type ItemView struct {
	models.MarketplaceItem
	Seller *models.PublicProfile `json:"seller,omitempty"`
}

type ItemList struct {
	Items []ItemView `json:"items"`
	PageInfo
}

type MarketplaceService struct {
	db     *gorm.DB
	points *PointsService
	pusher Pusher
	log    *slog.Logger
}

func NewMarketplaceService(db *gorm.DB, points *PointsService, pusher Pusher, log *slog.Logger) *MarketplaceService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	return &MarketplaceService{db: db, points: points, pusher: pusher, log: loggerOrDefault(log)}
}

func (s *MarketplaceService) broadcast(action string, item *models.MarketplaceItem) {
	s.pusher.Broadcast("marketplace_update", map[string]interface{}{"action": action, "item": item})
}

func (s *MarketplaceService) Create(ctx context.Context, sellerID string, in CreateItemInput) (*models.MarketplaceItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Category) == "" {
		return nil, utils.NewAppError(400, utils.CodeRequiredFieldMissing, "Title and category are required")
	}
	if in.Price < 0 {
		return nil, utils.NewValidationError("Price cannot be negative")
	}
	if !in.Condition.Valid() {
		return nil, utils.NewValidationError("Invalid item condition")
	}

	item := &models.MarketplaceItem{
		SellerID:    sellerID,
		Title:       title,
		Slug:        slug.Make(title) + "-" + uuid.NewString()[:8],
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Condition:   in.Condition,
		Status:      models.ItemActive,
		Location:    in.Location,
		Images:      models.StringList(in.Images),
		Tags:        models.StringList(in.Tags),
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.broadcast("created", item)
	return item, nil
}

// markFavorited sets IsFavorited on the items the viewer has favorited.
func (s *MarketplaceService) markFavorited(ctx context.Context, items []models.MarketplaceItem, viewerID string) error {
	if viewerID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	var favored []string
	err := s.db.WithContext(ctx).Model(&models.ItemFavorite{}).
		Where("user_id = ? AND item_id IN ?", viewerID, ids).
		Pluck("item_id", &favored).Error
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	set := make(map[string]bool, len(favored))
	for _, id := range favored {
		set[id] = true
	}
	for i := range items {
		items[i].IsFavorited = set[items[i].ID]
	}
	return nil
}

func itemViews(items []models.MarketplaceItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		view := ItemView{MarketplaceItem: it}
		if it.Seller != nil {
			profile := it.Seller.Public()
			view.Seller = &profile
		}
		out = append(out, view)
	}
	return out
}

func (s *MarketplaceService) page(ctx context.Context, query *gorm.DB, viewerID string, page, pageSize int, order string) (*ItemList, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	var items []models.MarketplaceItem
	err := query.Preload("Seller").Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if err := s.markFavorited(ctx, items, viewerID); err != nil {
		return nil, err
	}
	return &ItemList{Items: itemViews(items), PageInfo: newPageInfo(page, pageSize, total)}, nil
}

func (s *MarketplaceService) List(ctx context.Context, viewerID string, q ItemQuery) (*ItemList, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, utils.NewValidationError("min_price cannot exceed max_price")
	}
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.MarketplaceItem{}).Where("status = ?", models.ItemActive)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Condition != "" {
		query = query.Where("condition = ?", q.Condition)
	}
	if q.MinPrice != nil {
		query = query.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("price <= ?", *q.MaxPrice)
	}
	if q.SellerID != "" {
		query = query.Where("seller_id = ?", q.SellerID)
	}
	order := orderClause(q.SortBy, q.SortOrder, "created_at", "created_at", "price", "views_count", "favorites_count")
	return s.page(ctx, query, viewerID, page, pageSize, order)
}

func (s *MarketplaceService) Search(ctx context.Context, viewerID string, q ItemSearchQuery) (*ItemList, error) {
	term := strings.TrimSpace(q.Q)
	if len(term) < 2 {
		return nil, utils.NewValidationError("Search query must be at least 2 characters")
	}
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	pattern := utils.ContainsFold(term)
	query := s.db.WithContext(ctx).Model(&models.MarketplaceItem{}).
		Where("status = ?", models.ItemActive).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	return s.page(ctx, query, viewerID, page, pageSize, "created_at DESC")
}

// Get counts a view unless the viewer is the seller.
func (s *MarketplaceService) Get(ctx context.Context, id, viewerID string) (*ItemView, error) {
	var item models.MarketplaceItem
	if err := s.db.WithContext(ctx).Preload("Seller").First(&item, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Item")
	}
	if item.Status == models.ItemRemoved && item.SellerID != viewerID {
		return nil, utils.NewNotFound("Item")
	}
	if viewerID != item.SellerID {
		if err := s.db.WithContext(ctx).Model(&item).UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error; err != nil {
			s.log.Warn("view count update failed", "item_id", id, "error", err)
		} else {
			item.ViewsCount++
		}
	}
	items := []models.MarketplaceItem{item}
	if err := s.markFavorited(ctx, items, viewerID); err != nil {
		return nil, err
	}
	return &itemViews(items)[0], nil
}

func (s *MarketplaceService) loadOwned(ctx context.Context, id, sellerID string) (*models.MarketplaceItem, error) {
	var item models.MarketplaceItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Item")
	}
	if item.SellerID != sellerID {
		return nil, utils.NewForbidden("Only the seller can manage this item")
	}
	return &item, nil
}

func (s *MarketplaceService) Update(ctx context.Context, id, sellerID string, in UpdateItemInput) (*models.MarketplaceItem, error) {
	item, err := s.loadOwned(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	switch item.Status {
	case models.ItemSold:
		return nil, utils.NewConflict("Sold items cannot be modified")
	case models.ItemRemoved:
		return nil, utils.NewNotFound("Item")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Category != nil {
		updates["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, utils.NewValidationError("Price cannot be negative")
		}
		updates["price"] = *in.Price
	}
	if in.Condition != nil {
		if !in.Condition.Valid() {
			return nil, utils.NewValidationError("Invalid item condition")
		}
		updates["condition"] = *in.Condition
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Images != nil {
		updates["images"] = models.StringList(in.Images)
	}
	if in.Tags != nil {
		updates["tags"] = models.StringList(in.Tags)
	}
	sold := false
	if in.Status != nil {
		switch *in.Status {
		case models.ItemActive, models.ItemReserved, models.ItemSold:
		default:
			return nil, utils.NewValidationError("Status must be active, reserved or sold")
		}
		updates["status"] = *in.Status
		sold = *in.Status == models.ItemSold
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	}

	var fresh models.MarketplaceItem
	if err := s.db.WithContext(ctx).First(&fresh, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Item")
	}
	if sold && s.points != nil {
		_, err := s.points.Award(ctx, AwardInput{
			UserID:   sellerID,
			Rule:     types.RuleMarketplaceTransaction,
			Metadata: map[string]interface{}{"item_id": id},
		})
		if err != nil {
			s.log.Warn("marketplace sale award failed", "item_id", id, "error", err)
		}
	}
	s.broadcast("updated", &fresh)
	return &fresh, nil
}

// Delete soft-removes the item.
func (s *MarketplaceService) Delete(ctx context.Context, id, sellerID string) error {
	item, err := s.loadOwned(ctx, id, sellerID)
	if err != nil {
		return err
	}
	if item.Status == models.ItemRemoved {
		return utils.NewNotFound("Item")
	}
	if err := s.db.WithContext(ctx).Model(item).Update("status", models.ItemRemoved).Error; err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	s.broadcast("deleted", item)
	return nil
}

func (s *MarketplaceService) Favorite(ctx context.Context, id, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.MarketplaceItem
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "Item")
		}
		if item.SellerID == userID {
			return utils.NewValidationError("You cannot favorite your own item")
		}
		if item.Status != models.ItemActive {
			return utils.NewConflict("Item is not available")
		}
		var existing int64
		if err := tx.Model(&models.ItemFavorite{}).Where("item_id = ? AND user_id = ?", id, userID).Count(&existing).Error; err != nil {
			return fmt.Errorf("check favorite: %w", err)
		}
		if existing > 0 {
			return utils.NewAlreadyExists("Item is already in your favorites")
		}
		if err := tx.Create(&models.ItemFavorite{ItemID: id, UserID: userID}).Error; err != nil {
			return fmt.Errorf("create favorite: %w", err)
		}
		return tx.Model(&item).UpdateColumn("favorites_count", gorm.Expr("favorites_count + 1")).Error
	})
}

func (s *MarketplaceService) Unfavorite(ctx context.Context, id, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("item_id = ? AND user_id = ?", id, userID).Delete(&models.ItemFavorite{})
		if res.Error != nil {
			return fmt.Errorf("delete favorite: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewNotFound("Favorite")
		}
		return tx.Model(&models.MarketplaceItem{}).
			Where("id = ? AND favorites_count > 0", id).
			UpdateColumn("favorites_count", gorm.Expr("favorites_count - 1")).Error
	})
}

func (s *MarketplaceService) MyItems(ctx context.Context, sellerID, status string, page, pageSize int) (*ItemList, error) {
	page, pageSize = normalizePage(page, pageSize, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.MarketplaceItem{}).Where("seller_id = ?", sellerID)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", models.ItemRemoved)
	}
	return s.page(ctx, query, sellerID, page, pageSize, "created_at DESC")
}

func (s *MarketplaceService) MyFavorites(ctx context.Context, userID string, page, pageSize int) (*ItemList, error) {
	page, pageSize = normalizePage(page, pageSize, 20, 100)
	sub := s.db.Model(&models.ItemFavorite{}).Select("item_id").Where("user_id = ?", userID)
	query := s.db.WithContext(ctx).Model(&models.MarketplaceItem{}).
		Where("id IN (?) AND status <> ?", sub, models.ItemRemoved)
	return s.page(ctx, query, userID, page, pageSize, "created_at DESC")
}
