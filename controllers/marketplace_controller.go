package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type MarketplaceController struct {
	Market *services.MarketplaceService
}

func NewMarketplaceController(market *services.MarketplaceService) *MarketplaceController {
	return &MarketplaceController{Market: market}
}

func (mc *MarketplaceController) CreateItem(c *gin.Context) {
	var input services.CreateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	item, err := mc.Market.Create(c.Request.Context(), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, item, "Item listed successfully")
}

func (mc *MarketplaceController) GetItems(c *gin.Context) {
	var query services.ItemQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := mc.Market.List(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (mc *MarketplaceController) SearchItems(c *gin.Context) {
	var query services.ItemSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := mc.Market.Search(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (mc *MarketplaceController) GetItem(c *gin.Context) {
	view, err := mc.Market.Get(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

func (mc *MarketplaceController) UpdateItem(c *gin.Context) {
	var input services.UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	item, err := mc.Market.Update(c.Request.Context(), c.Param("id"), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, item, "Item updated successfully")
}

func (mc *MarketplaceController) DeleteItem(c *gin.Context) {
	if err := mc.Market.Delete(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Item removed successfully")
}

func (mc *MarketplaceController) FavoriteItem(c *gin.Context) {
	if err := mc.Market.Favorite(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, nil, "Item added to favorites")
}

func (mc *MarketplaceController) UnfavoriteItem(c *gin.Context) {
	if err := mc.Market.Unfavorite(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Item removed from favorites")
}

func (mc *MarketplaceController) GetMyItems(c *gin.Context) {
	var query ownListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := mc.Market.MyItems(c.Request.Context(), utils.GetUserID(c), query.Status, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (mc *MarketplaceController) GetMyFavorites(c *gin.Context) {
	var query ownListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := mc.Market.MyFavorites(c.Request.Context(), utils.GetUserID(c), query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}
