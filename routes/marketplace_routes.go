package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupMarketplaceRoutes(public, protected *gin.RouterGroup, marketplaceController *controllers.MarketplaceController) {
	browse := public.Group("/marketplace/items")
	{
		browse.GET("", marketplaceController.GetItems)
		browse.GET("/search", marketplaceController.SearchItems)
		browse.GET("/:id", marketplaceController.GetItem)
	}

	items := protected.Group("/marketplace/items")
	{
		items.POST("", marketplaceController.CreateItem)
		items.GET("/my", marketplaceController.GetMyItems)
		items.PUT("/:id", marketplaceController.UpdateItem)
		items.DELETE("/:id", marketplaceController.DeleteItem)
		items.POST("/:id/favorite", marketplaceController.FavoriteItem)
		items.DELETE("/:id/favorite", marketplaceController.UnfavoriteItem)
	}

	protected.GET("/marketplace/favorites", marketplaceController.GetMyFavorites)
}
