package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"venue-backend/controllers"
	"venue-backend/middleware"
)

// Controllers bundles every handler set the router mounts.
type Controllers struct {
	Rooms    *controllers.RoomController
	Catalog  *controllers.CatalogController
	Orders   *controllers.OrderController
	Sessions *controllers.SessionController
	Auth     *controllers.AuthController
}

// SetupRouter builds the gin engine with CORS, request ids and zap logging.
func SetupRouter(ctl Controllers, origins []string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/auth/login", ctl.Auth.Login)

		rooms := api.Group("/rooms")
		{
			rooms.GET("", ctl.Rooms.GetRooms)
			rooms.POST("", ctl.Rooms.CreateRoom)

			// static segment, registered before /:id
			rooms.GET("/available", ctl.Rooms.GetAvailableRooms)

			rooms.PATCH("/:id/status", ctl.Rooms.UpdateRoomStatus)
			rooms.GET("/:id/availability", ctl.Rooms.CheckAvailability)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", ctl.Catalog.GetCategories)
			categories.POST("", ctl.Catalog.CreateCategory)
			categories.GET("/:id/products", ctl.Catalog.GetCategoryProducts)
		}

		products := api.Group("/products")
		{
			products.POST("", ctl.Catalog.CreateProduct)
			products.PATCH("/:id", ctl.Catalog.UpdateProduct)
		}

		employees := api.Group("/employees")
		{
			employees.GET("", ctl.Catalog.GetEmployees)
			employees.POST("", ctl.Catalog.CreateEmployee)
			employees.PATCH("/:id/active", ctl.Catalog.SetEmployeeActive)
		}

		orders := api.Group("/orders")
		{
			orders.GET("", ctl.Orders.ListOrders)
			orders.POST("", ctl.Orders.CreateOrder)
			orders.GET("/:id", ctl.Orders.GetOrder)
			orders.GET("/:id/history", ctl.Orders.GetOrderHistory)
			orders.POST("/:id/items", ctl.Orders.AddItem)
			orders.POST("/:id/status", ctl.Orders.ChangeStatus)
			orders.POST("/:id/cancel", ctl.Orders.CancelOrder)
			orders.POST("/:id/recalculate", ctl.Orders.RecalculateTotal)
			orders.POST("/:id/payment", ctl.Orders.ProcessPayment)
			orders.GET("/:id/payment", ctl.Orders.GetPayment)
		}

		sessions := api.Group("/sessions/:actor")
		{
			sessions.GET("", ctl.Sessions.Get)
			sessions.DELETE("", ctl.Sessions.Cancel)
			sessions.POST("/start", ctl.Sessions.Start)
			sessions.POST("/date", ctl.Sessions.StepDate)
			sessions.POST("/slot", ctl.Sessions.StepSlot)
			sessions.POST("/room", ctl.Sessions.StepRoom)
			sessions.POST("/client", ctl.Sessions.StepClient)
			sessions.POST("/guests", ctl.Sessions.StepGuestCount)
			sessions.POST("/category", ctl.Sessions.SelectCategory)
			sessions.POST("/product", ctl.Sessions.SelectProduct)
			sessions.POST("/lines", ctl.Sessions.AddLine)
			sessions.DELETE("/lines/last", ctl.Sessions.RemoveLastLine)
			sessions.POST("/commit", ctl.Sessions.Commit)
		}
	}

	return r
}
