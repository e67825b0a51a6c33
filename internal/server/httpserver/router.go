package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/server/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const basePath = "/api/v1"

func newRouter(h *handler, corsOrigin string, reg *metrics.Registry) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(h.logger),
		observe(reg),
		cors.New(cors.Config{
			AllowOrigins:     []string{corsOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", common.AuthorizationHeaderName, common.RequestIDHeaderName},
			ExposeHeaders:    []string{"Content-Length", common.RequestIDHeaderName},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		errorHandler(h.logger, h.env),
	)

	r.GET("/healthz", h.healthz)
	if reg != nil {
		r.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	v1 := r.Group(basePath)

	users := v1.Group("/users")
	{
		users.POST("/register", h.register)
		users.POST("/login", h.login)
		users.POST("/refresh-token", h.refreshToken)

		secured := users.Group("", h.authenticate)
		secured.POST("/logout", h.logout)
		secured.POST("/change-Password", h.changePassword)
		secured.GET("/current-user", h.currentUser)
		secured.PATCH("/update-profile", h.updateProfile)
		secured.PATCH("/avatar", h.updateAvatar)
	}

	todos := v1.Group("/todos", h.authenticate)
	{
		todos.POST("", h.createTodo)
		todos.GET("", h.listTodos)
		todos.GET("/:todoId", h.getTodo)
		todos.PATCH("/:todoId", h.updateTodo)
		todos.DELETE("/:todoId", h.deleteTodo)
	}

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(common.NewError(common.ErrorNotFound, "Route not found"))
	})

	return r
}
