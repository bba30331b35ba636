package controllers

import (
	"net/http"
	"time"

	"github.com/fishm995/greenhouse-project/automation"
	"github.com/fishm995/greenhouse-project/middlewares"
	"github.com/fishm995/greenhouse-project/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options wires the router to the rest of the server.
type Options struct {
	SecretKey   []byte
	TokenTTL    time.Duration
	Location    *time.Location
	CORSOrigins []string
	Switcher    *automation.Switcher
	Hub         *Hub
	Metrics     http.Handler // served on /metrics when set
	HLSDir      string       // served on /hls when set
}

var (
	secretKey []byte
	tokenTTL  = time.Hour
	location  = time.UTC
	switcher  *automation.Switcher
	hub       *Hub
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options) *gin.Engine {
	secretKey = opts.SecretKey
	if opts.TokenTTL > 0 {
		tokenTTL = opts.TokenTTL
	}
	if opts.Location != nil {
		location = opts.Location
	}
	switcher = opts.Switcher
	hub = opts.Hub

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "x-access-token"},
			AllowCredentials: true,
		}))
	}

	// Public routes
	r.POST("/login", Login)
	r.GET("/public/status", PublicStatus)
	r.GET("/healthz", Healthz)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.HLSDir != "" {
		r.Static("/hls", opts.HLSDir)
	}

	// Protected routes using auth middleware
	auth := middlewares.AuthMiddleware(secretKey)
	r.GET("/ws", auth, HandleWebSocket)

	api := r.Group("/api")
	api.Use(auth)
	api.GET("/profile", GetProfile)
	api.GET("/sensors/list", ListSensors)
	api.GET("/sensors", CurrentReadings)
	api.GET("/sensor/logs", GetSensorLogs)
	api.GET("/sensor/logs/csv", DownloadSensorLogsCSV)
	api.GET("/controls", GetControls)
	api.POST("/control/:name/toggle", ToggleControl)
	api.GET("/control/:name/settings", GetControlSettings)
	api.POST("/control/:name/settings",
		middlewares.RequireRole(models.RoleAdmin, models.RoleSenior), UpdateControlSettings)

	users := api.Group("/users", middlewares.RequireRole(models.RoleAdmin))
	users.GET("", ListUsers)
	users.POST("", CreateUser)
	users.DELETE("/:username", DeleteUser)

	admin := api.Group("/admin", middlewares.RequireRole(models.RoleAdmin))
	admin.GET("/devices", ListDevices)
	admin.POST("/add_device", AddDevice)
	admin.POST("/update_device", UpdateDevice)
	admin.DELETE("/delete_device", DeleteDevice)
	admin.GET("/sensors", ListSensors)
	admin.POST("/add_sensor", AddSensor)
	admin.POST("/update_sensor", UpdateSensor)
	admin.DELETE("/delete_sensor", DeleteSensor)
	admin.GET("/controllers", ListControllers)
	admin.POST("/add_controller", AddController)
	admin.POST("/update_controller", UpdateController)
	admin.DELETE("/delete_controller", DeleteController)
	admin.GET("/automation", GetAutomation)
	admin.POST("/automation", SetAutomation)

	return r
}
