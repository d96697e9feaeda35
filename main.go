// main.go
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/danursasmita/bengkel-ops/config"
	"github.com/danursasmita/bengkel-ops/endpoint"
	"github.com/danursasmita/bengkel-ops/mail"
	"github.com/danursasmita/bengkel-ops/middleware"
	"github.com/danursasmita/bengkel-ops/model"
	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectMySQL()
	if err != nil {
		log.Fatalf("Error connecting to MySQL: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Role{}, &model.Session{},
		&model.TrustedIP{}, &model.VerificationCode{},
		&model.EmailTemplate{}, &model.SecurityLog{},
	); err != nil {
		log.Fatalf("Auto migration failed: %v", err)
	}
	if err := model.SeedRoles(db); err != nil {
		log.Fatalf("Seeding roles failed: %v", err)
	}

	// Security events are persisted from here on
	util.SetSecurityLoggerDB(db)

	// Redis backs rate limiting and the ban pre-check cache; optional
	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, continuing without it: %v", err)
	}

	// Geolocation: local mmdb when configured, HTTP service as fallback
	if err := util.InitGeoIP(cfg.GeoIPDBPath); err != nil {
		log.Printf("GeoIP database not loaded: %v", err)
	}
	defer util.CloseGeoIP()
	util.SetGeoAPIBaseURL(cfg.GeoAPIBaseURL)

	// Verification mailer; leaving it unset makes challenge issuance fail
	// with a server error rather than silently skipping the email
	util.InitTemplateCacheFromEnv()
	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: int(cfg.SMTPPort),
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}, db)
	if err != nil {
		log.Printf("Verification mailer not configured: %v", err)
	} else {
		endpoint.SetMailer(mailer)
	}

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	// Create a Gin router with default middleware
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	// Basic HTTP handler for root path
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	loginLimiter := middleware.RateLimiter(middleware.RateLimitConfig{Limit: 5, Window: 15 * time.Minute})
	banCheckLimiter := middleware.RateLimiter(middleware.RateLimitConfig{Limit: 30, Window: time.Minute})

	router.POST("/signup", endpoint.Signup)
	router.POST("/login", loginLimiter, endpoint.Login)
	router.DELETE("/logout", endpoint.Logout)
	router.GET("/token/validate", endpoint.ValidateToken)
	router.POST("/ip/ban-check", banCheckLimiter, endpoint.CheckIPBan)

	// Operator endpoints
	admin := router.Group("/user")
	admin.Use(middleware.ValidateAPIToken())
	{
		admin.GET("/:id/ip-address", endpoint.ListUserIPAddresses)
		admin.PATCH("/:id/ip-address", endpoint.UpdateUserIPAddress)
	}

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
