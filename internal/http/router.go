package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/x8080x2/CLS0-sub000/internal/config"
)

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
}

// Per-IP global limit plus a stricter one on provisioning, which
// creates real hosting accounts on every hit.
var (
	apiRateLimiter       = NewRateLimiter(30, time.Minute)
	provisionRateLimiter = NewRateLimiter(5, time.Hour)
)

func NewServer(cfg *config.Config, handler *Handler) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "domain-provisioner",
		})
	})

	// Static dashboard
	s.router.Static("/dashboard", "./web")
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(302, "/dashboard")
	})

	// Provisioning API
	api := s.router.Group("/api")
	api.Use(RateLimitMiddleware(apiRateLimiter))
	{
		api.POST("/provision", RateLimitMiddleware(provisionRateLimiter), s.handler.Provision)
		api.POST("/upload-script", s.handler.UploadScript)
		api.GET("/provisions/:id", JWTAuthMiddleware(s.cfg.JWT.SecretKey), s.handler.GetProvision)
	}

	// Admin API
	admin := s.router.Group("/api/admin")
	admin.Use(AdminAuthMiddleware(s.cfg.AdminAPIKey))
	{
		admin.GET("/provisions", s.handler.ListProvisions)
		admin.GET("/provisions/:id/logs", s.handler.GetProvisionLogs)
		admin.GET("/users", s.handler.ListUsers)
		admin.GET("/deposits", s.handler.ListPendingDeposits)
		admin.POST("/deposits/:id/approve", s.handler.DecideDeposit(true))
		admin.POST("/deposits/:id/reject", s.handler.DecideDeposit(false))
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
