package server

import (
	"strings"
	"time"

	"backend-prolink/internal/apperr"
	"backend-prolink/internal/auth"
	"backend-prolink/internal/config"
	"backend-prolink/internal/connection"
	"backend-prolink/internal/fanout"
	"backend-prolink/internal/logging"
	"backend-prolink/internal/media"
	"backend-prolink/internal/metrics"
	"backend-prolink/internal/notification"
	"backend-prolink/internal/post"
	"backend-prolink/internal/presence"
	"backend-prolink/internal/store"
	"backend-prolink/internal/supervisor"
	"backend-prolink/internal/user"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	Store    store.Store
	Redis    *redis.Client
	Presence *presence.Directory
	Bridge   *presence.RedisBridge
	Relay    *fanout.Relay
}

// NewServer wires services and routes. A nil redisClient runs presence on
// this node only. The background services are started by Supervise.
func NewServer(cfg config.Config, st store.Store, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "prolink",
		ErrorHandler: apperr.FiberHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		BodyLimit:    media.MaxUploadSize + 1<<20,
		ReadTimeout:  30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger)
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigin,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Refresh-Token",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/realtime/ws")
		},
	}))

	dir := presence.NewDirectory()
	s := &Server{
		App:      app,
		Cfg:      cfg,
		Store:    st,
		Redis:    redisClient,
		Presence: dir,
		Relay: fanout.NewRelay(st, dir, fanout.Config{
			Interval: cfg.OutboxInterval,
			Batch:    cfg.OutboxBatch,
		}),
	}
	if redisClient != nil {
		nodeID := cfg.NodeID
		if nodeID == "" {
			nodeID = uuid.NewString()
		}
		s.Bridge = presence.NewRedisBridge(redisClient, nodeID, dir)
	}

	registerRoutes(s)
	return s
}

// Supervise adds the background services to tree.
func (s *Server) Supervise(tree *supervisor.Tree) {
	tree.AddRealtime(s.Presence)
	if s.Bridge != nil {
		tree.AddRealtime(s.Bridge)
	}
	tree.AddDelivery(s.Relay)
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.App.Static("/media", s.Cfg.MediaDir, fiber.Static{MaxAge: 86400})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	authSvc := auth.NewService(s.Cfg.JWTSecret, s.Store)
	mediaSvc := media.NewService(s.Store, s.Cfg.MediaDir, s.Cfg.MediaBaseURL)
	userSvc := user.NewService(s.Store, mediaSvc)
	postSvc := post.NewService(s.Store, mediaSvc, s.Relay)
	connSvc := connection.NewService(s.Store, s.Relay)
	notifSvc := notification.NewService(s.Store)

	for _, prefix := range []string{"/api/v1", "/api"} {
		api := s.App.Group(prefix)
		auth.RegisterRoutes(api.Group("/auth"), authSvc, s.Cfg.CookieSecure)
		user.RegisterRoutes(api.Group("/user"), userSvc, jwtMiddleware)
		post.RegisterRoutes(api.Group("/post"), postSvc, jwtMiddleware)
		connection.RegisterRoutes(api.Group("/connection"), connSvc, jwtMiddleware)
		notification.RegisterRoutes(api.Group("/notification"), notifSvc, jwtMiddleware)
		media.RegisterRoutes(api.Group("/media"), mediaSvc, jwtMiddleware)
		presence.RegisterRoutes(api.Group("/realtime"), s.Presence, jwtMiddleware)
	}
	presence.RegisterRoutes(s.App.Group("/realtime"), s.Presence, jwtMiddleware)
}

// requestLogger carries the request id into the user context, logs the
// request and records its latency.
func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	id, _ := c.Locals("requestid").(string)
	if id == "" {
		id = logging.GenerateRequestID()
	}
	c.SetUserContext(logging.ContextWithRequestID(c.UserContext(), id))

	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	elapsed := time.Since(start)
	route := c.Route().Path
	metrics.ObserveHTTP(c.Method(), route, status, elapsed)

	ev := logging.Ctx(c.UserContext()).Info()
	if status >= fiber.StatusInternalServerError {
		ev = logging.Ctx(c.UserContext()).Error()
	}
	ev.Str("method", c.Method()).Str("path", c.Path()).Int("status", status).
		Dur("latency", elapsed).Msg("request")
	return nil
}
