package server

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/service/auth"
	"github.com/oggyb/fashionjiok/internal/service/chat"
	"github.com/oggyb/fashionjiok/internal/service/explore"
	"github.com/oggyb/fashionjiok/internal/service/match"
	"github.com/oggyb/fashionjiok/internal/service/suggest"
)

// fiberprometheus registers its collectors globally, so one instance serves every app.
var httpMetrics = sync.OnceValue(func() *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New("fashionjiok")
})

// Services is the set of domain services exposed over HTTP.
type Services struct {
	Match   *match.Service
	Explore *explore.Service
	Chat    *chat.Service
	Auth    *auth.Service
	Suggest *suggest.Service
}

// NewServices builds every service from the shared AppContext.
func NewServices(appCtx *app.AppContext) Services {
	return Services{
		Match:   match.NewService(appCtx),
		Explore: explore.NewExploreService(appCtx),
		Chat:    chat.NewChatService(appCtx),
		Auth:    auth.NewAuthService(appCtx),
		Suggest: suggest.NewSuggestService(appCtx),
	}
}

type httpHandlers struct {
	appCtx   *app.AppContext
	svcs     Services
	log      *slog.Logger
	validate *validator.Validate
}

// NewHTTPServer builds the fiber app with middleware and all routes.
func NewHTTPServer(appCtx *app.AppContext, svcs Services) *fiber.App {
	log := appCtx.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &httpHandlers{
		appCtx:   appCtx,
		svcs:     svcs,
		log:      log.With("component", "http"),
		validate: newValidator(),
	}

	fapp := fiber.New(fiber.Config{
		AppName:               "fashionjiok",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})

	setupMiddleware(fapp, appCtx.Config, h.log)
	h.routes(fapp)
	return fapp
}

func setupMiddleware(fapp *fiber.App, cfg *config.Config, log *slog.Logger) {
	fapp.Use(recover.New())
	fapp.Use(requestid.New())
	fapp.Use(contextMiddleware())
	fapp.Use(httpMetrics().Middleware)
	fapp.Use(structuredLogger(log))

	origins := "*"
	if cfg != nil && strings.TrimSpace(cfg.HTTP.AllowedOrigins) != "" {
		origins = cfg.HTTP.AllowedOrigins
	}
	fapp.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    pageTokenHeader,
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	fapp.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "too many requests, please try again later",
				"code":    "rate_limited",
			})
		},
	}))
}

func (h *httpHandlers) routes(fapp *fiber.App) {
	fapp.Get("/", h.root)
	fapp.Get("/health/live", h.liveness)
	fapp.Get("/health/ready", h.readiness)
	httpMetrics().RegisterAt(fapp, "/metrics")

	api := fapp.Group("/api", h.session)
	api.Get("/test-db", h.testDB)

	matches := api.Group("/matches")
	matches.Post("/like", h.sendLike)
	matches.Get("/cards", h.cards)
	matches.Get("/list", h.listMatches)
	matches.Get("/liked-you", h.likedYou)
	matches.Get("/liked-you/count", h.likedYouCount)

	users := api.Group("/users")
	users.Get("/explore", h.explore)
	users.Get("/locations", h.nearby)

	chats := api.Group("/chats")
	chats.Get("/list", h.listRooms)
	chats.Get("/:roomId/messages", h.messages)
	chats.Post("/:roomId/messages", h.sendMessage)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/send-code", h.sendCode)
	authRoutes.Post("/verify-code", h.verifyCode)

	api.Post("/recommendation", h.recommendation)
}

// ServeHTTP listens on the configured address and blocks until the app shuts down.
func ServeHTTP(cfg *config.Config, fapp *fiber.App) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	if err := fapp.Listen(addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return nil
}

// newValidator reports field names by their json tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return "invalid request body"
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fe.Field() + " must be numeric"
	default:
		return fe.Field() + " is invalid"
	}
}
