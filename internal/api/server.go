// Package api serves the task tracker over HTTP.
package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/requestid"
)

// Processor runs the intake pipeline.
type Processor interface {
	Process(ctx context.Context, userID, text string) (*intake.Result, error)
	Classify(ctx context.Context, text string) (*models.Extraction, error)
}

// Repository is the read and admin surface of the store.
type Repository interface {
	ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error)

	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)

	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]models.Workflow, error)
}

// Namer is the naming engine's learning surface.
type Namer interface {
	RecordCorrection(ctx context.Context, c models.TaskNameCorrection)
	Suggestions(ctx context.Context, title, workflowType string) []string
}

// ServerConfig holds API server configuration.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins []string
}

// Server is the fiber application serving /api.
type Server struct {
	app       *fiber.App
	cfg       ServerConfig
	processor Processor
	repo      Repository
	namer     Namer
	logger    zerolog.Logger
}

// NewServer builds the application and registers its routes.
func NewServer(cfg ServerConfig, processor Processor, repo Repository, namer Namer, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		repo:      repo,
		namer:     namer,
		logger:    logger.With().Str("component", "api").Logger(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "tally",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	if len(cfg.CORSOrigins) > 0 {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
		}))
	}
	s.app.Use(requestIDMiddleware)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.Liveness)

	api := s.app.Group("/api")
	api.Get("/healthz", s.Liveness)

	msgs := api.Group("/messages")
	msgs.Get("/", s.ListMessages)
	msgs.Post("/", s.ProcessMessage)
	msgs.Post("/classify", s.ClassifyMessage)

	tasks := api.Group("/tasks")
	tasks.Get("/", s.ListTasks)
	tasks.Get("/:id", s.GetTask)
	tasks.Patch("/:id", s.PatchTask)
	tasks.Delete("/:id", s.DeleteTask)

	users := api.Group("/users")
	users.Get("/", s.ListUsers)
	users.Post("/", s.CreateUser)
	users.Get("/:id", s.GetUser)

	wf := api.Group("/workflows")
	wf.Get("/", s.ListWorkflows)
	wf.Get("/:id", s.GetWorkflow)

	corr := api.Group("/corrections")
	corr.Post("/", s.RecordCorrection)
	corr.Get("/suggestions", s.Suggestions)
}

// requestIDMiddleware honours an incoming X-Request-ID and echoes the id in
// effect.
func requestIDMiddleware(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if id := c.Get("X-Request-ID"); id != "" {
		ctx = requestid.WithRequestID(ctx, id)
	}
	ctx, id := requestid.Ensure(ctx)
	c.SetUserContext(ctx)
	c.Set("X-Request-ID", id)
	return c.Next()
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("API server starting")
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
