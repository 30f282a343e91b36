package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	perrors "github.com/p-blackswan/tally/internal/errors"
	"github.com/p-blackswan/tally/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", perrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func bodyError(err error) error {
	return invalid("invalid request body: %v", err)
}

// Liveness handles GET /healthz.
func (s *Server) Liveness(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, fiber.Map{"status": "ok"})
}

// ListMessages handles GET /api/messages.
func (s *Server) ListMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxPageSize {
		return invalid("limit must be within 1..%d", maxPageSize)
	}
	if offset < 0 {
		return invalid("offset must not be negative")
	}

	msgs, err := s.repo.ListMessages(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return ok(c, fiber.StatusOK, MessagePage{Messages: msgs, Limit: limit, Offset: offset})
}

// ProcessMessage handles POST /api/messages.
func (s *Server) ProcessMessage(c *fiber.Ctx) error {
	var req ProcessMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}
	if req.UserID == "" {
		return invalid("userId is required")
	}

	res, err := s.processor.Process(c.UserContext(), req.UserID, req.Content)
	if err != nil {
		return err
	}
	if res.Created == nil {
		res.Created = []models.Task{}
	}
	if res.Updated == nil {
		res.Updated = []models.Task{}
	}
	return ok(c, fiber.StatusCreated, res)
}

// ClassifyMessage handles POST /api/messages/classify. Nothing is stored.
func (s *Server) ClassifyMessage(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}
	ext, err := s.processor.Classify(c.UserContext(), req.Content)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, ext)
}

// ListTasks handles GET /api/tasks.
func (s *Server) ListTasks(c *fiber.Ctx) error {
	f := models.TaskFilter{
		WorkflowType: c.Query("workflowType"),
		Status:       models.Status(c.Query("status")),
		Assignee:     c.Query("assignee"),
		Limit:        c.QueryInt("limit", 0),
	}
	if f.Status != "" && !f.Status.Valid() {
		return invalid("unknown status %q", f.Status)
	}
	if f.Limit < 0 {
		return invalid("limit must not be negative")
	}

	tasks, err := s.repo.ListTasks(c.UserContext(), f)
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return ok(c, fiber.StatusOK, tasks)
}

func (s *Server) task(c *fiber.Ctx) (*models.Task, error) {
	id := c.Params("id")
	t, err := s.repo.GetTask(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: task %s", perrors.ErrNotFound, id)
	}
	return t, nil
}

// GetTask handles GET /api/tasks/:id.
func (s *Server) GetTask(c *fiber.Ctx) error {
	t, err := s.task(c)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, t)
}

// PatchTask handles PATCH /api/tasks/:id.
func (s *Server) PatchTask(c *fiber.Ctx) error {
	var req TaskPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}
	if req.Status != nil && !req.Status.Valid() {
		return invalid("unknown status %q", *req.Status)
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return invalid("unknown priority %q", *req.Priority)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return invalid("title must not be empty")
	}

	current, err := s.task(c)
	if err != nil {
		return err
	}
	patch := models.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		WorkflowType: req.WorkflowType,
		Assignees:    req.Assignees,
		Tags:         req.Tags,
		Deadline:     req.Deadline,
		BlockedBy:    req.BlockedBy,
	}
	if req.Metadata != nil {
		patch.Metadata = current.Metadata.Merge(models.Sanitize(req.Metadata))
	}
	if patch.Empty() {
		return ok(c, fiber.StatusOK, current)
	}

	updated, err := s.repo.UpdateTask(c.UserContext(), current.ID, patch)
	if err != nil {
		return err
	}
	if updated == nil {
		return fmt.Errorf("%w: task %s", perrors.ErrNotFound, current.ID)
	}
	return ok(c, fiber.StatusOK, updated)
}

// DeleteTask handles DELETE /api/tasks/:id.
func (s *Server) DeleteTask(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := s.repo.DeleteTask(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: task %s", perrors.ErrNotFound, id)
	}
	return ok(c, fiber.StatusOK, fiber.Map{"id": id})
}

// ListUsers handles GET /api/users.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.repo.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	if users == nil {
		users = []models.User{}
	}
	return ok(c, fiber.StatusOK, users)
}

// CreateUser handles POST /api/users.
func (s *Server) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" {
		return invalid("name and email are required")
	}
	if !strings.Contains(req.Email, "@") {
		return invalid("email %q is not an address", req.Email)
	}

	existing, err := s.repo.UserByEmail(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return problemResponse(c, fiber.StatusConflict, "user_exists", "Conflict",
			"a user with email "+req.Email+" already exists")
	}

	u, err := s.repo.CreateUser(c.UserContext(), models.User{Name: req.Name, Email: req.Email, Avatar: req.Avatar})
	if err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID).Msg("user created")
	return ok(c, fiber.StatusCreated, u)
}

// GetUser handles GET /api/users/:id.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id := c.Params("id")
	u, err := s.repo.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %s", perrors.ErrUserNotFound, id)
	}
	return ok(c, fiber.StatusOK, u)
}

// ListWorkflows handles GET /api/workflows.
func (s *Server) ListWorkflows(c *fiber.Ctx) error {
	wfs, err := s.repo.ListWorkflows(c.UserContext())
	if err != nil {
		return err
	}
	if wfs == nil {
		wfs = []models.Workflow{}
	}
	return ok(c, fiber.StatusOK, wfs)
}

// GetWorkflow handles GET /api/workflows/:id.
func (s *Server) GetWorkflow(c *fiber.Ctx) error {
	id := c.Params("id")
	wf, err := s.repo.GetWorkflow(c.UserContext(), id)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("%w: workflow %s", perrors.ErrNotFound, id)
	}
	return ok(c, fiber.StatusOK, wf)
}

// RecordCorrection handles POST /api/corrections.
func (s *Server) RecordCorrection(c *fiber.Ctx) error {
	var req CorrectionRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(err)
	}
	if strings.TrimSpace(req.OriginalTitle) == "" || strings.TrimSpace(req.CorrectedTitle) == "" {
		return invalid("originalTitle and correctedTitle are required")
	}

	corr := models.TaskNameCorrection{
		OriginalTitle:  req.OriginalTitle,
		CorrectedTitle: req.CorrectedTitle,
		WorkflowType:   req.WorkflowType,
		OriginalTags:   req.OriginalTags,
		CorrectedTags:  req.CorrectedTags,
		UserMessage:    req.UserMessage,
	}
	s.namer.RecordCorrection(c.UserContext(), corr)
	return ok(c, fiber.StatusCreated, corr)
}

// Suggestions handles GET /api/corrections/suggestions.
func (s *Server) Suggestions(c *fiber.Ctx) error {
	title := c.Query("title")
	if strings.TrimSpace(title) == "" {
		return invalid("title is required")
	}
	out := s.namer.Suggestions(c.UserContext(), title, c.Query("workflowType"))
	if out == nil {
		out = []string{}
	}
	return ok(c, fiber.StatusOK, out)
}
