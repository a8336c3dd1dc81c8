package server

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// TaskRequest is the payload for creating or updating a task.
type TaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func (r TaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Title,
			validation.Required,
			validation.Length(1, 200),
		),
		validation.Field(
			&r.Description,
			validation.Length(0, 1000),
		),
	)
}

func (s *Server) handleListTasks(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	records, err := s.tasks.ListByUser(c.Context(), userID)
	if err != nil {
		s.logger.Error("task list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	return c.JSON(records)
}

func (s *Server) handleCreateTask(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	payload := TaskRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "invalid request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	task := &Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
	}

	created, err := s.tasks.Create(c.Context(), task)
	if err != nil {
		s.logger.Error("task create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) handleGetTask(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid task id",
		})
	}

	task, err := s.tasks.GetForUser(c.Context(), id, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "task not found",
			})
		}
		s.logger.Error("task get failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	return c.JSON(task)
}

func (s *Server) handleUpdateTask(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid task id",
		})
	}

	payload := TaskRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "invalid request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	task := &Task{
		ID:          id,
		UserID:      userID,
		Title:       payload.Title,
		Description: payload.Description,
		Completed:   payload.Completed,
	}

	updated, err := s.tasks.UpdateForUser(c.Context(), task)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "task not found",
			})
		}
		s.logger.Error("task update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	return c.JSON(updated)
}

func (s *Server) handleDeleteTask(c *fiber.Ctx) error {
	userID, ok := userIDFromContext(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "invalid task id",
		})
	}

	deleted, err := s.tasks.DeleteForUser(c.Context(), id, userID)
	if err != nil {
		s.logger.Error("task delete failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "task not found",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
