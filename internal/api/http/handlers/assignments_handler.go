package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklane/ticket-tracker/internal/api/dto"
	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/service"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// AssignmentsHandler exposes ticket assignment endpoints.
type AssignmentsHandler struct {
	service *service.AssignmentService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignmentService *service.AssignmentService) *AssignmentsHandler {
	return &AssignmentsHandler{service: assignmentService}
}

// List GET /api/tickets/:id/assignments.
func (h *AssignmentsHandler) List(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	refs, err := h.service.List(c.UserContext(), auth.ActorFromContext(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserResponses(refs)})
}

// Add POST /api/tickets/:id/assignments.
func (h *AssignmentsHandler) Add(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.UserID <= 0 {
		return apperrors.NewValidationError("user_id required", map[string]any{"user_id": "required"})
	}
	ref, err := h.service.Add(c.UserContext(), auth.ActorFromContext(c), id, req.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.UserResponse{UserID: ref.ID, Username: ref.Username}})
}

// Remove DELETE /api/tickets/:id/assignments/:userID.
func (h *AssignmentsHandler) Remove(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userID")
	if err != nil {
		return err
	}
	if err := h.service.Remove(c.UserContext(), auth.ActorFromContext(c), id, userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{}})
}
