package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklane/ticket-tracker/internal/api/dto"
	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/service"
)

// CommentsHandler manages ticket threads.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// List GET /api/tickets/:id/comments.
func (h *CommentsHandler) List(c *fiber.Ctx) error {
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), auth.ActorFromContext(c), ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(views))
	for _, view := range views {
		items = append(items, dto.NewCommentResponse(view))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /api/tickets/:id/comments.
func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	view, err := h.service.Add(c.UserContext(), auth.ActorFromContext(c), ticketID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(*view)})
}

// Delete DELETE /api/comments/:id.
func (h *CommentsHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), auth.ActorFromContext(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{}})
}
