package server

import (
	"socialdb/internal/models"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Text *string `json:"text"`
}

// CreatePost handles POST /post
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Text == nil || *req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Text is required"))
	}

	post := &models.Post{
		UserID: userID,
		Text:   *req.Text,
	}

	if err := s.postRepo.Create(c.Context(), post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully",
		"post":    post,
	})
}

// GetPosts handles GET /posts, returning only the requester's posts.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	posts, err := s.postRepo.ListByOwner(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	return c.JSON(fiber.Map{"posts": posts})
}

// UpdatePost handles PUT /posts/:postId. The update statement itself is
// scoped by owner; a post that exists but belongs to someone else is
// indistinguishable from a missing one.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, ok := s.parseID(c, "postId")
	if !ok {
		return nil
	}

	var req postRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Text == nil || *req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Text is required"))
	}

	post, err := s.postRepo.UpdateOwned(c.Context(), postID, userID, *req.Text)
	if err != nil {
		return respondWithRepoError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Post updated successfully",
		"updatedPost": post,
	})
}

// DeletePost handles DELETE /posts/:postId with the same ownership scoping
// as UpdatePost.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, ok := s.parseID(c, "postId")
	if !ok {
		return nil
	}

	post, err := s.postRepo.DeleteOwned(c.Context(), postID, userID)
	if err != nil {
		return respondWithRepoError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Post deleted successfully",
		"deletedPost": post,
	})
}

// respondWithRepoError maps repository errors onto HTTP statuses.
func respondWithRepoError(c *fiber.Ctx, err error) error {
	if appErr, ok := err.(*models.AppError); ok && appErr.Code == "NOT_FOUND" {
		return models.RespondWithError(c, fiber.StatusNotFound, appErr)
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}
