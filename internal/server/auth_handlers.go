package server

import (
	"log/slog"
	"time"

	"socialdb/internal/middleware"
	"socialdb/internal/models"
	"socialdb/internal/session"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /register. A successful registration issues a token
// and stores it in a fresh session, so the user is logged in immediately.
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, email, and password are required"))
	}

	// Friendly duplicate check; the unique constraints on username and email
	// close the window this check leaves open.
	exists, err := s.userRepo.ExistsByUsernameOrEmail(c.Context(), req.Username, req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if exists {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewConflictError("User already exists"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}

	if createErr := s.userRepo.Create(c.Context(), user); createErr != nil {
		status := fiber.StatusInternalServerError
		if appErr, ok := createErr.(*models.AppError); ok && appErr.Code == "CONFLICT" {
			status = fiber.StatusBadRequest
		}
		return models.RespondWithError(c, status, createErr)
	}

	if err := s.startSession(c, user.ID, user.Username); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{"message": "User registered successfully"})
}

// Login handles POST /login.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByUsername(c.Context(), req.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if err := s.startSession(c, user.ID, user.Username); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{"message": "Login successful"})
}

// Logout handles GET /logout. Session destruction failures are logged but
// never surfaced; the client lands on the login page either way.
func (s *Server) Logout(c *fiber.Ctx) error {
	if sid := c.Cookies(session.CookieName); sid != "" {
		if err := s.sessions.Destroy(c.Context(), sid); err != nil {
			middleware.Logger.ErrorContext(c.UserContext(), "session destroy failed",
				slog.String("error", err.Error()))
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect("/login", fiber.StatusFound)
}

// startSession issues a token for the identity, stores it server-side, and
// hands the client the session cookie.
func (s *Server) startSession(c *fiber.Ctx, userID uint, username string) error {
	token, err := s.tokens.Issue(userID, username)
	if err != nil {
		return models.NewInternalError(err)
	}

	sid, err := s.sessions.Create(c.Context(), token)
	if err != nil {
		return models.NewInternalError(err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    sid,
		Expires:  time.Now().Add(session.TTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}
