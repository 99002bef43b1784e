package server

import (
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/service"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// sendSession sets the session cookie and answers with the token and user.
func (s *Server) sendSession(c *fiber.Ctx, status int, sess *service.Session) error {
	c.Cookie(s.tokens.Cookie(sess.Token))
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  sess.Token,
		"data":   fiber.Map{"user": sess.User},
	})
}

// Register handles POST /users
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	sess, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return s.sendSession(c, fiber.StatusCreated, sess)
}

// Login handles POST /users/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	sess, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return s.sendSession(c, fiber.StatusOK, sess)
}

// Logout replaces the session cookie with one that expires almost at once.
func (s *Server) Logout(c *fiber.Ctx) error {
	c.Cookie(s.tokens.ExpiredCookie())
	return c.JSON(fiber.Map{"status": "success"})
}

// ForgotPassword handles POST /users/forgot-password. The answer is the same
// whether or not the email is known.
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	raw, err := s.userService.ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"status":  "success",
		"message": service.ForgotPasswordResponse,
	}
	if s.config.IsDevelopment() && raw != "" {
		resp["resetToken"] = raw
	}
	return c.JSON(resp)
}

// ResetPassword handles PATCH /users/reset-password?resetToken=
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	sess, err := s.userService.ResetPassword(c.UserContext(), c.Query("resetToken"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return s.sendSession(c, fiber.StatusOK, sess)
}

// ChangePassword handles PATCH /users/change-password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	sess, err := s.userService.ChangePassword(c.UserContext(), middleware.UserID(c),
		req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return s.sendSession(c, fiber.StatusOK, sess)
}

// CheckAuth returns the user the session belongs to.
func (s *Server) CheckAuth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": middleware.CurrentUser(c)},
	})
}

// UpdateMe handles PATCH /users/user
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	body := map[string]any{}
	if err := c.BodyParser(&body); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	user, err := s.userService.UpdateMe(c.UserContext(), middleware.UserID(c), body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": user},
	})
}
