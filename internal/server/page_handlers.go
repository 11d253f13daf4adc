package server

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// sendPage serves a static HTML page from the configured pages directory.
func (s *Server) sendPage(c *fiber.Ctx, name string) error {
	dir := s.config.PagesDir
	if dir == "" {
		dir = "./web"
	}
	return c.SendFile(filepath.Join(dir, name))
}

// HomePage handles GET /
func (s *Server) HomePage(c *fiber.Ctx) error {
	return s.sendPage(c, "home.html")
}

// RegisterPage handles GET /register
func (s *Server) RegisterPage(c *fiber.Ctx) error {
	return s.sendPage(c, "register.html")
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.sendPage(c, "login.html")
}

// PostPage handles GET /post (page auth required)
func (s *Server) PostPage(c *fiber.Ctx) error {
	return s.sendPage(c, "post.html")
}

// IndexPage handles GET /index (page auth required)
func (s *Server) IndexPage(c *fiber.Ctx) error {
	return s.sendPage(c, "index.html")
}
