package server

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

var usernameFormat = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(3, 50),
			validation.Match(usernameFormat),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(matchString(r.Password, "passwords must match")),
		),
	)
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func matchString(expected, message string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return goerrors.New(message, goerrors.CategoryValidation)
		}
		return nil
	}
}

// LoginResponse is the body returned on successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	payload := RegisterRequest{}
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

	ctx := c.Context()

	if _, err := s.users.GetByUsername(ctx, payload.Username); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Username already exists",
		})
	} else if !repository.IsRecordNotFound(err) {
		s.logger.Error("register username lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		s.logger.Error("register password hash failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	user := &User{
		ID:           uuid.New(),
		Username:     payload.Username,
		PasswordHash: hash,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		s.logger.Error("register create user failed: %v", err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "could not create user",
		})
	}

	s.logger.Info("user registered: %s", created.Username)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    created.Response(),
		"message": "User registered successfully",
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	payload := LoginRequest{}
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

	ctx := c.Context()

	user, err := s.users.GetByUsername(ctx, payload.Username)
	if err != nil {
		// identical response for unknown user and bad password
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid username or password",
		})
	}

	if err := ComparePasswordAndHash(payload.Password, user.PasswordHash); err != nil {
		s.logger.Warn("failed login attempt for %s", payload.Username)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid username or password",
		})
	}

	token, expiresIn, err := s.tokens.Generate(user)
	if err != nil {
		s.logger.Error("login token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	s.logger.Info("user logged in: %s", user.Username)

	return c.JSON(LoginResponse{
		AccessToken: token,
		TokenType:   authScheme,
		ExpiresIn:   expiresIn,
		User:        user.Response(),
	})
}
