package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/middleware"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/service"
)

var errInvalidIdentifier = errors.New("invalid identifier")

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errInvalidIdentifier
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

// allocatableFromQuery reads the ?allocatable_id=&allocatable_type= pair
// used by endpoints addressing one marking target.
func allocatableFromQuery(c *fiber.Ctx) (models.Allocatable, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Query("allocatable_id")), 10, 64)
	if err != nil {
		return models.Allocatable{}, errors.New("invalid allocatable_id")
	}

	kind := models.AllocatableType(strings.TrimSpace(c.Query("allocatable_type")))
	if !kind.Valid() {
		return models.Allocatable{}, errors.New("invalid allocatable_type")
	}

	return models.Allocatable{ID: uint(id), Type: kind}, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
