package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/markwise-go-api/internal/config"
	"github.com/noah-isme/markwise-go-api/internal/handler"
	"github.com/noah-isme/markwise-go-api/internal/middleware"
	"github.com/noah-isme/markwise-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CourseworkHandler *handler.CourseworkHandler
	SubmissionHandler *handler.SubmissionHandler
	FeedbackHandler   *handler.FeedbackHandler
	AllocationHandler *handler.AllocationHandler
	SamplingHandler   *handler.SamplingHandler
	DeadlineHandler   *handler.DeadlineHandler
	GradingHandler    *handler.GradingHandler
	JWTMiddleware     fiber.Handler
	UploadLimiter     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	marking := app.Group("/api/v1/marking", jwtMiddleware)

	if deps.CourseworkHandler != nil {
		courseworkGroup := marking.Group("/courseworks")
		deps.CourseworkHandler.Register(courseworkGroup)
	}

	if deps.SubmissionHandler != nil {
		submissionGroup := marking.Group("/courseworks/:courseworkID/submissions")
		if deps.UploadLimiter != nil {
			submissionGroup.Use(deps.UploadLimiter)
		}
		deps.SubmissionHandler.Register(submissionGroup)
	}

	if deps.FeedbackHandler != nil {
		feedbackGroup := marking.Group("/courseworks/:courseworkID/feedback", middleware.RequireRole("admin", "teacher", "moderator"))
		deps.FeedbackHandler.Register(feedbackGroup)
	}

	if deps.AllocationHandler != nil {
		allocationGroup := marking.Group("/courseworks/:courseworkID/allocations", middleware.RequireRole("admin", "teacher"))
		deps.AllocationHandler.Register(allocationGroup)
	}

	if deps.SamplingHandler != nil {
		samplingGroup := marking.Group("/courseworks/:courseworkID/sampling", middleware.RequireRole("admin", "teacher", "moderator"))
		deps.SamplingHandler.Register(samplingGroup)
	}

	if deps.DeadlineHandler != nil {
		deadlineGroup := marking.Group("/courseworks/:courseworkID/deadlines")
		deps.DeadlineHandler.Register(deadlineGroup)
	}

	if deps.GradingHandler != nil {
		gradingGroup := marking.Group("/courseworks/:courseworkID/grading", middleware.RequireRole("admin", "teacher"))
		deps.GradingHandler.Register(gradingGroup)
	}
}
