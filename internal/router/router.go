package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arketa-lab/gradeflow-api/internal/config"
	"github.com/arketa-lab/gradeflow-api/internal/handler"
	"github.com/arketa-lab/gradeflow-api/internal/middleware"
	"github.com/arketa-lab/gradeflow-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler       *handler.TaskHandler
	SolutionHandler   *handler.SolutionHandler
	AssessmentHandler *handler.AssessmentHandler
	ReviewHandler     *handler.ReviewHandler
	OperationHandler  *handler.OperationHandler
	CostHandler       *handler.CostHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.TaskHandler != nil {
		tasks := app.Group("/api/v1/tasks", jwtMiddleware)
		deps.TaskHandler.Register(tasks)
	}

	if deps.SolutionHandler != nil {
		solutions := app.Group("/api/v1/solutions", jwtMiddleware)
		deps.SolutionHandler.Register(solutions)
	}

	if deps.AssessmentHandler != nil {
		// Assessment endpoints trigger paid evaluator calls.
		assessments := app.Group("/api/v1/assessments", jwtMiddleware,
			middleware.RequireRole("reviewer", "teacher", "admin"),
			middleware.RateLimit("assessments", 60, time.Minute))
		deps.AssessmentHandler.Register(assessments)
	}

	if deps.ReviewHandler != nil {
		reviews := app.Group("/api/v1/reviews", jwtMiddleware,
			middleware.RequireRole("reviewer", "teacher", "admin"))
		deps.ReviewHandler.Register(reviews)
	}

	if deps.OperationHandler != nil {
		operations := app.Group("/api/v1/operations", jwtMiddleware)
		deps.OperationHandler.Register(operations)
	}

	if deps.CostHandler != nil {
		costs := app.Group("/api/v1/costs", jwtMiddleware,
			middleware.RequireRole("teacher", "admin"))
		deps.CostHandler.Register(costs)
	}

	if deps.ActivityHandler != nil {
		activity := app.Group("/api/v1/activity", jwtMiddleware,
			middleware.RequireRole("admin"))
		deps.ActivityHandler.Register(activity)
	}
}
