package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-ingest/internal/common"
	"github.com/i474232898/weather-ingest/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the admin API drives.
type Deps struct {
	Runner     *weather.Runner
	Backfiller *weather.Backfiller
	Store      weather.Store
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Post("/pipeline/:kind/run", func(c *fiber.Ctx) error {
		kind, err := weather.ParseKind(c.Params("kind"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var req runRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		date, err := req.date()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		n, err := deps.Runner.Run(c.UserContext(), req.City, kind, date)
		if err != nil {
			return pipelineError(err)
		}

		return c.JSON(fiber.Map{
			"city":    req.City,
			"kind":    kind.String(),
			"records": n,
		})
	})

	v1.Post("/backfill", func(c *fiber.Ctx) error {
		var req backfillRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		summary, err := deps.Backfiller.Backfill(c.UserContext(), req.City, req.Start, req.End)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(summary)
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		q := observationsQuery{Kind: c.Query("kind"), Date: c.Query("date")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		kind, err := weather.ParseKind(q.Kind)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := deps.Store.List(c.UserContext(), kind, q.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read observations")
		}
		if len(records) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no observations for requested date and kind")
		}

		return c.JSON(fiber.Map{
			"kind":         kind.String(),
			"date":         q.Date,
			"observations": records,
		})
	})
}

// runRequest is the body of POST /pipeline/:kind/run.
type runRequest struct {
	City string `json:"city" validate:"required"`
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// date returns the requested day, or the zero time when none was given.
func (r runRequest) date() (time.Time, error) {
	if r.Date == "" {
		return time.Time{}, nil
	}
	return common.ParseDate(r.Date)
}

// backfillRequest is the body of POST /backfill.
type backfillRequest struct {
	City  string `json:"city" validate:"required"`
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// observationsQuery holds query parameters for GET /observations.
type observationsQuery struct {
	Kind string `validate:"required,oneof=history forecast"`
	Date string `validate:"required,datetime=2006-01-02"`
}

func bindBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// pipelineError maps pipeline failures to HTTP statuses.
func pipelineError(err error) error {
	var (
		transport   *weather.TransportError
		mapping     *weather.MappingError
		persistence *weather.PersistenceError
	)
	switch {
	case errors.As(err, &transport):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.As(err, &mapping):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &persistence):
		if errors.Is(err, weather.ErrDuplicateBatch) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
