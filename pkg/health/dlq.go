package health

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/redis"
)

// DLQHandler exposes the dead letter queue on the admin surface so an
// operator can inspect and drain failed deliveries.
type DLQHandler struct {
	dlq *redis.DeadLetterQueue
}

// NewDLQHandler creates a DLQHandler.
func NewDLQHandler(dlq *redis.DeadLetterQueue) *DLQHandler {
	return &DLQHandler{dlq: dlq}
}

// List returns the newest DLQ entries, optionally filtered by family.
func (h *DLQHandler) List(ctx echo.Context) error {
	count := int64(100)
	if raw := ctx.QueryParam("count"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "count must be a positive integer")
		}
		count = parsed
	}

	var entries []redis.DLQEntry
	var err error
	if family := ctx.QueryParam("family"); family != "" {
		entries, err = h.dlq.ListByFamily(ctx.Request().Context(), family, count)
	} else {
		entries, err = h.dlq.List(ctx.Request().Context(), count)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	total, err := h.dlq.Count(ctx.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
	})
}

// Delete removes one DLQ entry after an operator has replayed it.
func (h *DLQHandler) Delete(ctx echo.Context) error {
	messageID := ctx.Param("id")
	if messageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id is required")
	}

	if err := h.dlq.Delete(ctx.Request().Context(), messageID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes registers the DLQ routes under /api/v1.
func (h *DLQHandler) RegisterRoutes(e *echo.Echo) {
	dlq := e.Group("/api/v1/dlq")
	dlq.GET("", h.List)
	dlq.DELETE("/:id", h.Delete)
}
