package vocab

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vadssync/vadssync/internal/platform/index"
)

// Handler exposes indexed documents and operation triggers over HTTP.
type Handler struct {
	store      index.Store
	dispatcher *Dispatcher
}

func NewHandler(store index.Store, dispatcher *Dispatcher) *Handler {
	return &Handler{store: store, dispatcher: dispatcher}
}

// RegisterRoutes registers the document and operation routes on api.
// readMW wraps only the document read route.
func (h *Handler) RegisterRoutes(api *echo.Group, readMW ...echo.MiddlewareFunc) {
	api.GET("/documents/:collection/:type/:id", h.GetDocument, readMW...)
	api.POST("/operations", h.TriggerOperation)
}

// Health handles GET /health by pinging the index store.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

var readableCollections = map[string]bool{
	CollectionCodes:            true,
	CollectionCodeSystems:      true,
	CollectionValueSets:        true,
	CollectionValueSetVersions: true,
}

// GetDocument handles GET /api/v1/documents/:collection/:type/:id.
func (h *Handler) GetDocument(c echo.Context) error {
	collection := c.Param("collection")
	if !readableCollections[collection] {
		return echo.NewHTTPError(http.StatusNotFound, "unknown collection: "+collection)
	}

	raw, ok := h.store.Get(c.Request().Context(), collection, c.Param("type"), c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// OperationRequest is the body of POST /api/v1/operations.
type OperationRequest struct {
	Operation string `json:"operation"`
	Force     bool   `json:"force"`
}

// TriggerOperation handles POST /api/v1/operations. The operation runs to
// completion before the response is written.
func (h *Handler) TriggerOperation(c echo.Context) error {
	var req OperationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	op, err := ParseOperation(req.Operation)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rep, err := h.dispatcher.Run(c.Request().Context(), op, req.Force)
	if errors.Is(err, ErrRunInProgress) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, rep)
}
