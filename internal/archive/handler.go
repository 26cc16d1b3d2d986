package archive

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/transcribe-relay/internal/shared"
	"github.com/labstack/echo/v4"
)

// Handler serves REST reads over the transcript archive for export tooling.
type Handler struct {
	store *Store
	log   *slog.Logger
}

func NewHandler(store *Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store: store,
		log:   log.With("handler", "archive"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/transcriptions", h.List)
	g.GET("/sessions/:id/transcriptions", h.ListBySession)
}

type listResponse struct {
	Total          int64        `json:"total"`
	Transcriptions []Transcript `json:"transcriptions"`
}

func (h *Handler) List(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))

	rows, total, err := h.store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		h.log.Error("list transcripts failed", "error", err)
		return shared.InternalError("archive_read_failed", "failed to read transcript archive")
	}

	return c.JSON(http.StatusOK, listResponse{
		Total:          total,
		Transcriptions: rows,
	})
}

func (h *Handler) ListBySession(c echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return shared.BadRequest("missing_session_id", "session id is required")
	}

	rows, err := h.store.ListBySession(c.Request().Context(), sessionID, parseLimit(c.QueryParam("limit")))
	if err != nil {
		h.log.Error("list session transcripts failed", "error", err, "session_id", sessionID)
		return shared.InternalError("archive_read_failed", "failed to read transcript archive")
	}

	return c.JSON(http.StatusOK, listResponse{
		Total:          int64(len(rows)),
		Transcriptions: rows,
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
