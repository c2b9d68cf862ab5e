package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/present/rest/middleware"
	"github.com/totegamma/ticketgate/internal/present/rest/presenter"
	"github.com/totegamma/ticketgate/internal/usecase"
	"github.com/totegamma/ticketgate/internal/utils"
)

// ScanStream is implemented by service.SignalService.
type ScanStream interface {
	Stream(ctx context.Context, eventID string) (<-chan domain.LedgerEntry, func() error)
}

type Handler struct {
	config domain.Config
	issuer *usecase.Issuer
	salts  usecase.SaltProvider
	gate   *usecase.Gate
	stream ScanStream
}

// NewHandler builds the API handler. stream may be nil, which disables realtime.
func NewHandler(
	config domain.Config,
	issuer *usecase.Issuer,
	salts usecase.SaltProvider,
	gate *usecase.Gate,
	stream ScanStream,
) *Handler {
	return &Handler{
		config: config,
		issuer: issuer,
		salts:  salts,
		gate:   gate,
		stream: stream,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, auth *middleware.AuthMiddleware) {
	e.GET("/health", h.handleHealth)

	api := e.Group("/api/v1")
	if auth != nil {
		api.Use(auth.Identify)
	}
	api.POST("/tickets", h.handleIssue, middleware.RequireIssuer)
	api.PUT("/events/:id", h.handleDefineEvent, middleware.RequireIssuer)
	api.GET("/events/:id/scans", h.handleScans, middleware.RequireIssuer)
	api.GET("/events/:id/stats", h.handleStats, middleware.RequireIssuer)
	api.GET("/realtime", h.handleRealtime, middleware.RequireIssuer)
	api.POST("/verify", h.handleVerify, middleware.RequireDevice)
	api.POST("/sync", h.handleSync, middleware.RequireDevice)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok", "fqdn": h.config.FQDN})
}

func (h *Handler) handleIssue(c echo.Context) error {
	ctx := c.Request().Context()

	var input usecase.IssueInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	if input.EventID == "" {
		return presenter.BadRequestMessage(c, "eventId is required")
	}

	salt, err := h.salts.SaltFor(input.EventID)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	input.SecretSalt = salt

	result, err := h.issuer.Issue(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidAnchor) {
			return presenter.BadRequest(c, err)
		}
		return presenter.InternalError(c, err)
	}

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return presenter.OK(c, result)
	}

	c.Response().Header().Set(domain.TicketIDHeader, result.TicketID)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, result.TicketID))
	return c.Blob(http.StatusOK, "application/pdf", result.Document)
}

func requesterDevice(c echo.Context) (string, []string) {
	ctx := c.Request().Context()
	device, _ := ctx.Value(domain.RequesterDeviceCtxKey).(string)
	events, _ := ctx.Value(domain.RequesterEventsCtxKey).([]string)
	return device, events
}

func (h *Handler) handleVerify(c echo.Context) error {
	ctx := c.Request().Context()

	var input usecase.GateVerifyInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}

	device, events := requesterDevice(c)
	record, err := h.gate.Verify(ctx, device, events, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return presenter.BadRequest(c, err)
		}
		if errors.Is(err, domain.ErrForbidden) {
			return presenter.Forbidden(c, err.Error())
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, record)
}

func (h *Handler) handleDefineEvent(c echo.Context) error {
	ctx := c.Request().Context()

	var event domain.Event
	if err := c.Bind(&event); err != nil {
		return presenter.BadRequest(c, err)
	}
	event.ID = c.Param("id")

	if err := h.gate.DefineEvent(ctx, event); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return presenter.BadRequest(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, event)
}

type syncRequest struct {
	Records []domain.ScanRecord `json:"records"`
}

type syncResponse struct {
	Results []domain.SyncResult `json:"results"`
}

func (h *Handler) handleSync(c echo.Context) error {
	ctx := c.Request().Context()

	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	device, events := requesterDevice(c)
	results, err := h.gate.Sync(ctx, device, events, req.Records)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, syncResponse{Results: results})
}

func (h *Handler) handleScans(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if q := c.QueryParam("limit"); q != "" {
		var err error
		limit, err = strconv.Atoi(q)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit")
		}
	}

	entries, err := h.gate.Scans(ctx, c.Param("id"), limit)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, entries)
}

func (h *Handler) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.gate.Stats(ctx, c.Param("id"))
	if err != nil {
		return presenter.InternalError(c, err)
	}

	ordered := utils.OrderedKVMap[int64]{}
	var total int64
	for i, status := range ticketgate.Statuses {
		ordered[string(status)] = utils.OrderedKV[int64]{Value: counts[status], Order: int64(i)}
		total += counts[status]
	}

	return presenter.OK(c, echo.Map{
		"eventId": c.Param("id"),
		"total":   total,
		"counts":  ordered,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	eventID := c.QueryParam("event")
	if eventID == "" {
		return presenter.BadRequestMessage(c, "event is required")
	}
	if h.stream == nil {
		return presenter.ServiceUnavailable(c, "realtime is not configured")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	entries, closeStream := h.stream.Stream(ctx, eventID)
	defer closeStream()

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			// clients only send heartbeats, reading detects the close
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(entry); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
