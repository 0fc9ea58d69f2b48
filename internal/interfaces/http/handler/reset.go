package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/interfaces/http/dto"
)

const (
	defaultStreamHeartbeat = 30 * time.Second
	eventResetInfo         = "reset-info"
)

// ResetUseCase is what the reset endpoints need from the reset service
type ResetUseCase interface {
	resetapp.InfoSource
	ResetSingleUser(ctx context.Context, profileID uuid.UUID) *resetapp.ResetResult
	ResetAllFreeUsers(ctx context.Context) (*resetapp.BulkResetResult, error)
	ResetEligibleUsers(ctx context.Context, days int) (*resetapp.BulkResetResult, error)
	History(ctx context.Context, profileID uuid.UUID, filter resetapp.HistoryFilter) (*shared.Paginated[resetapp.HistoryResponse], error)
	ResetInfo(ctx context.Context, profileID uuid.UUID, sessionID string) (*resetapp.ResetInfoResponse, error)
	Policy() reset.Policy
}

// ScheduledResets runs the scheduled reset pass on demand
type ScheduledResets interface {
	RunNow(ctx context.Context) (*resetapp.BulkResetResult, error)
	TriggerImmediateRun() error
}

// ResetHandler serves the reset countdown, reset history and the admin
// reset triggers
type ResetHandler struct {
	BaseHandler
	resets    ResetUseCase
	scheduled ScheduledResets
	flags     reset.SessionFlags
	interval  time.Duration
	heartbeat time.Duration
}

// ResetHandlerOption configures a ResetHandler
type ResetHandlerOption func(*ResetHandler)

// WithWatchInterval overrides how often a stream re-checks the countdown
func WithWatchInterval(d time.Duration) ResetHandlerOption {
	return func(h *ResetHandler) { h.interval = d }
}

// WithStreamHeartbeat overrides the keep-alive interval of the stream
func WithStreamHeartbeat(d time.Duration) ResetHandlerOption {
	return func(h *ResetHandler) { h.heartbeat = d }
}

// WithScheduledResets enables POST /admin/reset/scheduled
func WithScheduledResets(s ScheduledResets) ResetHandlerOption {
	return func(h *ResetHandler) { h.scheduled = s }
}

// NewResetHandler creates a ResetHandler. flags backs the once-per-session
// notification state of the stream endpoint.
func NewResetHandler(resets ResetUseCase, flags reset.SessionFlags, opts ...ResetHandlerOption) *ResetHandler {
	h := &ResetHandler{
		resets:    resets,
		flags:     flags,
		interval:  resetapp.DefaultWatchInterval,
		heartbeat: defaultStreamHeartbeat,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ResetInfo godoc
// @ID           getProfileResetInfo
// @Summary      Get the reset countdown of a profile
// @Description  Countdown to the next free-tier reset with content usage and the last reset. With session_id, show_notification is true the first time the session reaches a level.
// @Tags         reset
// @Produce      json
// @Param        id          path   string  true   "Profile ID"  format(uuid)
// @Param        session_id  query  string  false  "Browser session ID"
// @Success      200  {object}  dto.Response{data=resetapp.ResetInfoResponse}
// @Failure      403  {object}  dto.Response
// @Failure      404  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/profiles/{id}/reset-info [get]
func (h *ResetHandler) ResetInfo(c *gin.Context) {
	id, ok := h.profileParam(c)
	if !ok {
		return
	}
	info, err := h.resets.ResetInfo(c.Request.Context(), id, c.Query("session_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, info)
}

// ResetHistory godoc
// @ID           listProfileResetHistory
// @Summary      List the resets of a profile
// @Tags         reset
// @Produce      json
// @Param        id         path   string  true   "Profile ID"  format(uuid)
// @Param        page       query  int     false  "Page number"
// @Param        page_size  query  int     false  "Page size, at most 100"
// @Param        order_by   query  string  false  "reset_at, reset_type or products_deleted"
// @Param        order_dir  query  string  false  "asc or desc"
// @Success      200  {object}  dto.Response{data=[]resetapp.HistoryResponse}
// @Failure      400  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/profiles/{id}/reset-history [get]
func (h *ResetHandler) ResetHistory(c *gin.Context) {
	id, ok := h.profileParam(c)
	if !ok {
		return
	}
	var filter resetapp.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.resets.History(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

// StreamResetInfo godoc
// @ID           streamProfileResetInfo
// @Summary      Stream reset notifications
// @Description  Server-sent events. Sends the countdown once on connect, then a reset-info event each time a new notification level should be shown to the session.
// @Tags         reset
// @Produce      text/event-stream
// @Param        id          path   string  true  "Profile ID"  format(uuid)
// @Param        session_id  query  string  true  "Browser session ID"
// @Success      200  {string}  string  "event stream"
// @Failure      400  {object}  dto.Response
// @Failure      503  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/profiles/{id}/reset-info/stream [get]
func (h *ResetHandler) StreamResetInfo(c *gin.Context) {
	id, ok := h.profileParam(c)
	if !ok {
		return
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		h.BadRequest(c, "session_id is required")
		return
	}
	if h.flags == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.CodeUnavailable, "Notification stream is not available")
		return
	}

	ctx := c.Request.Context()
	initial, err := h.resets.ResetInfo(ctx, id, "")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	log := logger.L(ctx)
	// the stream outlives the server's write timeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("Failed to clear stream write deadline", zap.Error(err))
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	if !emit(c, eventResetInfo, initial) {
		return
	}

	updates := make(chan *resetapp.ResetInfoResponse, 1)
	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		w := resetapp.NewWatcher(resetapp.WatcherConfig{
			Source:    h.resets,
			ProfileID: id,
			Tracker:   reset.NewNotificationTracker(sessionID, id, h.flags),
			Interval:  h.interval,
			Logger:    log,
			Notify: func(ctx context.Context, info *resetapp.ResetInfoResponse) {
				select {
				case updates <- info:
				case <-ctx.Done():
				}
			},
		})
		done <- w.Run(watchCtx)
	}()
	finished := false
	defer func() {
		cancel()
		if !finished {
			<-done
		}
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-done:
			// Run only stops early when the profile is gone
			finished = true
			if err != nil {
				emit(c, "error", dto.NewErrorResponse(shared.CodeOf(err), err.Error(), ""))
			}
			return
		case info := <-updates:
			if !emit(c, eventResetInfo, info) {
				log.Debug("Reset stream client went away", zap.String("profile_id", id.String()))
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": keep-alive\n\n"); err != nil {
				log.Debug("Reset stream client went away", zap.String("profile_id", id.String()))
				return
			}
			c.Writer.Flush()
		}
	}
}

// emit writes one event and flushes it. It reports false once the client
// can no longer be written to.
func emit(c *gin.Context, event string, data any) bool {
	if err := writeEvent(c.Writer, event, data); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// ResetUser godoc
// @ID           adminResetUser
// @Summary      Reset one free-tier profile
// @Description  Wipes the profile's products, listings and gallery. Paid profiles are reported as not eligible in the result.
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Profile ID"  format(uuid)
// @Success      200  {object}  dto.Response{data=resetapp.ResetResult}
// @Failure      400  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/admin/reset/user/{id} [post]
func (h *ResetHandler) ResetUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return
	}
	result := h.resets.ResetSingleUser(c.Request.Context(), id)
	logger.L(c.Request.Context()).Info("Admin reset of profile",
		zap.String("profile_id", id.String()),
		zap.Bool("success", result.Success))
	h.Success(c, result)
}

// ResetAll godoc
// @ID           adminResetAll
// @Summary      Reset every free-tier profile
// @Tags         admin
// @Produce      json
// @Success      200  {object}  dto.Response{data=resetapp.BulkResetResult}
// @Failure      403  {object}  dto.Response
// @Failure      500  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/admin/reset/all [post]
func (h *ResetHandler) ResetAll(c *gin.Context) {
	result, err := h.resets.ResetAllFreeUsers(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ResetEligible godoc
// @ID           adminResetEligible
// @Summary      Reset free-tier profiles due for a reset
// @Description  Resets free profiles never reset or last reset more than days days ago. days defaults to the configured interval.
// @Tags         admin
// @Produce      json
// @Param        days  query  int  false  "Age cutoff in days"
// @Success      200  {object}  dto.Response{data=resetapp.BulkResetResult}
// @Failure      400  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/admin/reset/eligible [post]
func (h *ResetHandler) ResetEligible(c *gin.Context) {
	days, ok := h.intQuery(c, "days", int(h.resets.Policy().Interval/(24*time.Hour)))
	if !ok {
		return
	}
	result, err := h.resets.ResetEligibleUsers(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RunScheduled godoc
// @ID           adminRunScheduledReset
// @Summary      Start the scheduled reset pass now
// @Description  Starts the daily pass in the background and answers 202. With wait=true the pass runs within the request and its result is returned.
// @Tags         admin
// @Produce      json
// @Param        wait  query  bool  false  "Wait for the pass to finish"
// @Success      200  {object}  dto.Response{data=resetapp.BulkResetResult}
// @Success      202  {object}  dto.Response
// @Failure      403  {object}  dto.Response
// @Failure      409  {object}  dto.Response
// @Failure      503  {object}  dto.Response
// @Security     BearerAuth
// @Router       /v1/admin/reset/scheduled [post]
func (h *ResetHandler) RunScheduled(c *gin.Context) {
	if h.scheduled == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.CodeUnavailable, "Reset scheduler is not available")
		return
	}
	log := logger.L(c.Request.Context())

	if c.Query("wait") == "true" {
		result, err := h.scheduled.RunNow(c.Request.Context())
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, result)
		return
	}

	if err := h.scheduled.TriggerImmediateRun(); err != nil {
		h.HandleError(c, err)
		return
	}
	log.Info("Scheduled reset triggered by admin")
	c.JSON(http.StatusAccepted, dto.Response{Success: true, Data: gin.H{"message": "scheduled reset started"}})
}
