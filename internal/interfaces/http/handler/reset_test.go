package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/scheduler"
	"github.com/a2zsellr/backend/internal/interfaces/http/dto"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memoryFlags struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *memoryFlags) MarkShown(_ context.Context, scope string, level reset.NotificationLevel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := scope + ":" + string(level)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func resetRouter(resets ResetUseCase, flags reset.SessionFlags, opts ...ResetHandlerOption) *gin.Engine {
	r := newEngine()
	h := NewResetHandler(resets, flags, opts...)
	v1 := r.Group("/api/v1", middleware.SupabaseAuth(verifier))
	v1.GET("/profiles/:id/reset-info", h.ResetInfo)
	v1.GET("/profiles/:id/reset-info/stream", h.StreamResetInfo)
	v1.GET("/profiles/:id/reset-history", h.ResetHistory)
	admin := v1.Group("/admin/reset", middleware.RequireAdmin())
	admin.POST("/user/:id", h.ResetUser)
	admin.POST("/all", h.ResetAll)
	admin.POST("/eligible", h.ResetEligible)
	admin.POST("/scheduled", h.RunScheduled)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestResetInfo(t *testing.T) {
	m := new(MockResetUseCase)
	r := resetRouter(m, nil)

	m.On("ResetInfo", mock.Anything, ownerID, "sess-1").Return(&resetapp.ResetInfoResponse{
		ProfileID:        ownerID,
		Tier:             "free",
		Eligible:         true,
		SecondsRemaining: 3600,
		Level:            reset.Level1Hour,
		ShowNotification: true,
	}, nil).Once()

	w := do(r, http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-info?session_id=sess-1", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"level":"1hour"`)
	assert.Contains(t, w.Body.String(), `"show_notification":true`)
	m.AssertExpectations(t)
}

func TestResetInfo_Errors(t *testing.T) {
	m := new(MockResetUseCase)
	r := resetRouter(m, nil)
	m.On("ResetInfo", mock.Anything, otherID, "").Return(nil, shared.ErrNotFound)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   string
	}{
		{"no token", "/api/v1/profiles/" + ownerID.String() + "/reset-info", "", http.StatusUnauthorized, dto.CodeUnauthorized},
		{"bad id", "/api/v1/profiles/nope/reset-info", "owner", http.StatusBadRequest, dto.CodeBadRequest},
		{"someone else's profile", "/api/v1/profiles/" + otherID.String() + "/reset-info", "owner", http.StatusForbidden, dto.CodeForbidden},
		{"missing profile", "/api/v1/profiles/" + otherID.String() + "/reset-info", "admin", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, tt.token, "")
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestResetHistory(t *testing.T) {
	m := new(MockResetUseCase)
	r := resetRouter(m, nil)

	page := shared.NewPaginated([]resetapp.HistoryResponse{{
		ID:              uuid.New(),
		ProfileID:       ownerID,
		ResetType:       "manual",
		ProductsDeleted: 3,
		ListingsDeleted: 1,
		ResetAt:         time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC),
	}}, 21, 2, 20)
	m.On("History", mock.Anything, ownerID, resetapp.HistoryFilter{Page: 2, OrderDir: "asc"}).Return(&page, nil).Once()

	w := do(r, http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-history?page=2&order_dir=asc", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(21), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.Contains(t, w.Body.String(), `"products_deleted":3`)

	w = do(r, http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-history?page_size=500", "owner", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.CodeValidation, decode(t, w).Error.Code)
	m.AssertExpectations(t)
}

func TestAdminResets(t *testing.T) {
	m := new(MockResetUseCase)
	r := resetRouter(m, nil)

	t.Run("owner is not an admin", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/admin/reset/all", "owner", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("single user", func(t *testing.T) {
		m.On("ResetSingleUser", mock.Anything, otherID).Return(&resetapp.ResetResult{
			Success: true, ProfileID: otherID, ProductsDeleted: 3, ListingsDeleted: 1, Errors: []string{},
		}).Once()
		w := do(r, http.MethodPost, "/api/v1/admin/reset/user/"+otherID.String(), "admin", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"totalProductsDeleted":3`)
	})

	t.Run("paid user is reported, not an error", func(t *testing.T) {
		m.On("ResetSingleUser", mock.Anything, ownerID).Return(&resetapp.ResetResult{
			ProfileID: ownerID, Errors: []string{"profile is not eligible for reset"},
		}).Once()
		w := do(r, http.MethodPost, "/api/v1/admin/reset/user/"+ownerID.String(), "admin", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("eligible defaults to the policy interval", func(t *testing.T) {
		m.On("Policy").Return(reset.DefaultPolicy())
		m.On("ResetEligibleUsers", mock.Anything, reset.DefaultIntervalDays).Return(&resetapp.BulkResetResult{Success: true, TotalUsersReset: 2}, nil).Once()
		w := do(r, http.MethodPost, "/api/v1/admin/reset/eligible", "admin", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"totalUsersReset":2`)
	})

	t.Run("eligible with explicit days", func(t *testing.T) {
		m.On("ResetEligibleUsers", mock.Anything, 30).Return(&resetapp.BulkResetResult{Success: true}, nil).Once()
		w := do(r, http.MethodPost, "/api/v1/admin/reset/eligible?days=30", "admin", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("eligible rejects bad days", func(t *testing.T) {
		w := do(r, http.MethodPost, "/api/v1/admin/reset/eligible?days=abc", "admin", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		m.On("ResetEligibleUsers", mock.Anything, -1).Return(nil, shared.NewDomainError("INVALID_INPUT", "days must be a positive number")).Once()
		w = do(r, http.MethodPost, "/api/v1/admin/reset/eligible?days=-1", "admin", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "days must be a positive number")
	})

	t.Run("bulk failure is a 500 without detail", func(t *testing.T) {
		m.On("ResetAllFreeUsers", mock.Anything).Return(nil, errDatabaseDown).Once()
		w := do(r, http.MethodPost, "/api/v1/admin/reset/all", "admin", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "database is down")
	})

	m.AssertExpectations(t)
}

type fakeScheduled struct {
	result     *resetapp.BulkResetResult
	runErr     error
	triggerErr error
	triggered  atomic.Int32
}

func (f *fakeScheduled) RunNow(context.Context) (*resetapp.BulkResetResult, error) {
	return f.result, f.runErr
}

func (f *fakeScheduled) TriggerImmediateRun() error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered.Add(1)
	return nil
}

func TestRunScheduled(t *testing.T) {
	m := new(MockResetUseCase)

	t.Run("no scheduler configured", func(t *testing.T) {
		r := resetRouter(m, nil)
		w := do(r, http.MethodPost, "/api/v1/admin/reset/scheduled", "admin", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("owner is not an admin", func(t *testing.T) {
		f := &fakeScheduled{}
		r := resetRouter(m, nil, WithScheduledResets(f))
		w := do(r, http.MethodPost, "/api/v1/admin/reset/scheduled", "owner", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Zero(t, f.triggered.Load())
	})

	t.Run("starts a background run", func(t *testing.T) {
		f := &fakeScheduled{}
		r := resetRouter(m, nil, WithScheduledResets(f))
		w := do(r, http.MethodPost, "/api/v1/admin/reset/scheduled", "admin", "")
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, int32(1), f.triggered.Load())
	})

	t.Run("wait returns the run result", func(t *testing.T) {
		f := &fakeScheduled{result: &resetapp.BulkResetResult{Success: true, TotalUsersReset: 4}}
		r := resetRouter(m, nil, WithScheduledResets(f))
		w := do(r, http.MethodPost, "/api/v1/admin/reset/scheduled?wait=true", "admin", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"totalUsersReset":4`)
		assert.Zero(t, f.triggered.Load())
	})

	tests := []struct {
		name   string
		sched  *fakeScheduled
		query  string
		status int
		code   string
	}{
		{"run already in progress", &fakeScheduled{triggerErr: scheduler.ErrRunInProgress}, "", http.StatusConflict, "RUN_IN_PROGRESS"},
		{"another instance holds the run", &fakeScheduled{runErr: scheduler.ErrRunInProgress}, "?wait=true", http.StatusConflict, "RUN_IN_PROGRESS"},
		{"scheduler stopped", &fakeScheduled{triggerErr: scheduler.ErrSchedulerNotRunning}, "", http.StatusServiceUnavailable, "SCHEDULER_NOT_RUNNING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resetRouter(m, nil, WithScheduledResets(tt.sched))
			w := do(r, http.MethodPost, "/api/v1/admin/reset/scheduled"+tt.query, "admin", "")
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

// streamSource counts countdown checks and returns a fixed level
type streamSource struct {
	*MockResetUseCase
	profile *profile.Profile
	level   reset.NotificationLevel
	err     error
	calls   atomic.Int32
}

func (s *streamSource) CalculateResetInfo(context.Context, uuid.UUID) (*profile.Profile, reset.ResetInfo, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, reset.ResetInfo{}, s.err
	}
	return s.profile, reset.ResetInfo{Eligible: true, Level: s.level, TimeRemaining: 48 * time.Hour}, nil
}

func streamRequest(ctx context.Context, r http.Handler, session string) (*httptest.ResponseRecorder, <-chan struct{}) {
	path := "/api/v1/profiles/" + ownerID.String() + "/reset-info/stream"
	if session != "" {
		path += "?session_id=" + session
	}
	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer owner")
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()
	return w, done
}

func TestStreamResetInfo_NotifiesOncePerLevel(t *testing.T) {
	p, err := profile.NewProfile("owner@example.com", "Owner")
	require.NoError(t, err)

	m := new(MockResetUseCase)
	m.On("ResetInfo", mock.Anything, ownerID, "").Return(&resetapp.ResetInfoResponse{ProfileID: ownerID, Level: reset.Level3Days}, nil)
	src := &streamSource{MockResetUseCase: m, profile: p, level: reset.Level3Days}
	r := resetRouter(src, &memoryFlags{}, WithWatchInterval(5*time.Millisecond), WithStreamHeartbeat(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	w, done := streamRequest(ctx, r, "sess-1")

	assert.Eventually(t, func() bool { return src.calls.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(body, "event: reset-info"))
	assert.Equal(t, 1, strings.Count(body, `"show_notification":true`))
	assert.Contains(t, body, `"level":"3days"`)
}

func TestStreamResetInfo_EndsWhenProfileIsGone(t *testing.T) {
	m := new(MockResetUseCase)
	m.On("ResetInfo", mock.Anything, ownerID, "").Return(&resetapp.ResetInfoResponse{ProfileID: ownerID, Level: reset.LevelNone}, nil)
	src := &streamSource{MockResetUseCase: m, err: shared.ErrNotFound}
	r := resetRouter(src, &memoryFlags{}, WithWatchInterval(time.Hour))

	w, done := streamRequest(context.Background(), r, "sess-2")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	assert.Contains(t, w.Body.String(), "event: error")
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestStreamResetInfo_RequiresSession(t *testing.T) {
	r := resetRouter(new(MockResetUseCase), &memoryFlags{})
	w := do(r, http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-info/stream", "owner", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = resetRouter(new(MockResetUseCase), nil)
	w = do(r, http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-info/stream?session_id=x", "owner", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// flippingSource reports no warning until flipAt, then the 3days level
type flippingSource struct {
	*MockResetUseCase
	profile *profile.Profile
	flipAt  time.Time
}

func (s *flippingSource) CalculateResetInfo(context.Context, uuid.UUID) (*profile.Profile, reset.ResetInfo, error) {
	info := reset.ResetInfo{Eligible: true, NextResetAt: s.flipAt.Add(72 * time.Hour), Level: reset.LevelNone}
	if !time.Now().Before(s.flipAt) {
		info.Level = reset.Level3Days
	}
	return s.profile, info, nil
}

func TestStreamResetInfo_OutlivesServerWriteTimeout(t *testing.T) {
	p, err := profile.NewProfile("owner@example.com", "Owner")
	require.NoError(t, err)

	m := new(MockResetUseCase)
	m.On("ResetInfo", mock.Anything, ownerID, "").Return(&resetapp.ResetInfoResponse{ProfileID: ownerID, Level: reset.LevelNone}, nil)
	src := &flippingSource{MockResetUseCase: m, profile: p, flipAt: time.Now().Add(600 * time.Millisecond)}
	r := resetRouter(src, &memoryFlags{}, WithWatchInterval(100*time.Millisecond), WithStreamHeartbeat(time.Hour))

	srv := httptest.NewUnstartedServer(r)
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	defer srv.Close()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/v1/profiles/"+ownerID.String()+"/reset-info/stream?session_id=sess-3", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer owner")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	notified := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), `"show_notification":true`) {
			notified = true
			break
		}
	}
	assert.True(t, notified, "warning was not delivered: %v", scanner.Err())
	cancel()
}

// brokenWriter accepts the first write and fails every later one
type brokenWriter struct {
	header http.Header
	writes atomic.Int32
}

func (w *brokenWriter) Header() http.Header { return w.header }
func (w *brokenWriter) WriteHeader(int)     {}
func (w *brokenWriter) Flush()              {}

func (w *brokenWriter) Write(b []byte) (int, error) {
	if w.writes.Add(1) > 1 {
		return 0, errors.New("broken pipe")
	}
	return len(b), nil
}

func TestStreamResetInfo_StopsWhenClientIsGone(t *testing.T) {
	p, err := profile.NewProfile("owner@example.com", "Owner")
	require.NoError(t, err)

	m := new(MockResetUseCase)
	m.On("ResetInfo", mock.Anything, ownerID, "").Return(&resetapp.ResetInfoResponse{ProfileID: ownerID, Level: reset.LevelNone}, nil)
	src := &streamSource{MockResetUseCase: m, profile: p, level: reset.LevelNone}
	r := resetRouter(src, &memoryFlags{}, WithWatchInterval(time.Hour), WithStreamHeartbeat(5*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/"+ownerID.String()+"/reset-info/stream?session_id=sess-4", nil)
	req.Header.Set("Authorization", "Bearer owner")
	w := &brokenWriter{header: http.Header{}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(w, req)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept running after writes failed")
	}
	assert.Equal(t, int32(2), w.writes.Load())
}
