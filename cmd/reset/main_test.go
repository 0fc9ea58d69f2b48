package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	resetapp "github.com/a2zsellr/backend/internal/application/reset"
	"github.com/a2zsellr/backend/internal/domain/reset"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

type mockResetService struct {
	mock.Mock
}

func (m *mockResetService) ResetSingleUser(ctx context.Context, id uuid.UUID) *resetapp.ResetResult {
	return m.Called(ctx, id).Get(0).(*resetapp.ResetResult)
}

func (m *mockResetService) ResetAllFreeUsers(ctx context.Context) (*resetapp.BulkResetResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*resetapp.BulkResetResult)
	return r, args.Error(1)
}

func (m *mockResetService) ResetEligibleUsers(ctx context.Context, days int) (*resetapp.BulkResetResult, error) {
	args := m.Called(ctx, days)
	r, _ := args.Get(0).(*resetapp.BulkResetResult)
	return r, args.Error(1)
}

func (m *mockResetService) History(ctx context.Context, id uuid.UUID, f resetapp.HistoryFilter) (*shared.Paginated[resetapp.HistoryResponse], error) {
	args := m.Called(ctx, id, f)
	p, _ := args.Get(0).(*shared.Paginated[resetapp.HistoryResponse])
	return p, args.Error(1)
}

func (m *mockResetService) Policy() reset.Policy {
	return reset.Policy{Interval: 14 * 24 * time.Hour}
}

func execute(t *testing.T, svc resetService, args ...string) (string, bool, error) {
	t.Helper()
	closed := false
	open := func(context.Context, string) (resetService, func(), error) {
		return svc, func() { closed = true }, nil
	}
	root, cleanup := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	cleanup()
	return out.String(), closed, err
}

func TestUserCommand(t *testing.T) {
	svc := new(mockResetService)
	id := uuid.New()
	svc.On("ResetSingleUser", mock.Anything, id).Return(&resetapp.ResetResult{Success: true, ProfileID: id, ProductsDeleted: 3}).Once()

	out, closed, err := execute(t, svc, "user", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"totalProductsDeleted": 3`)
	assert.True(t, closed)

	_, _, err = execute(t, svc, "user", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid profile id")
	svc.AssertExpectations(t)
}

func TestUserCommand_Failure(t *testing.T) {
	svc := new(mockResetService)
	id := uuid.New()
	svc.On("ResetSingleUser", mock.Anything, id).Return(&resetapp.ResetResult{
		ProfileID: id,
		Errors:    []string{"User is not on free tier"},
	}).Once()

	out, _, err := execute(t, svc, "user", id.String())
	assert.ErrorContains(t, err, "User is not on free tier")
	assert.Contains(t, out, `"success": false`)
}

func TestEligibleCommand(t *testing.T) {
	svc := new(mockResetService)
	svc.On("ResetEligibleUsers", mock.Anything, 14).Return(&resetapp.BulkResetResult{Success: true, TotalUsersReset: 2}, nil).Once()
	svc.On("ResetEligibleUsers", mock.Anything, 3).Return(&resetapp.BulkResetResult{Success: true}, nil).Once()
	svc.On("ResetEligibleUsers", mock.Anything, 0).Return(nil, shared.ErrInvalidInput).Once()

	out, _, err := execute(t, svc, "eligible")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalUsersReset": 2`)

	_, _, err = execute(t, svc, "eligible", "--days", "3")
	require.NoError(t, err)

	_, _, err = execute(t, svc, "eligible", "--days", "0")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	svc.AssertExpectations(t)
}

func TestAllCommand(t *testing.T) {
	svc := new(mockResetService)
	svc.On("ResetAllFreeUsers", mock.Anything).Return(nil, errors.New("query failed")).Once()

	_, closed, err := execute(t, svc, "all")
	assert.EqualError(t, err, "query failed")
	assert.True(t, closed)
}

func TestHistoryCommand(t *testing.T) {
	svc := new(mockResetService)
	id := uuid.New()
	page := shared.NewPaginated([]resetapp.HistoryResponse{{ID: uuid.New(), ProfileID: id, ResetType: "manual"}}, 1, 2, 5)
	svc.On("History", mock.Anything, id, resetapp.HistoryFilter{Page: 2, PageSize: 5}).Return(&page, nil).Once()

	out, _, err := execute(t, svc, "history", id.String(), "--page", "2", "--page-size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `"reset_type": "manual"`)
	svc.AssertExpectations(t)
}

func TestOpenFailure(t *testing.T) {
	root, cleanup := newRootCmd(func(context.Context, string) (resetService, func(), error) {
		return nil, nil, errors.New("no database")
	})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"all"})
	err := root.ExecuteContext(context.Background())
	cleanup()
	assert.EqualError(t, err, "no database")
}
