package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/phargogh/taskgraph/internal/adapters/fingerprint"
	"github.com/phargogh/taskgraph/internal/core/domain"
	"github.com/phargogh/taskgraph/internal/core/ports"
	"github.com/phargogh/taskgraph/internal/core/ports/mocks"
)

func quietMockLogger(ctrl *gomock.Controller) *mocks.MockLogger {
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	return log
}

func TestScheduler_RetryLoopDrivesExecutor(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		exec := mocks.NewMockExecutor(ctrl)
		store := mocks.NewMockMemoStore(ctrl)

		gomock.InOrder(
			exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(ports.Outcome{}, errors.New("flaky")).Times(2),
			exec.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(ports.Outcome{}, nil),
		)

		s := New(exec, store, fingerprint.New(), quietMockLogger(ctrl), 1)

		// Targetless so the memo store is never consulted.
		tsk := domain.NewTask(1, "flaky")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "mock.flaky"}
		tsk.MaxRetries = 2
		tsk.InitRetries()

		require.NoError(t, s.Submit(tsk))
		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.NoError(t, err)
		require.Equal(t, domain.StateSucceeded, tsk.State())
		require.Equal(t, 0, tsk.RetriesRemaining())
	})
}

func TestScheduler_RetryExhaustionFailsTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		exec := mocks.NewMockExecutor(ctrl)
		store := mocks.NewMockMemoStore(ctrl)

		exec.EXPECT().Execute(gomock.Any(), gomock.Any()).
			Return(ports.Outcome{}, errors.New("always broken")).Times(3)

		s := New(exec, store, fingerprint.New(), quietMockLogger(ctrl), 1)

		tsk := domain.NewTask(1, "broken")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "mock.broken"}
		tsk.MaxRetries = 2
		tsk.InitRetries()

		require.NoError(t, s.Submit(tsk))
		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.ErrorContains(t, err, "always broken")
		require.Equal(t, domain.StateFailed, tsk.State())
	})
}

func TestScheduler_StoreLookupErrorFailsTask(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		exec := mocks.NewMockExecutor(ctrl)
		store := mocks.NewMockMemoStore(ctrl)
		store.EXPECT().Lookup(gomock.Any()).Return(nil, errors.New("corrupt store")).AnyTimes()

		s := New(exec, store, fingerprint.New(), quietMockLogger(ctrl), 1)

		// An empty upstream task defers the downstream task's memo check to
		// its dispatch goroutine, exercising the lookup-failure path there.
		dep := domain.NewTask(1, "dep")
		dep.InitRetries()

		tsk := domain.NewTask(2, "child")
		tsk.HasFunc = true
		tsk.Func = domain.FuncID{QualifiedName: "mock.child"}
		tsk.TargetPaths = []string{filepath.Join(t.TempDir(), "out.dat")}
		tsk.Deps = []int64{dep.ID}
		tsk.InitRetries()

		require.NoError(t, s.Submit(dep))
		require.NoError(t, s.Submit(tsk))

		ok, err := s.Join(context.Background())
		require.True(t, ok)
		require.ErrorContains(t, err, "corrupt store")
		require.Equal(t, domain.StateFailed, tsk.State())
	})
}
