package sqldb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/storage"
)

func newTestRepo(t *testing.T) storage.RunRepository {
	t.Helper()
	repo, err := Open(Options{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "打开SQLite存储失败")
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleResult(runID string) *state.DAGResult {
	start := time.Now().Add(-time.Minute)
	result := state.NewDAGResult(runID, "etl-pipeline")
	result.State = state.DAGStateFailed
	result.StartTime = start
	result.EndTime = start.Add(30 * time.Second)

	result.AddTaskResult(&state.TaskResult{
		TaskID:    "extract",
		State:     state.StateSuccess,
		Output:    "42 rows",
		Attempts:  1,
		StartTime: start,
		EndTime:   start.Add(10 * time.Second),
	})
	result.AddTaskResult(&state.TaskResult{
		TaskID:    "transform",
		State:     state.StateFailed,
		Error:     "模拟失败",
		Attempts:  3,
		StartTime: start.Add(10 * time.Second),
		EndTime:   start.Add(25 * time.Second),
	})
	result.AddTaskResult(&state.TaskResult{
		TaskID:   "load",
		State:    state.StateSkipped,
		Error:    "上游Task失败或被跳过",
		Attempts: 0,
	})
	return result
}

func TestRepo_SaveAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, sampleResult("run-1")), "保存运行结果失败")

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "etl-pipeline", run.DAGID)
	assert.Equal(t, string(state.DAGStateFailed), run.State)
	assert.Equal(t, 3, run.TaskCount)
	assert.Equal(t, int64(30000), run.DurationMS)
	assert.InDelta(t, 1.0/3.0, run.SuccessRate, 0.01)
}

func TestRepo_GetRun_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestRepo_ListRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		result := sampleResult(id)
		require.NoError(t, repo.SaveRun(ctx, result))
	}

	records, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	all, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepo_ListTaskRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, sampleResult("run-1")))

	tasks, err := repo.ListTaskRuns(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	byID := map[string]*storage.TaskRunRecord{}
	for _, tr := range tasks {
		byID[tr.TaskID] = tr
	}

	assert.Equal(t, string(state.StateSuccess), byID["extract"].State)
	assert.Equal(t, "42 rows", byID["extract"].Output)
	assert.Equal(t, int64(10000), byID["extract"].DurationMS)

	assert.Equal(t, string(state.StateFailed), byID["transform"].State)
	assert.Equal(t, 3, byID["transform"].Attempts)
	assert.Equal(t, "模拟失败", byID["transform"].Error)

	assert.Equal(t, string(state.StateSkipped), byID["load"].State)
	assert.Zero(t, byID["load"].Attempts)
	assert.True(t, byID["load"].StartTime.IsZero(), "SKIPPED且无时间戳的Task应保持零值")
}

func TestRepo_DuplicateRunID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, sampleResult("run-1")))
	assert.Error(t, repo.SaveRun(ctx, sampleResult("run-1")), "重复RunID应违反主键约束")
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(Options{Type: "oracle", DSN: "x"})
	assert.Error(t, err)
}
