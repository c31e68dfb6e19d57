package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/storage"
	"github.com/stevelan1995/dag-runner/pkg/storage/dao"
)

// Repo 基于sqlx的运行历史仓储，通过Dialect适配不同数据库
type Repo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewRepo 创建仓储并初始化表结构
func NewRepo(db *sqlx.DB, dialect storage.Dialect) (*Repo, error) {
	r := &Repo{db: db, dialect: dialect}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return r, nil
}

// initSchema 创建历史记录表（幂等）
func (r *Repo) initSchema() error {
	ts := r.dialect.TimestampType()
	text := r.dialect.TextType()

	runTable := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS dag_run (
		run_id       VARCHAR(64)  NOT NULL,
		dag_id       VARCHAR(255) NOT NULL,
		state        VARCHAR(32)  NOT NULL,
		start_time   %s           NOT NULL,
		end_time     %s,
		duration_ms  BIGINT       NOT NULL DEFAULT 0,
		task_count   INT          NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id)
	)`, ts, ts)

	taskTable := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS task_run (
		run_id      VARCHAR(64)  NOT NULL,
		task_id     VARCHAR(255) NOT NULL,
		state       VARCHAR(32)  NOT NULL,
		attempts    INT          NOT NULL DEFAULT 0,
		output      %s,
		error       %s,
		start_time  %s,
		end_time    %s,
		duration_ms BIGINT       NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, task_id)
	)`, text, text, ts, ts)

	for _, stmt := range []string{runTable, taskTable} {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun 在单个事务内保存DAG运行结果及其所有Task记录
func (r *Repo) SaveRun(ctx context.Context, result *state.DAGResult) error {
	if result == nil {
		return fmt.Errorf("运行结果为空")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	runDAO := toRunDAO(result)
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO dag_run (run_id, dag_id, state, start_time, end_time, duration_ms, task_count, success_rate)
		VALUES (:run_id, :dag_id, :state, :start_time, :end_time, :duration_ms, :task_count, :success_rate)`,
		runDAO); err != nil {
		return fmt.Errorf("写入dag_run失败: %w", err)
	}

	for _, tr := range result.TaskResults {
		taskDAO := toTaskRunDAO(result.RunID, tr)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO task_run (run_id, task_id, state, attempts, output, error, start_time, end_time, duration_ms)
			VALUES (:run_id, :task_id, :state, :attempts, :output, :error, :start_time, :end_time, :duration_ms)`,
			taskDAO); err != nil {
			return fmt.Errorf("写入task_run失败 (task=%s): %w", tr.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// GetRun 按RunID查询运行记录
func (r *Repo) GetRun(ctx context.Context, runID string) (*storage.RunRecord, error) {
	var d dao.RunDAO
	query := r.db.Rebind(`SELECT run_id, dag_id, state, start_time, end_time, duration_ms, task_count, success_rate
		FROM dag_run WHERE run_id = ?`)
	if err := r.db.GetContext(ctx, &d, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRunNotFound
		}
		return nil, fmt.Errorf("查询dag_run失败: %w", err)
	}
	return fromRunDAO(&d), nil
}

// ListRuns 按开始时间倒序列出最近的运行记录
func (r *Repo) ListRuns(ctx context.Context, limit int) ([]*storage.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var daos []dao.RunDAO
	query := r.db.Rebind(`SELECT run_id, dag_id, state, start_time, end_time, duration_ms, task_count, success_rate
		FROM dag_run ORDER BY start_time DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &daos, query, limit); err != nil {
		return nil, fmt.Errorf("查询dag_run列表失败: %w", err)
	}
	records := make([]*storage.RunRecord, 0, len(daos))
	for i := range daos {
		records = append(records, fromRunDAO(&daos[i]))
	}
	return records, nil
}

// ListTaskRuns 列出某次运行的所有Task记录
func (r *Repo) ListTaskRuns(ctx context.Context, runID string) ([]*storage.TaskRunRecord, error) {
	var daos []dao.TaskRunDAO
	query := r.db.Rebind(`SELECT run_id, task_id, state, attempts, output, error, start_time, end_time, duration_ms
		FROM task_run WHERE run_id = ? ORDER BY start_time ASC, task_id ASC`)
	if err := r.db.SelectContext(ctx, &daos, query, runID); err != nil {
		return nil, fmt.Errorf("查询task_run列表失败: %w", err)
	}
	records := make([]*storage.TaskRunRecord, 0, len(daos))
	for i := range daos {
		records = append(records, fromTaskRunDAO(&daos[i]))
	}
	return records, nil
}

// Close 关闭数据库连接
func (r *Repo) Close() error {
	return r.db.Close()
}

func toRunDAO(result *state.DAGResult) *dao.RunDAO {
	d := &dao.RunDAO{
		RunID:     result.RunID,
		DAGID:     result.DAGID,
		State:     string(result.State),
		StartTime: result.StartTime.UTC(),
		TaskCount: len(result.TaskResults),
	}
	if !result.EndTime.IsZero() {
		d.EndTime = sql.NullTime{Time: result.EndTime.UTC(), Valid: true}
		d.DurationMS = result.Duration().Milliseconds()
	}
	d.SuccessRate = result.SuccessRate()
	return d
}

func toTaskRunDAO(runID string, tr *state.TaskResult) *dao.TaskRunDAO {
	d := &dao.TaskRunDAO{
		RunID:    runID,
		TaskID:   tr.TaskID,
		State:    string(tr.State),
		Attempts: tr.Attempts,
	}
	if out := renderOutput(tr.Output); out != "" {
		d.Output = sql.NullString{String: out, Valid: true}
	}
	if tr.Error != "" {
		d.Error = sql.NullString{String: tr.Error, Valid: true}
	}
	if !tr.StartTime.IsZero() {
		d.StartTime = sql.NullTime{Time: tr.StartTime.UTC(), Valid: true}
	}
	if !tr.EndTime.IsZero() {
		d.EndTime = sql.NullTime{Time: tr.EndTime.UTC(), Valid: true}
		d.DurationMS = tr.Duration().Milliseconds()
	}
	return d
}

func fromRunDAO(d *dao.RunDAO) *storage.RunRecord {
	rec := &storage.RunRecord{
		RunID:       d.RunID,
		DAGID:       d.DAGID,
		State:       d.State,
		StartTime:   d.StartTime,
		DurationMS:  d.DurationMS,
		TaskCount:   d.TaskCount,
		SuccessRate: d.SuccessRate,
	}
	if d.EndTime.Valid {
		rec.EndTime = d.EndTime.Time
	}
	return rec
}

func fromTaskRunDAO(d *dao.TaskRunDAO) *storage.TaskRunRecord {
	rec := &storage.TaskRunRecord{
		RunID:      d.RunID,
		TaskID:     d.TaskID,
		State:      d.State,
		Attempts:   d.Attempts,
		DurationMS: d.DurationMS,
	}
	if d.Output.Valid {
		rec.Output = d.Output.String
	}
	if d.Error.Valid {
		rec.Error = d.Error.String
	}
	if d.StartTime.Valid {
		rec.StartTime = d.StartTime.Time
	}
	if d.EndTime.Valid {
		rec.EndTime = d.EndTime.Time
	}
	return rec
}

// renderOutput 将Task输出序列化为可存储的文本
func renderOutput(output interface{}) string {
	if output == nil {
		return ""
	}
	if s, ok := output.(string); ok {
		return s
	}
	if b, err := json.Marshal(output); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", output)
}

var _ storage.RunRepository = (*Repo)(nil)
