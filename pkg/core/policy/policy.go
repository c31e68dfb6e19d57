package policy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stevelan1995/dag-runner/pkg/core/executor"
	"github.com/stevelan1995/dag-runner/pkg/core/state"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// TimeoutError 单次尝试超时错误（对外导出）
// 超时的尝试与普通失败一样消耗一个重试名额
type TimeoutError struct {
	TaskID  string
	Timeout time.Duration
	Attempt int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Task %s 第%d次尝试超时（%s）", e.TaskID, e.Attempt, e.Timeout)
}

// 默认退避参数
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// Policy 重试与超时策略（对外导出）
// 以装饰器方式组合任意执行器：对单个Task最多执行 retries+1 次尝试，
// 尝试之间按 base × 2^attemptIndex 指数退避并封顶，
// 每次尝试受Task自身timeout约束
type Policy struct {
	BaseDelay time.Duration // 退避基数
	MaxDelay  time.Duration // 退避上限
}

// Default 创建默认策略（对外导出）：基数1秒，上限60秒
func Default() *Policy {
	return &Policy{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Run 在策略约束下执行Task（对外导出）
// 返回的TaskResult只会是SUCCESS或FAILED：
// 首次无错完成的尝试即SUCCESS，此后不再尝试；预算耗尽则FAILED并携带最后一次错误。
// 超时尝试的部分输出被丢弃；退避等待可被ctx取消打断
func (p *Policy) Run(ctx context.Context, t *task.Task, exec executor.TaskExecutor) *state.TaskResult {
	result := &state.TaskResult{
		TaskID:    t.ID,
		StartTime: time.Now(),
	}

	var lastErr error
	maxAttempts := t.MaxAttempts()

attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		output, err := p.runAttempt(ctx, t, exec, attempt)
		if err == nil {
			result.State = state.StateSuccess
			result.Output = output
			result.EndTime = time.Now()
			log.Printf("✅ [Task执行成功] TaskID=%s, 尝试次数=%d", t.ID, attempt)
			return result
		}

		lastErr = err
		log.Printf("❌ [Task尝试失败] TaskID=%s, 尝试=%d/%d, 错误=%v", t.ID, attempt, maxAttempts, err)

		// 外层ctx已取消时不再重试
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			delay := p.backoffDelay(attempt)
			log.Printf("🔄 [准备重试] TaskID=%s, 延迟=%v", t.ID, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				lastErr = fmt.Errorf("重试等待被取消: %w", ctx.Err())
				break attempts
			}
		}
	}

	result.State = state.StateFailed
	result.Error = lastErr.Error()
	result.EndTime = time.Now()
	return result
}

// runAttempt 执行单次尝试（内部方法）
// 超时错误被转换为TimeoutError，超时尝试的输出被丢弃
func (p *Policy) runAttempt(ctx context.Context, t *task.Task, exec executor.TaskExecutor, attempt int) (interface{}, error) {
	attemptCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	output, err := exec.Execute(attemptCtx, t)
	if err != nil {
		// 以返回的错误本身判断超时：执行器超出deadline后自行失败时，
		// attemptCtx虽已到期，但错误应保留原样而非归类为超时
		if t.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{TaskID: t.ID, Timeout: t.Timeout, Attempt: attempt}
		}
		return nil, err
	}
	return output, nil
}

// backoffDelay 计算第attempt次失败后的退避时长（内部方法）
// base × 2^(attempt-1)，封顶MaxDelay
func (p *Policy) backoffDelay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = DefaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
