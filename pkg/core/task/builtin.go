package task

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// RegisterBuiltins 注册内置Job函数（对外导出）
// 供CLI场景和示例配置直接引用，业务方可在此基础上继续注册自定义函数
func RegisterBuiltins(registry *FunctionRegistry) error {
	builtins := map[string]JobFunction{
		"builtin.echo":  builtinEcho,
		"builtin.sleep": builtinSleep,
		"builtin.add":   builtinAdd,
		"builtin.fail":  builtinFail,
		"builtin.env":   builtinEnv,
	}
	for name, fn := range builtins {
		if err := registry.Register(name, fn); err != nil {
			return fmt.Errorf("注册内置函数 %s 失败: %w", name, err)
		}
	}
	return nil
}

// builtinEcho 将所有位置参数拼接后原样返回
func builtinEcho(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return strings.Join(parts, " "), nil
}

// builtinSleep 休眠指定秒数（kwargs: seconds），可被ctx取消
func builtinSleep(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	seconds := 1.0
	if v, ok := kwargs["seconds"]; ok {
		switch n := v.(type) {
		case float64:
			seconds = n
		case int:
			seconds = float64(n)
		default:
			return nil, fmt.Errorf("seconds参数类型错误: %T", v)
		}
	}

	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return fmt.Sprintf("slept %.2fs", seconds), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// builtinAdd 对所有数值型位置参数求和
func builtinAdd(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	sum := 0.0
	for i, arg := range args {
		switch n := arg.(type) {
		case float64:
			sum += n
		case int:
			sum += float64(n)
		default:
			return nil, fmt.Errorf("第%d个参数不是数值: %v", i, arg)
		}
	}
	return sum, nil
}

// builtinFail 始终失败（kwargs: message），用于演示重试与跳过传播
func builtinFail(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	message := "builtin.fail: 故意失败"
	if v, ok := kwargs["message"].(string); ok && v != "" {
		message = v
	}
	return nil, fmt.Errorf("%s", message)
}

// builtinEnv 读取环境变量（kwargs: name）
func builtinEnv(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	name, _ := kwargs["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("name参数不能为空")
	}
	return os.Getenv(name), nil
}
