package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// JobFunction 可注册的Job函数类型（对外导出）
// args: 位置参数; kwargs: 关键字参数
// ctx携带单次尝试的超时deadline，耗时较长的函数应当响应ctx取消
type JobFunction func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// FunctionRegistry Job函数注册中心（对外导出）
// 以函数名为键的查找表，在启动阶段注册，运行期间只读查询。
// 取代按点分路径动态加载函数的方式：核心只做查表，不做任何反射式查找
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]JobFunction
}

// NewFunctionRegistry 创建函数注册中心（对外导出）
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]JobFunction),
	}
}

// Register 注册Job函数（对外导出）
// name: 函数名称（唯一标识，不能为空）
func (r *FunctionRegistry) Register(name string, fn JobFunction) error {
	if name == "" {
		return fmt.Errorf("函数名称不能为空")
	}
	if fn == nil {
		return fmt.Errorf("函数 %s 不能为nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("函数 %s 已注册", name)
	}
	r.functions[name] = fn
	return nil
}

// Get 根据函数名获取Job函数（对外导出）
// 未注册时返回nil
func (r *FunctionRegistry) Get(name string) JobFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions[name]
}

// Exists 检查函数是否已注册（对外导出）
func (r *FunctionRegistry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.functions[name]
	return exists
}

// Unregister 注销函数（对外导出）
func (r *FunctionRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.functions, name)
}

// Names 列出所有已注册的函数名（对外导出，按字典序）
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
