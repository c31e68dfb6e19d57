package config

// DAGConfig DAG配置文档（对外导出）
// 对应JSON/YAML配置文件的顶层结构
type DAGConfig struct {
	DAGID         string       `json:"dag_id" yaml:"dag_id"`
	Description   string       `json:"description" yaml:"description"`
	MaxWorkers    int          `json:"max_workers" yaml:"max_workers"`
	ExecutionMode string       `json:"execution_mode" yaml:"execution_mode"`
	Tasks         []TaskConfig `json:"tasks" yaml:"tasks"`
}

// TaskConfig 单个Task的配置（对外导出）
// task_type兼容原配置格式："python"在加载时映射为function类型
type TaskConfig struct {
	TaskID         string                 `json:"task_id" yaml:"task_id"`
	TaskType       string                 `json:"task_type" yaml:"task_type"`
	Function       string                 `json:"function,omitempty" yaml:"function,omitempty"`
	Args           []interface{}          `json:"args,omitempty" yaml:"args,omitempty"`
	Kwargs         map[string]interface{} `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
	Command        string                 `json:"command,omitempty" yaml:"command,omitempty"`
	Retries        int                    `json:"retries,omitempty" yaml:"retries,omitempty"`
	TimeoutSeconds float64                `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Dependencies   []string               `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}
