package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevelan1995/dag-runner/pkg/core/dag"
	"github.com/stevelan1995/dag-runner/pkg/core/task"
)

// Load 从配置文件加载DAG（对外导出）
// 按扩展名分发：.json使用JSON解析，.yaml/.yml使用YAML解析
func Load(path string) (*dag.DAG, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(cfg)
}

// ReadFile 读取并反序列化配置文件，不做DAG构建（对外导出）
// 供需要访问原始配置的调用方使用（如函数注册校验）
func ReadFile(path string) (*DAGConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg DAGConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析JSON配置失败: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析YAML配置失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s（支持.json/.yaml/.yml）", path)
	}
	return &cfg, nil
}

// LoadJSON 从JSON文档加载DAG（对外导出）
func LoadJSON(data []byte) (*dag.DAG, error) {
	var cfg DAGConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析JSON配置失败: %w", err)
	}
	return Parse(&cfg)
}

// LoadYAML 从YAML文档加载DAG（对外导出）
func LoadYAML(data []byte) (*dag.DAG, error) {
	var cfg DAGConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析YAML配置失败: %w", err)
	}
	return Parse(&cfg)
}

// Parse 将配置文档解析为DAG（对外导出）
// 仅做字段级校验与类型映射；图结构校验（循环/依赖缺失）由dag.Validate负责
func Parse(cfg *DAGConfig) (*dag.DAG, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	d := dag.New(cfg.DAGID)
	d.Description = cfg.Description
	if cfg.MaxWorkers > 0 {
		d.MaxWorkers = cfg.MaxWorkers
	}
	if cfg.ExecutionMode != "" {
		d.ExecutionMode = cfg.ExecutionMode
	}

	for i := range cfg.Tasks {
		t, err := parseTask(&cfg.Tasks[i])
		if err != nil {
			return nil, err
		}
		if err := d.AddTask(t); err != nil {
			return nil, err
		}
	}

	log.Printf("📋 [配置加载完成] DAGID=%s, Tasks=%d", cfg.DAGID, len(cfg.Tasks))
	return d, nil
}

// parseTask 将Task配置解析为Task实例（内部方法）
func parseTask(tc *TaskConfig) (*task.Task, error) {
	t := &task.Task{
		ID:           tc.TaskID,
		Type:         normalizeTaskType(tc.TaskType),
		FuncName:     tc.Function,
		Args:         tc.Args,
		Kwargs:       tc.Kwargs,
		Command:      tc.Command,
		Retries:      tc.Retries,
		Dependencies: tc.Dependencies,
	}
	if tc.TimeoutSeconds > 0 {
		t.Timeout = time.Duration(tc.TimeoutSeconds * float64(time.Second))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// normalizeTaskType 归一化Task类型（内部方法）
// 原配置格式中的"python"映射为function类型
func normalizeTaskType(taskType string) string {
	switch strings.ToLower(taskType) {
	case "python", task.TypeFunction:
		return task.TypeFunction
	case "shell":
		return task.TypeShell
	default:
		return taskType
	}
}
