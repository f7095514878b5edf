package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zoeyai/featuretrack/pkg/config"
	"github.com/zoeyai/featuretrack/pkg/pipeline"
	"github.com/zoeyai/featuretrack/pkg/process"
)

// RunRecord 一次运行的完整记录，用于 JSON 导出和数据库存档
type RunRecord struct {
	Name      string                 `json:"name"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration_ns"`
	Config    *config.PipelineConfig `json:"config"`
	Summary   pipeline.Summary       `json:"summary"`
	Frames    []pipeline.FrameStats  `json:"frames"`
	Host      *process.Snapshot      `json:"host,omitempty"`
}

// NewRunRecord 由流水线结果构造运行记录，host 可为 nil
func NewRunRecord(name string, cfg *config.PipelineConfig, res *pipeline.Result, started time.Time, host *process.Snapshot) *RunRecord {
	return &RunRecord{
		Name:      name,
		StartedAt: started,
		Duration:  time.Since(started),
		Config:    cfg,
		Summary:   res.Summary,
		Frames:    res.Frames,
		Host:      host,
	}
}

// WriteJSON 把运行记录写入 JSON 文件
func WriteJSON(path string, records ...*RunRecord) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}

	var v interface{} = records
	if len(records) == 1 {
		v = records[0]
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化运行记录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入 JSON 文件失败: %w", err)
	}
	return nil
}

// ReadJSON 读取 WriteJSON 写入的单条运行记录
func ReadJSON(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 JSON 文件失败: %w", err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("解析 JSON 文件失败: %w", err)
	}
	return &rec, nil
}
