package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zoeyai/featuretrack/pkg/vision/cv"
)

// ImageSource 图像序列位置，文件名为 BasePath + Prefix + 补零序号 + FileType
type ImageSource struct {
	BasePath   string `json:"base_path"`
	Prefix     string `json:"prefix"`
	FileType   string `json:"file_type"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	FillWidth  int    `json:"fill_width"`
}

// Region 关键点保留区域
type Region struct {
	Enabled bool `json:"enabled"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
}

// PipelineConfig 流水线配置
type PipelineConfig struct {
	Images ImageSource `json:"images"`

	// BufferSize 同时保留在内存中的帧数
	BufferSize int `json:"buffer_size"`

	Detector   string `json:"detector"`
	Descriptor string `json:"descriptor"`
	// DescriptorClass DES_BINARY / DES_HOG，为空时按描述子推断
	DescriptorClass string `json:"descriptor_class,omitempty"`
	Matcher         string `json:"matcher"`
	Selector        string `json:"selector"`

	Focus Region `json:"focus"`

	// MaxKeypoints 大于 0 时限制每帧关键点数量
	MaxKeypoints int `json:"max_keypoints"`

	// Visualize 是否弹窗显示匹配结果
	Visualize bool `json:"visualize"`
	// VisualizeKeypoints 额外输出每帧检测 (过滤后) 的关键点图
	VisualizeKeypoints bool `json:"visualize_keypoints"`
	// VisualizeDir 非空时把匹配图保存到该目录
	VisualizeDir string `json:"visualize_dir,omitempty"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file,omitempty"`
}

// DefaultPipelineConfig 默认配置：KITTI 前 10 帧，FAST + ORB，暴力匹配 + KNN
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Images: ImageSource{
			BasePath:   "../images/",
			Prefix:     "KITTI/2011_09_26/image_00/data/000000",
			FileType:   ".png",
			StartIndex: 0,
			EndIndex:   9,
			FillWidth:  4,
		},
		BufferSize: 2,
		Detector:   string(cv.DetectorFAST),
		Descriptor: string(cv.DescriptorORB),
		Matcher:    string(cv.MatcherBF),
		Selector:   string(cv.SelectorKNN),
		Focus: Region{
			Enabled: true,
			X:       cv.VehicleRegion.Min.X,
			Y:       cv.VehicleRegion.Min.Y,
			Width:   cv.VehicleRegion.Dx(),
			Height:  cv.VehicleRegion.Dy(),
		},
		MaxKeypoints: 0,
		LogLevel:     "INFO",
	}
}

// Validate 检查配置中的算法名称和数值范围
func (c *PipelineConfig) Validate() error {
	var errs []error

	if _, err := cv.ParseDetector(c.Detector); err != nil {
		errs = append(errs, err)
	}
	if _, err := cv.ParseDescriptor(c.Descriptor); err != nil {
		errs = append(errs, err)
	}
	if _, err := cv.ParseDescriptorClass(c.DescriptorClass); err != nil {
		errs = append(errs, err)
	}
	if _, err := cv.ParseMatcher(c.Matcher); err != nil {
		errs = append(errs, err)
	}
	if _, err := cv.ParseSelector(c.Selector); err != nil {
		errs = append(errs, err)
	}
	if c.BufferSize < 2 {
		errs = append(errs, fmt.Errorf("buffer_size 至少为 2, 实际 %d", c.BufferSize))
	}
	if c.Images.EndIndex < c.Images.StartIndex {
		errs = append(errs, fmt.Errorf("end_index (%d) 小于 start_index (%d)", c.Images.EndIndex, c.Images.StartIndex))
	}
	if c.Images.FillWidth < 0 {
		errs = append(errs, fmt.Errorf("fill_width 不能为负数: %d", c.Images.FillWidth))
	}
	if c.Focus.Enabled && (c.Focus.Width <= 0 || c.Focus.Height <= 0) {
		errs = append(errs, fmt.Errorf("focus 区域尺寸无效: %dx%d", c.Focus.Width, c.Focus.Height))
	}

	return errors.Join(errs...)
}

// Manager 配置管理器
type Manager struct {
	configDir  string
	configFile string
	mu         sync.RWMutex
}

// NewManager 创建配置管理器，配置文件位于 ~/.featuretrack/config.json
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewManagerWithDir(filepath.Join(homeDir, ".featuretrack"))
}

// NewManagerWithDir 使用指定目录创建配置管理器
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, "config.json"),
	}
}

// NewManagerWithFile 直接指定配置文件路径
func NewManagerWithFile(path string) *Manager {
	return &Manager{
		configDir:  filepath.Dir(path),
		configFile: path,
	}
}

func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.configDir, 0755)
}

// Load 加载配置，文件不存在时返回默认配置
//
// 文件中缺省的字段保留默认值。
func (m *Manager) Load() (*PipelineConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(m.configFile)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultPipelineConfig(), fmt.Errorf("解析配置文件失败: %w", err)
	}

	return cfg, nil
}

// Save 保存配置
func (m *Manager) Save(cfg *PipelineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureDir(); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(m.configFile, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Clear 清除配置
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configFile); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(m.configFile)
}

// GetConfigFile 获取配置文件路径
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// Exists 检查配置文件是否存在
func (m *Manager) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := os.Stat(m.configFile)
	return err == nil
}

var defaultManager = NewManager()

// GetDefaultManager 获取默认配置管理器
func GetDefaultManager() *Manager {
	return defaultManager
}
