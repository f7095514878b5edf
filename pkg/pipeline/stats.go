package pipeline

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameStats 单帧统计
type FrameStats struct {
	Index        int           `json:"index"`
	Filename     string        `json:"filename"`
	Keypoints    int           `json:"keypoints"`
	MeanSize     float64       `json:"mean_size"`
	SizeStdDev   float64       `json:"size_std_dev"`
	DetectTime   time.Duration `json:"detect_time_ns"`
	DescribeTime time.Duration `json:"describe_time_ns"`
	// Matched 第一帧没有可匹配的上一帧
	Matched   bool          `json:"matched"`
	Matches   int           `json:"matches"`
	MatchTime time.Duration `json:"match_time_ns"`
}

// Summary 整个序列的平均统计
type Summary struct {
	Frames int `json:"frames"`
	// AvgKeypoints 每帧平均关键点数 (整除)
	AvgKeypoints  int     `json:"avg_keypoints"`
	AvgSize       float64 `json:"avg_size"`
	AvgSizeStdDev float64 `json:"avg_size_std_dev"`
	// AvgMatches 每对相邻帧的平均匹配数 (整除)，不足两帧时为 0
	AvgMatches     int     `json:"avg_matches"`
	AvgDetectMs    float64 `json:"avg_detect_ms"`
	AvgDescribeMs  float64 `json:"avg_describe_ms"`
	AvgProcessMs   float64 `json:"avg_process_ms"`
	TotalKeypoints int     `json:"total_keypoints"`
	TotalMatches   int     `json:"total_matches"`
}

// Stats 累积逐帧统计
type Stats struct {
	frames []FrameStats
	sizes  []float64
}

// AddFrame 追加一帧统计，sizes 为该帧保留下来的关键点尺寸
func (s *Stats) AddFrame(fs FrameStats, sizes []float64) {
	s.frames = append(s.frames, fs)
	s.sizes = append(s.sizes, sizes...)
}

// Frames 已记录的逐帧统计
func (s *Stats) Frames() []FrameStats {
	return s.frames
}

// Sizes 所有帧的关键点尺寸
func (s *Stats) Sizes() []float64 {
	return s.sizes
}

// Summary 计算平均值
func (s *Stats) Summary() Summary {
	n := len(s.frames)
	if n == 0 {
		return Summary{}
	}

	var (
		totalKps, totalMatches int

		means      = make([]float64, n)
		stds       = make([]float64, n)
		detectMs   = make([]float64, n)
		describeMs = make([]float64, n)
	)
	for i, f := range s.frames {
		totalKps += f.Keypoints
		totalMatches += f.Matches
		means[i] = f.MeanSize
		stds[i] = f.SizeStdDev
		detectMs[i] = durationMs(f.DetectTime)
		describeMs[i] = durationMs(f.DescribeTime)
	}

	sum := Summary{
		Frames:         n,
		AvgKeypoints:   totalKps / n,
		AvgSize:        stat.Mean(means, nil),
		AvgSizeStdDev:  stat.Mean(stds, nil),
		AvgDetectMs:    stat.Mean(detectMs, nil),
		AvgDescribeMs:  stat.Mean(describeMs, nil),
		TotalKeypoints: totalKps,
		TotalMatches:   totalMatches,
	}
	if n >= 2 {
		sum.AvgMatches = totalMatches / (n - 1)
	}
	sum.AvgProcessMs = sum.AvgDetectMs + sum.AvgDescribeMs
	return sum
}

func durationMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
