package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoeyai/featuretrack/pkg/config"
	"github.com/zoeyai/featuretrack/pkg/vision/cv"
)

// Combination 检测器与描述子组合
type Combination struct {
	Detector   cv.DetectorType
	Descriptor cv.DescriptorType
}

func (c Combination) String() string {
	return fmt.Sprintf("%s+%s", c.Detector, c.Descriptor)
}

// SweepResult 单个组合的运行结果，Err 非空时 Result 为 nil
type SweepResult struct {
	Combination Combination
	Config      *config.PipelineConfig
	Result      *Result
	Err         error

	// Started/Duration 该组合自身的开始时间和耗时
	Started  time.Time
	Duration time.Duration
}

// Combinations 所有可用的检测器 × 描述子组合，跳过不兼容的组合
func Combinations() []Combination {
	var combos []Combination
	for _, det := range cv.Detectors {
		for _, desc := range cv.Descriptors {
			if cv.Compatible(det, desc) != nil {
				continue
			}
			combos = append(combos, Combination{Detector: det, Descriptor: desc})
		}
	}
	return combos
}

// Sweep 依次运行各组合，匹配器与选择策略取自 base
//
// 单个组合失败不会中断其余组合，只有 ctx 取消时提前返回。
// 描述子类别按各组合的描述子重新推断。
func Sweep(ctx context.Context, base *config.PipelineConfig, combos []Combination, opts Options) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(combos))
	for _, c := range combos {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		cfg := *base
		cfg.Detector = string(c.Detector)
		cfg.Descriptor = string(c.Descriptor)
		cfg.DescriptorClass = ""
		cfg.Visualize = false
		cfg.VisualizeKeypoints = false
		cfg.VisualizeDir = ""

		sr := SweepResult{Combination: c, Config: &cfg, Started: time.Now()}
		p, err := New(&cfg, Options{OnFrame: opts.OnFrame, Logger: opts.Logger})
		if err != nil {
			sr.Err = err
			sr.Duration = time.Since(sr.Started)
			results = append(results, sr)
			continue
		}

		sr.Result, sr.Err = p.Run(ctx)
		sr.Duration = time.Since(sr.Started)
		if errors.Is(sr.Err, context.Canceled) || errors.Is(sr.Err, context.DeadlineExceeded) {
			return results, sr.Err
		}
		results = append(results, sr)
	}
	return results, nil
}
