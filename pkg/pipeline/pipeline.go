// Package pipeline 逐帧加载图像序列，检测、描述并匹配相邻帧的关键点
package pipeline

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/zoeyai/featuretrack/internal/logger"
	"github.com/zoeyai/featuretrack/pkg/config"
	"github.com/zoeyai/featuretrack/pkg/vision/cv"
)

// FrameFunc 每帧处理完成后的回调
type FrameFunc func(FrameStats)

// KeypointFunc 关键点经过区域过滤和数量限制后的回调，kps 在回调返回后仍归帧所有
type KeypointFunc func(index int, kps []gocv.KeyPoint)

// Options 流水线的附加选项
type Options struct {
	// OnFrame 每帧处理完成后调用，可为 nil
	OnFrame FrameFunc
	// OnKeypoints 每帧检测完成后调用，可为 nil
	OnKeypoints KeypointFunc
	// Logger 为 nil 时使用默认 logger
	Logger *logger.Logger
	// Viewer 非 nil 时显示每对相邻帧的匹配图
	Viewer *cv.Viewer
}

// Pipeline 特征跟踪流水线
type Pipeline struct {
	cfg      *config.PipelineConfig
	seq      *ImageSequence
	detector cv.DetectorType
	desc     cv.DescriptorType
	match    cv.MatchOptions
	focus    *image.Rectangle
	opts     Options
	log      *logger.Logger
}

// Result 一次运行的结果
type Result struct {
	Frames  []FrameStats
	Sizes   []float64
	Summary Summary
}

// New 校验配置并创建流水线
func New(cfg *config.PipelineConfig, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	// Validate 已检查过名称，这里不会失败
	det, _ := cv.ParseDetector(cfg.Detector)
	desc, _ := cv.ParseDescriptor(cfg.Descriptor)
	matcher, _ := cv.ParseMatcher(cfg.Matcher)
	selector, _ := cv.ParseSelector(cfg.Selector)
	class, _ := cv.ParseDescriptorClass(cfg.DescriptorClass)
	if class == "" {
		class = cv.ClassOf(desc)
	}

	if err := cv.Compatible(det, desc); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		seq:      NewImageSequence(cfg.Images),
		detector: det,
		desc:     desc,
		match: cv.MatchOptions{
			Matcher:  matcher,
			Selector: selector,
			Class:    class,
			Ratio:    cv.DefaultRatio,
		},
		opts: opts,
		log:  opts.Logger,
	}
	if cfg.Focus.Enabled {
		r := image.Rect(cfg.Focus.X, cfg.Focus.Y, cfg.Focus.X+cfg.Focus.Width, cfg.Focus.Y+cfg.Focus.Height)
		p.focus = &r
	}
	if p.log == nil {
		p.log = logger.Default()
	}
	return p, nil
}

// Name 算法组合名称，如 FAST+ORB/MAT_BF/SEL_KNN
func (p *Pipeline) Name() string {
	return fmt.Sprintf("%s+%s/%s/%s", p.detector, p.desc, p.match.Matcher, p.match.Selector)
}

// Run 处理整个图像序列，ctx 在帧之间检查
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	buf := NewFrameBuffer(p.cfg.BufferSize)
	defer buf.Close()

	var stats Stats
	for i := 0; i < p.seq.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fs, sizes, err := p.processFrame(buf, i)
		if err != nil {
			return nil, err
		}
		stats.AddFrame(fs, sizes)
		if p.opts.OnFrame != nil {
			p.opts.OnFrame(fs)
		}
	}

	return &Result{
		Frames:  stats.Frames(),
		Sizes:   stats.Sizes(),
		Summary: stats.Summary(),
	}, nil
}

func (p *Pipeline) processFrame(buf *FrameBuffer, i int) (FrameStats, []float64, error) {
	filename := p.seq.Filename(i)
	index := p.cfg.Images.StartIndex + i

	img, err := cv.ReadImageGray(filename)
	if err != nil {
		p.log.LogStage("LOAD", err, 0, filename)
		return FrameStats{}, nil, err
	}
	buf.Push(NewDataFrame(index, filename, img))
	frame := buf.Current()
	p.log.Debug("#1 : LOAD IMAGE INTO BUFFER done (%d/%d)", buf.Len(), buf.Cap())

	det, err := cv.DetectKeypoints(frame.Image, p.detector)
	if err != nil {
		p.log.LogStage("DET", err, 0, string(p.detector))
		return FrameStats{}, nil, fmt.Errorf("frame %d: %w", index, err)
	}
	frame.DetectTime = det.Elapsed
	p.log.LogStage("DET", nil, det.Elapsed, fmt.Sprintf("%s n=%d", p.detector, len(det.Keypoints)))

	kps := det.Keypoints
	if p.focus != nil {
		kps = cv.FilterInRegion(kps, *p.focus)
	}
	if p.cfg.MaxKeypoints > 0 {
		kps = cv.RetainBest(kps, p.cfg.MaxKeypoints, p.detector == cv.DetectorShiTomasi)
		p.log.Info("NOTE: keypoints have been limited to %d", p.cfg.MaxKeypoints)
	}

	mean, std := cv.SizeStats(kps)
	sizes := make([]float64, len(kps))
	for j, kp := range kps {
		sizes[j] = kp.Size
	}
	frame.Keypoints = kps
	p.log.Debug("#2 : DETECT KEYPOINTS done")

	if p.opts.OnKeypoints != nil {
		p.opts.OnKeypoints(index, kps)
	}
	if err := p.visualizeKeypoints(frame); err != nil {
		return FrameStats{}, nil, err
	}

	desc, err := cv.DescribeKeypoints(frame.Image, frame.Keypoints, p.desc)
	if err != nil {
		p.log.LogStage("DESC", err, 0, string(p.desc))
		return FrameStats{}, nil, fmt.Errorf("frame %d: %w", index, err)
	}
	frame.Keypoints = desc.Keypoints
	frame.SetDescriptors(desc.Descriptors)
	frame.DescribeTime = desc.Elapsed
	p.log.LogStage("DESC", nil, desc.Elapsed, fmt.Sprintf("%s rows=%d", p.desc, frame.Descriptors.Rows()))
	p.log.Debug("#3 : EXTRACT DESCRIPTORS done")

	fs := FrameStats{
		Index:        index,
		Filename:     filename,
		Keypoints:    len(kps),
		MeanSize:     mean,
		SizeStdDev:   std,
		DetectTime:   frame.DetectTime,
		DescribeTime: frame.DescribeTime,
	}

	prev := buf.Previous()
	if prev == nil {
		return fs, sizes, nil
	}

	res, err := cv.MatchDescriptors(prev.Descriptors, frame.Descriptors, p.match)
	if err != nil {
		p.log.LogStage("MAT", err, 0, string(p.match.Matcher))
		return FrameStats{}, nil, fmt.Errorf("frame %d: %w", index, err)
	}
	frame.Matches = res.Matches
	frame.MatchTime = res.Elapsed
	p.log.LogStage("MAT", nil, res.Elapsed, fmt.Sprintf("%s n=%d", p.match.Selector, len(res.Matches)))
	p.log.Debug("#4 : MATCH KEYPOINT DESCRIPTORS done")

	fs.Matched = true
	fs.Matches = len(res.Matches)
	fs.MatchTime = res.Elapsed

	if err := p.visualize(prev, frame); err != nil {
		return FrameStats{}, nil, err
	}
	return fs, sizes, nil
}

// visualizeKeypoints 输出单帧检测结果 (含关键点尺寸与方向)
func (p *Pipeline) visualizeKeypoints(frame *DataFrame) error {
	if !p.cfg.VisualizeKeypoints || (p.opts.Viewer == nil && p.cfg.VisualizeDir == "") {
		return nil
	}

	vis := cv.DrawKeypoints(frame.Image, frame.Keypoints)
	defer vis.Close()

	if p.cfg.VisualizeDir != "" {
		name := fmt.Sprintf("keypoints_%04d.png", frame.Index)
		start := time.Now()
		if err := cv.WriteImage(filepath.Join(p.cfg.VisualizeDir, name), vis); err != nil {
			return err
		}
		p.log.LogStage("VIS", nil, time.Since(start), name)
	}
	if p.opts.Viewer != nil {
		p.log.Info("%s keypoint detection results, press key to continue", p.detector)
		p.opts.Viewer.Show(vis)
	}
	return nil
}

func (p *Pipeline) visualize(prev, curr *DataFrame) error {
	if p.opts.Viewer == nil && p.cfg.VisualizeDir == "" {
		return nil
	}

	vis := cv.DrawMatches(prev.Image, prev.Keypoints, curr.Image, curr.Keypoints, curr.Matches)
	defer vis.Close()

	if p.cfg.VisualizeDir != "" {
		name := fmt.Sprintf("matches_%04d_%04d.png", prev.Index, curr.Index)
		start := time.Now()
		if err := cv.WriteImage(filepath.Join(p.cfg.VisualizeDir, name), vis); err != nil {
			return err
		}
		p.log.LogStage("VIS", nil, time.Since(start), name)
	}
	if p.opts.Viewer != nil {
		p.log.Info("Press key to continue to next image")
		p.opts.Viewer.Show(vis)
	}
	return nil
}
