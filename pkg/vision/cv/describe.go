package cv

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// DescribeResult 描述子提取结果
//
// Keypoints 可能少于输入：提取器会丢弃靠近图像边缘、无法计算描述子的点。
// Descriptors 每行对应 Keypoints 中同一下标的点，由调用方负责 Close。
type DescribeResult struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
	Elapsed     time.Duration
}

const (
	briskThreshold    = 30
	briskOctaves      = 3
	briskPatternScale = 1.0
)

type descriptorExtractor interface {
	Compute(src gocv.Mat, mask gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// extraExtractors 按构建标签注册的附加描述子 (如 contrib 构建下的 BRIEF)
var extraExtractors = map[DescriptorType]func() descriptorExtractor{}

// registerExtractor 注册附加描述子并加入 Descriptors
func registerExtractor(d DescriptorType, newFn func() descriptorExtractor) {
	if _, ok := extraExtractors[d]; !ok {
		Descriptors = append(Descriptors, d)
	}
	extraExtractors[d] = newFn
}

// Available 描述子在当前构建中是否可用
func Available(d DescriptorType) bool {
	switch d {
	case DescriptorBRISK, DescriptorORB, DescriptorAKAZE, DescriptorSIFT:
		return true
	}
	_, ok := extraExtractors[d]
	return ok
}

// DescribeKeypoints 为已检测的关键点计算描述子
func DescribeKeypoints(img gocv.Mat, kps []gocv.KeyPoint, descriptor DescriptorType) (*DescribeResult, error) {
	if img.Empty() {
		return nil, fmt.Errorf("图像为空")
	}

	extractor, err := newDescriptorExtractor(descriptor)
	if err != nil {
		return nil, err
	}
	defer extractor.Close()

	if len(kps) == 0 {
		return &DescribeResult{Descriptors: gocv.NewMat()}, nil
	}

	mask := gocv.NewMat()
	defer mask.Close()

	start := time.Now()
	outKps, desc := extractor.Compute(img, mask, kps)
	return &DescribeResult{
		Keypoints:   outKps,
		Descriptors: desc,
		Elapsed:     time.Since(start),
	}, nil
}

func newDescriptorExtractor(descriptor DescriptorType) (descriptorExtractor, error) {
	switch descriptor {
	case DescriptorBRISK:
		e := gocv.NewBRISKWithParams(briskThreshold, briskOctaves, briskPatternScale)
		return &e, nil
	case DescriptorORB:
		e := gocv.NewORB()
		return &e, nil
	case DescriptorAKAZE:
		e := gocv.NewAKAZE()
		return &e, nil
	case DescriptorSIFT:
		e := gocv.NewSIFT()
		return &e, nil
	case DescriptorBRIEF, DescriptorFREAK:
		if newFn, ok := extraExtractors[descriptor]; ok {
			return newFn(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDescriptor, descriptor)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDescriptor, descriptor)
}

// filterByBorder 丢弃距图像边缘不足 border 像素的关键点
//
// 保留 border <= x < cols-border 且 border <= y < rows-border 的点。
func filterByBorder(kps []gocv.KeyPoint, rows, cols, border int) []gocv.KeyPoint {
	return FilterInRegion(kps, image.Rect(border, border, cols-border, rows-border))
}
