package cv

import (
	"fmt"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// MatchOptions 匹配配置
type MatchOptions struct {
	Matcher  MatcherType
	Selector SelectorType
	// Class 为空时暴力匹配按 Hamming 距离处理
	Class DescriptorClass
	// Ratio KNN 比率测试阈值，<=0 时使用 DefaultRatio
	Ratio float64
}

// MatchResult 匹配结果，QueryIdx 指向 source，TrainIdx 指向 ref
type MatchResult struct {
	Matches []gocv.DMatch
	Elapsed time.Duration
}

// descriptorMatcher gocv 匹配器的公共方法
type descriptorMatcher interface {
	KnnMatch(query, train gocv.Mat, k int) [][]gocv.DMatch
	Close() error
}

// MatchDescriptors 在两帧描述子之间寻找最佳匹配
func MatchDescriptors(source, ref gocv.Mat, opts MatchOptions) (*MatchResult, error) {
	sel, err := ParseSelector(string(opts.Selector))
	if err != nil {
		return nil, err
	}
	opts.Selector = sel
	class, err := ParseDescriptorClass(string(opts.Class))
	if err != nil {
		return nil, err
	}
	if class == "" {
		class = DescriptorBinary
	}

	switch MatcherType(strings.ToUpper(string(opts.Matcher))) {
	case MatcherBF:
		norm := gocv.NormL2
		if class == DescriptorBinary {
			norm = gocv.NormHamming
		}
		bf := gocv.NewBFMatcherWithParams(norm, false)
		defer bf.Close()
		if source.Empty() || ref.Empty() {
			return &MatchResult{}, nil
		}
		// Hamming 距离只适用于 CV_8U，OpenCV 出错时只会返回空结果
		if norm == gocv.NormHamming && (source.Type() != gocv.MatTypeCV8U || ref.Type() != gocv.MatTypeCV8U) {
			return nil, fmt.Errorf("%w: %s with %v descriptors", ErrClassMismatch, class, source.Type())
		}
		return runMatch(&bf, source, ref, opts)

	case MatcherFLANN:
		flann := gocv.NewFlannBasedMatcher()
		defer flann.Close()
		if source.Empty() || ref.Empty() {
			return &MatchResult{}, nil
		}
		// FLANN 只接受 CV_32F 描述子
		src32 := toFloat32(source)
		ref32 := toFloat32(ref)
		defer src32.Close()
		defer ref32.Close()
		return runMatch(&flann, src32, ref32, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMatcher, opts.Matcher)
}

func runMatch(m descriptorMatcher, source, ref gocv.Mat, opts MatchOptions) (*MatchResult, error) {
	start := time.Now()

	var matches []gocv.DMatch
	switch opts.Selector {
	case SelectorNN:
		matches = nearest(m.KnnMatch(source, ref, 1))
	case SelectorKNN:
		ratio := opts.Ratio
		if ratio <= 0 {
			ratio = DefaultRatio
		}
		matches = ratioTest(m.KnnMatch(source, ref, 2), ratio)
	}

	return &MatchResult{Matches: matches, Elapsed: time.Since(start)}, nil
}

// nearest 取每个描述子的最近邻
func nearest(knn [][]gocv.DMatch) []gocv.DMatch {
	matches := make([]gocv.DMatch, 0, len(knn))
	for _, neighbors := range knn {
		if len(neighbors) > 0 {
			matches = append(matches, neighbors[0])
		}
	}
	return matches
}

// ratioTest 保留最近距离明显小于次近距离的匹配，只有一个近邻时直接保留
func ratioTest(knn [][]gocv.DMatch, ratio float64) []gocv.DMatch {
	matches := make([]gocv.DMatch, 0, len(knn))
	for _, neighbors := range knn {
		switch {
		case len(neighbors) == 0:
			continue
		case len(neighbors) < 2 || neighbors[0].Distance < ratio*neighbors[1].Distance:
			matches = append(matches, neighbors[0])
		}
	}
	return matches
}

func toFloat32(src gocv.Mat) gocv.Mat {
	if src.Type() == gocv.MatTypeCV32F {
		return src.Clone()
	}
	dst := gocv.NewMat()
	src.ConvertTo(&dst, gocv.MatTypeCV32F)
	return dst
}
