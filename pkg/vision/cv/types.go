package cv

import (
	"errors"
	"fmt"
	"strings"
)

// DetectorType 关键点检测器名称
type DetectorType string

const (
	DetectorShiTomasi DetectorType = "SHITOMASI"
	DetectorHarris    DetectorType = "HARRIS"
	DetectorFAST      DetectorType = "FAST"
	DetectorBRISK     DetectorType = "BRISK"
	DetectorORB       DetectorType = "ORB"
	DetectorAKAZE     DetectorType = "AKAZE"
	DetectorSIFT      DetectorType = "SIFT"
)

// Detectors 支持的检测器，顺序即 sweep 的遍历顺序
var Detectors = []DetectorType{
	DetectorShiTomasi,
	DetectorHarris,
	DetectorFAST,
	DetectorBRISK,
	DetectorORB,
	DetectorAKAZE,
	DetectorSIFT,
}

// DescriptorType 描述子提取器名称
type DescriptorType string

const (
	DescriptorBRISK DescriptorType = "BRISK"
	DescriptorBRIEF DescriptorType = "BRIEF"
	DescriptorORB   DescriptorType = "ORB"
	DescriptorFREAK DescriptorType = "FREAK"
	DescriptorAKAZE DescriptorType = "AKAZE"
	DescriptorSIFT  DescriptorType = "SIFT"
)

// Descriptors 可用的描述子
//
// BRIEF 只在以 contrib 标签构建时注册；FREAK 在 gocv 中没有绑定。
var Descriptors = []DescriptorType{
	DescriptorBRISK,
	DescriptorORB,
	DescriptorAKAZE,
	DescriptorSIFT,
}

// DescriptorClass 描述子类别，决定暴力匹配使用的距离
type DescriptorClass string

const (
	// DescriptorBinary 二进制描述子，使用 Hamming 距离
	DescriptorBinary DescriptorClass = "DES_BINARY"
	// DescriptorHOG 梯度直方图类描述子，使用 L2 距离
	DescriptorHOG DescriptorClass = "DES_HOG"
)

// MatcherType 匹配器名称
type MatcherType string

const (
	MatcherBF    MatcherType = "MAT_BF"
	MatcherFLANN MatcherType = "MAT_FLANN"
)

// SelectorType 匹配选择策略
type SelectorType string

const (
	// SelectorNN 每个描述子取最近邻
	SelectorNN SelectorType = "SEL_NN"
	// SelectorKNN k=2 最近邻并做比率测试
	SelectorKNN SelectorType = "SEL_KNN"
)

// DefaultRatio KNN 比率测试阈值
const DefaultRatio = 0.8

var (
	ErrUnknownDetector        = errors.New("unknown detector type")
	ErrUnknownDescriptor      = errors.New("unknown descriptor type")
	ErrUnsupportedDescriptor  = errors.New("descriptor not available in gocv")
	ErrUnknownDescriptorClass = errors.New("unknown descriptor class")
	ErrUnknownMatcher         = errors.New("unknown matcher type")
	ErrUnknownSelector        = errors.New("unknown selector type")
	ErrIncompatible           = errors.New("incompatible detector/descriptor pair")
	ErrClassMismatch          = errors.New("descriptor class does not match descriptor type")
)

// ParseDetector 解析检测器名称 (不区分大小写)
func ParseDetector(s string) (DetectorType, error) {
	d := DetectorType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Detectors {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDetector, s)
}

// ParseDescriptor 解析描述子名称，当前构建不可用的 BRIEF/FREAK 返回 ErrUnsupportedDescriptor
func ParseDescriptor(s string) (DescriptorType, error) {
	d := DescriptorType(strings.ToUpper(strings.TrimSpace(s)))
	if Available(d) {
		return d, nil
	}
	switch d {
	case DescriptorBRIEF, DescriptorFREAK:
		return d, fmt.Errorf("%w: %s", ErrUnsupportedDescriptor, d)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDescriptor, s)
}

// ParseDescriptorClass 解析描述子类别，空字符串表示按描述子自动推断
func ParseDescriptorClass(s string) (DescriptorClass, error) {
	c := DescriptorClass(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "", DescriptorBinary, DescriptorHOG:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDescriptorClass, s)
}

// ParseMatcher 解析匹配器名称
func ParseMatcher(s string) (MatcherType, error) {
	m := MatcherType(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MatcherBF, MatcherFLANN:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatcher, s)
}

// ParseSelector 解析选择策略
func ParseSelector(s string) (SelectorType, error) {
	sel := SelectorType(strings.ToUpper(strings.TrimSpace(s)))
	switch sel {
	case SelectorNN, SelectorKNN:
		return sel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSelector, s)
}

// ClassOf 返回描述子对应的类别，SIFT 为 DES_HOG，其余为二进制
func ClassOf(d DescriptorType) DescriptorClass {
	if d == DescriptorSIFT {
		return DescriptorHOG
	}
	return DescriptorBinary
}

// Compatible 检查检测器与描述子能否组合使用
//
// AKAZE 描述子依赖 AKAZE 关键点中的 class_id/octave 信息；
// ORB 描述子无法处理 SIFT 关键点的 octave 编码。
func Compatible(det DetectorType, desc DescriptorType) error {
	switch {
	case desc == DescriptorAKAZE && det != DetectorAKAZE:
		return fmt.Errorf("%w: %s descriptor requires AKAZE keypoints, got %s", ErrIncompatible, desc, det)
	case desc == DescriptorORB && det == DetectorSIFT:
		return fmt.Errorf("%w: %s descriptor cannot use %s keypoints", ErrIncompatible, desc, det)
	}
	return nil
}
