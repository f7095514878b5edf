package cv

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// VehicleRegion 前车所在区域 (KITTI 序列 2011_09_26)
var VehicleRegion = image.Rect(535, 180, 535+180, 180+150)

// FilterInRegion 只保留落在 rect 内的关键点，右边界和下边界不包含
func FilterInRegion(kps []gocv.KeyPoint, rect image.Rectangle) []gocv.KeyPoint {
	kept := make([]gocv.KeyPoint, 0, len(kps))
	for _, kp := range kps {
		if kp.X >= float64(rect.Min.X) && kp.X < float64(rect.Max.X) &&
			kp.Y >= float64(rect.Min.Y) && kp.Y < float64(rect.Max.Y) {
			kept = append(kept, kp)
		}
	}
	return kept
}

// RetainBest 最多保留 n 个关键点
//
// keepOrder 为 true 时直接截取前 n 个 (Shi-Tomasi 已按质量降序输出且没有响应值)，
// 否则按 Response 降序保留。
func RetainBest(kps []gocv.KeyPoint, n int, keepOrder bool) []gocv.KeyPoint {
	if n < 0 || len(kps) <= n {
		return kps
	}
	if keepOrder {
		return kps[:n]
	}

	sorted := make([]gocv.KeyPoint, len(kps))
	copy(sorted, kps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Response > sorted[j].Response
	})
	return sorted[:n]
}

// SizeStats 关键点尺寸的均值和总体标准差，无关键点时均为 0
func SizeStats(kps []gocv.KeyPoint) (mean, stdDev float64) {
	if len(kps) == 0 {
		return 0, 0
	}
	sizes := make([]float64, len(kps))
	for i, kp := range kps {
		sizes[i] = kp.Size
	}
	return stat.PopMeanStdDev(sizes, nil)
}
