//go:build contrib

package cv

import (
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// briefBorder BRIEF 采样窗口半径 (patch 48/2 + 平滑核 9/2)，更靠近边缘的点会被 OpenCV 丢弃
const briefBorder = 28

func init() {
	registerExtractor(DescriptorBRIEF, func() descriptorExtractor {
		return &briefExtractor{brief: contrib.NewBriefDescriptorExtractor()}
	})
}

// briefExtractor 适配 contrib 的 BRIEF
//
// contrib 的 Compute 不返回保留下来的关键点，这里先按相同规则去掉边缘点，
// 保证描述子行与关键点一一对应。
type briefExtractor struct {
	brief contrib.BriefDescriptorExtractor
}

func (b *briefExtractor) Compute(src gocv.Mat, _ gocv.Mat, kps []gocv.KeyPoint) ([]gocv.KeyPoint, gocv.Mat) {
	kept := filterByBorder(kps, src.Rows(), src.Cols(), briefBorder)
	if len(kept) == 0 {
		return kept, gocv.NewMat()
	}
	return kept, b.brief.Compute(kept, src)
}

func (b *briefExtractor) Close() error {
	return b.brief.Close()
}
