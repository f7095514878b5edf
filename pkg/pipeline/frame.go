package pipeline

import (
	"time"

	"gocv.io/x/gocv"
)

// DataFrame 一帧的图像及其检测、描述和匹配结果
type DataFrame struct {
	Index    int
	Filename string

	// Image 灰度图
	Image       gocv.Mat
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
	// Matches 与上一帧的匹配，QueryIdx 指向上一帧，TrainIdx 指向本帧
	Matches []gocv.DMatch

	DetectTime   time.Duration
	DescribeTime time.Duration
	MatchTime    time.Duration
}

// NewDataFrame 创建一帧，取得 img 的所有权
func NewDataFrame(index int, filename string, img gocv.Mat) *DataFrame {
	return &DataFrame{
		Index:       index,
		Filename:    filename,
		Image:       img,
		Descriptors: gocv.NewMat(),
	}
}

// SetDescriptors 替换描述子，旧的 Mat 会被关闭
func (f *DataFrame) SetDescriptors(desc gocv.Mat) {
	f.Descriptors.Close()
	f.Descriptors = desc
}

// Close 释放帧持有的 Mat
func (f *DataFrame) Close() {
	f.Image.Close()
	f.Descriptors.Close()
}
