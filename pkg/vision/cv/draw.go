package cv

import (
	"image/color"

	"gocv.io/x/gocv"
)

var (
	matchColor = color.RGBA{G: 255, A: 0}
	pointColor = color.RGBA{B: 255, A: 0}
)

// DrawKeypoints 在图像副本上绘制关键点 (含尺寸与方向)
func DrawKeypoints(img gocv.Mat, kps []gocv.KeyPoint) gocv.Mat {
	out := gocv.NewMat()
	gocv.DrawKeyPoints(img, kps, &out, pointColor, gocv.DrawRichKeyPoints)
	return out
}

// DrawMatches 左右拼接两帧并连线匹配点，返回的 Mat 由调用方 Close
func DrawMatches(prev gocv.Mat, prevKps []gocv.KeyPoint, curr gocv.Mat, currKps []gocv.KeyPoint, matches []gocv.DMatch) gocv.Mat {
	out := gocv.NewMat()
	gocv.DrawMatches(prev, prevKps, curr, currKps, matches, &out,
		matchColor, pointColor, nil, gocv.DrawRichKeyPoints)
	return out
}

// Viewer 匹配结果显示窗口
type Viewer struct {
	window *gocv.Window
}

// NewViewer 创建显示窗口
func NewViewer(title string) *Viewer {
	return &Viewer{window: gocv.NewWindow(title)}
}

// Show 显示图像并阻塞直到按键
func (v *Viewer) Show(img gocv.Mat) {
	v.window.IMShow(img)
	v.window.WaitKey(0)
}

// Close 关闭窗口
func (v *Viewer) Close() error {
	return v.window.Close()
}
