package cv

import (
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"gocv.io/x/gocv"
)

const (
	shiTomasiBlockSize    = 4
	shiTomasiApertureSize = 3
	shiTomasiMaxOverlap   = 0.0
	shiTomasiQuality      = 0.01

	harrisBlockSize     = 5
	harrisApertureSize  = 3
	harrisK             = 0.05
	harrisMinCornerness = 100
)

// DetectResult 检测结果
type DetectResult struct {
	Keypoints []gocv.KeyPoint
	// Elapsed 检测耗时
	Elapsed time.Duration
}

// featureDetector gocv 中各 Feature2D 检测器的公共方法
type featureDetector interface {
	Detect(src gocv.Mat) []gocv.KeyPoint
	Close() error
}

// DetectKeypoints 使用指定检测器检测灰度图中的关键点
func DetectKeypoints(img gocv.Mat, detector DetectorType) (*DetectResult, error) {
	if img.Empty() {
		return nil, fmt.Errorf("图像为空")
	}

	switch detector {
	case DetectorShiTomasi:
		return detectShiTomasi(img)
	case DetectorHarris:
		return detectHarris(img), nil
	}

	d, err := newFeatureDetector(detector)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	start := time.Now()
	kps := d.Detect(img)
	return &DetectResult{Keypoints: kps, Elapsed: time.Since(start)}, nil
}

func newFeatureDetector(detector DetectorType) (featureDetector, error) {
	switch detector {
	case DetectorFAST:
		d := gocv.NewFastFeatureDetector()
		return &d, nil
	case DetectorBRISK:
		d := gocv.NewBRISK()
		return &d, nil
	case DetectorORB:
		d := gocv.NewORB()
		return &d, nil
	case DetectorAKAZE:
		d := gocv.NewAKAZE()
		return &d, nil
	case DetectorSIFT:
		d := gocv.NewSIFT()
		return &d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, detector)
}

// detectShiTomasi Shi-Tomasi 角点，关键点尺寸取 blockSize
//
// 最小特征值响应在 blockSize×blockSize 邻域上计算，之后按 goodFeaturesToTrack
// 的规则选点：质量阈值、3×3 非极大值抑制、最小距离。
func detectShiTomasi(img gocv.Mat) (*DetectResult, error) {
	minDistance := (1.0 - shiTomasiMaxOverlap) * shiTomasiBlockSize
	maxCorners := int(float64(img.Rows()*img.Cols()) / math.Max(1.0, minDistance))

	start := time.Now()
	xx, xy, yy := structureTensor(img, shiTomasiBlockSize, shiTomasiApertureSize)
	defer xx.Close()
	defer xy.Close()
	defer yy.Close()

	a, err := xx.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("读取梯度矩阵失败: %w", err)
	}
	b, err := xy.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("读取梯度矩阵失败: %w", err)
	}
	c, err := yy.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("读取梯度矩阵失败: %w", err)
	}

	eig := make([]float32, len(a))
	for i := range eig {
		eig[i] = minEigenValue(a[i], b[i], c[i])
	}

	kps := selectCorners(eig, img.Rows(), img.Cols(), maxCorners, shiTomasiQuality, minDistance)
	for i := range kps {
		kps[i].Size = shiTomasiBlockSize
		kps[i].Angle = -1
	}
	return &DetectResult{Keypoints: kps, Elapsed: time.Since(start)}, nil
}

// minEigenValue 2×2 对称矩阵 [a b; b c] 的较小特征值
func minEigenValue(a, b, c float32) float32 {
	half := (a - c) / 2
	return (a+c)/2 - float32(math.Sqrt(float64(half*half+b*b)))
}

// selectCorners 从行优先的响应图中选出角点，按响应降序返回
//
// 响应不超过 quality*max 的点、不是 3×3 邻域最大值的点以及图像最外一圈像素都被丢弃；
// 与已选角点距离小于 minDistance 的点跳过。maxCorners <= 0 表示不限数量。
func selectCorners(eig []float32, rows, cols, maxCorners int, quality, minDistance float64) []gocv.KeyPoint {
	var maxVal float32
	for _, v := range eig {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return nil
	}
	thresh := float32(quality * float64(maxVal))

	type corner struct {
		x, y int
		v    float32
	}
	var candidates []corner
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			v := eig[y*cols+x]
			if v <= thresh || !isLocalMax(eig, cols, x, y) {
				continue
			}
			candidates = append(candidates, corner{x, y, v})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].v > candidates[j].v
	})

	// 按 minDistance 划分网格，只需检查相邻格子
	cell := int(math.Max(1, math.Ceil(minDistance)))
	grid := make(map[image.Point][]image.Point)
	minDist2 := minDistance * minDistance

	var kps []gocv.KeyPoint
	for _, c := range candidates {
		g := image.Pt(c.x/cell, c.y/cell)
		if minDistance > 0 && tooClose(grid, g, c.x, c.y, minDist2) {
			continue
		}
		grid[g] = append(grid[g], image.Pt(c.x, c.y))
		kps = append(kps, gocv.KeyPoint{X: float64(c.x), Y: float64(c.y), Response: float64(c.v)})
		if maxCorners > 0 && len(kps) >= maxCorners {
			break
		}
	}
	return kps
}

func isLocalMax(eig []float32, cols, x, y int) bool {
	v := eig[y*cols+x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if eig[(y+dy)*cols+x+dx] > v {
				return false
			}
		}
	}
	return true
}

func tooClose(grid map[image.Point][]image.Point, g image.Point, x, y int, minDist2 float64) bool {
	for gy := g.Y - 1; gy <= g.Y+1; gy++ {
		for gx := g.X - 1; gx <= g.X+1; gx++ {
			for _, p := range grid[image.Pt(gx, gy)] {
				dx, dy := float64(p.X-x), float64(p.Y-y)
				if dx*dx+dy*dy < minDist2 {
					return true
				}
			}
		}
	}
	return false
}

// detectHarris Harris 角点响应，归一化到 [0,255] 后按阈值取点
func detectHarris(img gocv.Mat) *DetectResult {
	start := time.Now()

	response := harrisResponse(img, harrisBlockSize, harrisApertureSize, harrisK)
	defer response.Close()

	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(response, &norm, 0, 255, gocv.NormMinMax)

	var kps []gocv.KeyPoint
	for i := 0; i < norm.Rows(); i++ {
		for j := 0; j < norm.Cols(); j++ {
			r := norm.GetFloatAt(i, j)
			if r >= harrisMinCornerness {
				kps = append(kps, gocv.KeyPoint{
					X:        float64(j),
					Y:        float64(i),
					Size:     harrisBlockSize,
					Angle:    -1,
					Response: float64(r),
				})
			}
		}
	}
	return &DetectResult{Keypoints: kps, Elapsed: time.Since(start)}
}

// structureTensor 返回 blockSize 邻域内的 Σdx²、Σdx·dy、Σdy²，均为 CV_32F
func structureTensor(img gocv.Mat, blockSize, aperture int) (xx, xy, yy gocv.Mat) {
	dx := gocv.NewMat()
	dy := gocv.NewMat()
	defer dx.Close()
	defer dy.Close()
	gocv.Sobel(img, &dx, gocv.MatTypeCV32F, 1, 0, aperture, 1, 0, gocv.BorderDefault)
	gocv.Sobel(img, &dy, gocv.MatTypeCV32F, 0, 1, aperture, 1, 0, gocv.BorderDefault)

	window := image.Pt(blockSize, blockSize)
	sum := func(a, b gocv.Mat) gocv.Mat {
		prod := gocv.NewMat()
		defer prod.Close()
		gocv.Multiply(a, b, &prod)
		out := gocv.NewMat()
		gocv.BoxFilter(prod, &out, -1, window)
		return out
	}
	return sum(dx, dx), sum(dx, dy), sum(dy, dy)
}

// harrisResponse 计算 R = det(M) - k*trace(M)^2
func harrisResponse(img gocv.Mat, blockSize, aperture int, k float32) gocv.Mat {
	xx, xy, yy := structureTensor(img, blockSize, aperture)
	defer xx.Close()
	defer xy.Close()
	defer yy.Close()

	det := gocv.NewMat()
	xxyy := gocv.NewMat()
	xy2 := gocv.NewMat()
	trace := gocv.NewMat()
	trace2 := gocv.NewMat()
	defer det.Close()
	defer xxyy.Close()
	defer xy2.Close()
	defer trace.Close()
	defer trace2.Close()

	gocv.Multiply(xx, yy, &xxyy)
	gocv.Multiply(xy, xy, &xy2)
	gocv.Subtract(xxyy, xy2, &det)
	gocv.Add(xx, yy, &trace)
	gocv.Multiply(trace, trace, &trace2)
	trace2.MultiplyFloat(k)

	response := gocv.NewMat()
	gocv.Subtract(det, trace2, &response)
	return response
}
