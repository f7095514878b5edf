package cv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// syntheticScene 生成带随机灰度矩形和圆的灰度图，纹理足够各检测器取点
func syntheticScene(t *testing.T, seed int64) gocv.Mat {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 0, 0, 0), 240, 320, gocv.MatTypeCV8U)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 40; i++ {
		x, y := rng.Intn(280), rng.Intn(200)
		w, h := 8+rng.Intn(30), 8+rng.Intn(30)
		v := uint8(80 + rng.Intn(175))
		c := color.RGBA{R: v, G: v, B: v}
		if i%3 == 0 {
			gocv.Circle(&img, image.Pt(x+w/2, y+h/2), w/2, c, -1)
		} else {
			gocv.Rectangle(&img, image.Rect(x, y, x+w, y+h), c, -1)
		}
	}
	return img
}

func TestDetectKeypoints(t *testing.T) {
	img := syntheticScene(t, 1)
	defer img.Close()

	mustFind := map[DetectorType]bool{
		DetectorShiTomasi: true,
		DetectorHarris:    true,
		DetectorFAST:      true,
	}

	for _, det := range Detectors {
		t.Run(string(det), func(t *testing.T) {
			res, err := DetectKeypoints(img, det)
			if err != nil {
				t.Fatalf("检测失败: %v", err)
			}
			if mustFind[det] && len(res.Keypoints) == 0 {
				t.Errorf("%s 应检测到关键点", det)
			}
			t.Logf("%s: n=%d, %v", det, len(res.Keypoints), res.Elapsed)
		})
	}
}

func TestDetectClassicSizes(t *testing.T) {
	img := syntheticScene(t, 2)
	defer img.Close()

	tests := []struct {
		det  DetectorType
		size float64
	}{
		{DetectorShiTomasi, shiTomasiBlockSize},
		{DetectorHarris, harrisBlockSize},
	}
	for _, tt := range tests {
		res, err := DetectKeypoints(img, tt.det)
		if err != nil {
			t.Fatalf("%s 检测失败: %v", tt.det, err)
		}
		for _, kp := range res.Keypoints {
			if kp.Size != tt.size {
				t.Fatalf("%s 关键点尺寸应为 %v, 实际 %v", tt.det, tt.size, kp.Size)
			}
		}
	}
}

func TestHarrisResponseThreshold(t *testing.T) {
	img := syntheticScene(t, 3)
	defer img.Close()

	res, err := DetectKeypoints(img, DetectorHarris)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	for _, kp := range res.Keypoints {
		if kp.Response < harrisMinCornerness || kp.Response > 255.5 {
			t.Fatalf("Harris 响应应在 [%d, 255], 实际 %v", harrisMinCornerness, kp.Response)
		}
	}
}

func TestDetectErrors(t *testing.T) {
	img := syntheticScene(t, 4)
	defer img.Close()

	if _, err := DetectKeypoints(img, "MSER"); !errors.Is(err, ErrUnknownDetector) {
		t.Errorf("未知检测器应返回 ErrUnknownDetector, 实际 %v", err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	if _, err := DetectKeypoints(empty, DetectorFAST); err == nil {
		t.Error("空图像应返回错误")
	}
}

func TestDescribeKeypoints(t *testing.T) {
	img := syntheticScene(t, 5)
	defer img.Close()

	det, err := DetectKeypoints(img, DetectorAKAZE)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	if len(det.Keypoints) == 0 {
		t.Skip("合成图像上 AKAZE 未检测到关键点")
	}

	for _, d := range Descriptors {
		t.Run(string(d), func(t *testing.T) {
			res, err := DescribeKeypoints(img, det.Keypoints, d)
			if err != nil {
				t.Fatalf("提取失败: %v", err)
			}
			defer res.Descriptors.Close()

			if res.Descriptors.Rows() != len(res.Keypoints) {
				t.Errorf("描述子行数 %d 应等于关键点数 %d", res.Descriptors.Rows(), len(res.Keypoints))
			}
			if len(res.Keypoints) > len(det.Keypoints) {
				t.Errorf("提取后关键点不应增加: %d > %d", len(res.Keypoints), len(det.Keypoints))
			}
		})
	}
}

func TestDescribeErrors(t *testing.T) {
	img := syntheticScene(t, 6)
	defer img.Close()

	if _, err := DescribeKeypoints(img, nil, DescriptorFREAK); !errors.Is(err, ErrUnsupportedDescriptor) {
		t.Errorf("FREAK 应返回 ErrUnsupportedDescriptor, 实际 %v", err)
	}
	if !Available(DescriptorBRIEF) {
		if _, err := DescribeKeypoints(img, nil, DescriptorBRIEF); !errors.Is(err, ErrUnsupportedDescriptor) {
			t.Errorf("未以 contrib 构建时 BRIEF 应返回 ErrUnsupportedDescriptor, 实际 %v", err)
		}
	}
	if _, err := DescribeKeypoints(img, nil, "HOG"); !errors.Is(err, ErrUnknownDescriptor) {
		t.Errorf("未知描述子应返回 ErrUnknownDescriptor, 实际 %v", err)
	}

	res, err := DescribeKeypoints(img, nil, DescriptorORB)
	if err != nil {
		t.Fatalf("无关键点时不应报错: %v", err)
	}
	defer res.Descriptors.Close()
	if !res.Descriptors.Empty() {
		t.Error("无关键点时描述子应为空")
	}
}

// describeScene 用 ORB 检测并提取描述子
func describeScene(t *testing.T, img gocv.Mat) *DescribeResult {
	t.Helper()
	det, err := DetectKeypoints(img, DetectorORB)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	res, err := DescribeKeypoints(img, det.Keypoints, DescriptorORB)
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if res.Descriptors.Rows() < 2 {
		res.Descriptors.Close()
		t.Skip("合成图像上 ORB 描述子不足")
	}
	return res
}

func TestMatchSelfNearest(t *testing.T) {
	img := syntheticScene(t, 7)
	defer img.Close()
	desc := describeScene(t, img)
	defer desc.Descriptors.Close()

	for _, m := range []MatcherType{MatcherBF, MatcherFLANN} {
		t.Run(string(m), func(t *testing.T) {
			res, err := MatchDescriptors(desc.Descriptors, desc.Descriptors, MatchOptions{
				Matcher:  m,
				Selector: SelectorNN,
				Class:    DescriptorBinary,
			})
			if err != nil {
				t.Fatalf("匹配失败: %v", err)
			}
			if len(res.Matches) != desc.Descriptors.Rows() {
				t.Errorf("NN 每个描述子应有一个匹配: got %d, want %d", len(res.Matches), desc.Descriptors.Rows())
			}
			if m == MatcherBF {
				for _, mt := range res.Matches {
					if mt.Distance != 0 {
						t.Fatalf("自匹配的暴力匹配距离应为 0, 实际 %v", mt.Distance)
					}
				}
			}
		})
	}
}

func TestMatchKNNAcrossFrames(t *testing.T) {
	a := syntheticScene(t, 8)
	defer a.Close()
	b := gocv.NewMat()
	defer b.Close()
	gocv.GaussianBlur(a, &b, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	da := describeScene(t, a)
	defer da.Descriptors.Close()
	db := describeScene(t, b)
	defer db.Descriptors.Close()

	res, err := MatchDescriptors(da.Descriptors, db.Descriptors, MatchOptions{
		Matcher:  MatcherBF,
		Selector: SelectorKNN,
	})
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}
	if len(res.Matches) == 0 {
		t.Fatal("轻微模糊的同一场景应有通过比率测试的匹配")
	}
	if len(res.Matches) > da.Descriptors.Rows() {
		t.Errorf("KNN 匹配数 %d 不应超过源描述子数 %d", len(res.Matches), da.Descriptors.Rows())
	}
	for _, m := range res.Matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(da.Keypoints) || m.TrainIdx < 0 || m.TrainIdx >= len(db.Keypoints) {
			t.Fatalf("匹配下标越界: %+v", m)
		}
	}
}

// describeSIFT 用 SIFT 检测并提取浮点描述子
func describeSIFT(t *testing.T, img gocv.Mat) *DescribeResult {
	t.Helper()
	det, err := DetectKeypoints(img, DetectorSIFT)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	res, err := DescribeKeypoints(img, det.Keypoints, DescriptorSIFT)
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	if res.Descriptors.Rows() < 2 {
		res.Descriptors.Close()
		t.Skip("合成图像上 SIFT 描述子不足")
	}
	return res
}

func TestMatchFloatDescriptors(t *testing.T) {
	a := syntheticScene(t, 12)
	defer a.Close()
	b := gocv.NewMat()
	defer b.Close()
	gocv.GaussianBlur(a, &b, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	da := describeSIFT(t, a)
	defer da.Descriptors.Close()
	db := describeSIFT(t, b)
	defer db.Descriptors.Close()

	if da.Descriptors.Type() != gocv.MatTypeCV32F {
		t.Fatalf("SIFT 描述子应为 CV_32F, 实际 %v", da.Descriptors.Type())
	}

	self, err := MatchDescriptors(da.Descriptors, da.Descriptors, MatchOptions{
		Matcher:  MatcherBF,
		Selector: SelectorNN,
		Class:    DescriptorHOG,
	})
	if err != nil {
		t.Fatalf("L2 匹配失败: %v", err)
	}
	if len(self.Matches) != da.Descriptors.Rows() {
		t.Errorf("L2 自匹配数应为 %d, 实际 %d", da.Descriptors.Rows(), len(self.Matches))
	}

	tests := []struct {
		matcher  MatcherType
		selector SelectorType
	}{
		{MatcherBF, SelectorNN},
		{MatcherBF, SelectorKNN},
		{MatcherFLANN, SelectorNN},
		{MatcherFLANN, SelectorKNN},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.matcher, tt.selector), func(t *testing.T) {
			res, err := MatchDescriptors(da.Descriptors, db.Descriptors, MatchOptions{
				Matcher:  tt.matcher,
				Selector: tt.selector,
				Class:    DescriptorHOG,
			})
			if err != nil {
				t.Fatalf("匹配失败: %v", err)
			}
			if len(res.Matches) == 0 {
				t.Error("浮点描述子应产生匹配")
			}
		})
	}

	_, err = MatchDescriptors(da.Descriptors, db.Descriptors, MatchOptions{
		Matcher:  MatcherBF,
		Selector: SelectorKNN,
		Class:    DescriptorBinary,
	})
	if !errors.Is(err, ErrClassMismatch) {
		t.Errorf("Hamming 距离用于浮点描述子应返回 ErrClassMismatch, 实际 %v", err)
	}
}

func TestBRISKDescriptorWidth(t *testing.T) {
	img := syntheticScene(t, 13)
	defer img.Close()

	det, err := DetectKeypoints(img, DetectorBRISK)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	if len(det.Keypoints) == 0 {
		t.Skip("合成图像上 BRISK 未检测到关键点")
	}
	res, err := DescribeKeypoints(img, det.Keypoints, DescriptorBRISK)
	if err != nil {
		t.Fatalf("提取失败: %v", err)
	}
	defer res.Descriptors.Close()

	// BRISK 描述子为 512 位
	if res.Descriptors.Cols() != 64 || res.Descriptors.Type() != gocv.MatTypeCV8U {
		t.Errorf("BRISK 描述子应为 64 字节 CV_8U, 实际 %d 列 %v", res.Descriptors.Cols(), res.Descriptors.Type())
	}
}

func TestShiTomasiSquareCorners(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 120, gocv.MatTypeCV8U)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(40, 40, 80, 80), color.RGBA{R: 255, G: 255, B: 255}, -1)

	res, err := DetectKeypoints(img, DetectorShiTomasi)
	if err != nil {
		t.Fatalf("检测失败: %v", err)
	}
	if len(res.Keypoints) < 4 {
		t.Fatalf("方块应至少检测到 4 个角点, 实际 %d", len(res.Keypoints))
	}

	for i, kp := range res.Keypoints {
		if kp.Size != shiTomasiBlockSize {
			t.Fatalf("关键点尺寸应为 %d, 实际 %v", shiTomasiBlockSize, kp.Size)
		}
		if i > 0 && kp.Response > res.Keypoints[i-1].Response {
			t.Fatalf("角点应按响应降序输出: %v > %v", kp.Response, res.Keypoints[i-1].Response)
		}
		for _, other := range res.Keypoints[:i] {
			dx, dy := kp.X-other.X, kp.Y-other.Y
			if dx*dx+dy*dy < shiTomasiBlockSize*shiTomasiBlockSize {
				t.Fatalf("角点间距小于最小距离: %+v, %+v", kp, other)
			}
		}
	}

	for _, corner := range []image.Point{{40, 40}, {79, 40}, {40, 79}, {79, 79}} {
		found := false
		for _, kp := range res.Keypoints {
			if math.Abs(kp.X-float64(corner.X)) <= 3 && math.Abs(kp.Y-float64(corner.Y)) <= 3 {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("方块角 %v 附近没有角点", corner)
		}
	}
}

func TestMatchErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	tests := []struct {
		name string
		opts MatchOptions
		want error
	}{
		{"matcher", MatchOptions{Matcher: "MAT_KD", Selector: SelectorNN}, ErrUnknownMatcher},
		{"selector", MatchOptions{Matcher: MatcherBF, Selector: "SEL_RADIUS"}, ErrUnknownSelector},
		{"class", MatchOptions{Matcher: MatcherBF, Selector: SelectorNN, Class: "DES_FLOAT"}, ErrUnknownDescriptorClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MatchDescriptors(empty, empty, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("期望 %v, 实际 %v", tt.want, err)
			}
		})
	}

	res, err := MatchDescriptors(empty, empty, MatchOptions{Matcher: MatcherFLANN, Selector: SelectorKNN})
	if err != nil {
		t.Fatalf("空描述子不应报错: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("空描述子应无匹配, 实际 %d", len(res.Matches))
	}
}

func TestDrawMatches(t *testing.T) {
	img := syntheticScene(t, 9)
	defer img.Close()
	desc := describeScene(t, img)
	defer desc.Descriptors.Close()

	res, err := MatchDescriptors(desc.Descriptors, desc.Descriptors, MatchOptions{Matcher: MatcherBF, Selector: SelectorNN})
	if err != nil {
		t.Fatalf("匹配失败: %v", err)
	}

	out := DrawMatches(img, desc.Keypoints, img, desc.Keypoints, res.Matches)
	defer out.Close()
	if out.Cols() != 2*img.Cols() || out.Rows() != img.Rows() {
		t.Errorf("拼接图尺寸错误: %dx%d", out.Cols(), out.Rows())
	}

	path := filepath.Join(t.TempDir(), "vis", "matches.png")
	if err := WriteImage(path, out); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	back, err := ReadImageGray(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	defer back.Close()
	if back.Channels() != 1 {
		t.Errorf("灰度读取应为单通道, 实际 %d", back.Channels())
	}
}

func TestReadImageMissing(t *testing.T) {
	if _, err := ReadImageGray(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("读取不存在的文件应报错")
	}
}
