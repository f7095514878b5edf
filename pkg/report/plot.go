package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/zoeyai/featuretrack/pkg/pipeline"
)

// HistogramBins 关键点尺寸直方图的分箱数
const HistogramBins = 20

var (
	keypointColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	matchColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// SavePlots 在 dir 下生成关键点尺寸直方图和逐帧关键点/匹配数折线图，返回生成的文件
//
// 没有关键点时跳过直方图。
func SavePlots(dir, name string, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建图表目录失败: %w", err)
	}

	var files []string
	if len(res.Sizes) > 0 {
		file := filepath.Join(dir, fileSafe(name)+"_sizes.png")
		if err := saveSizeHistogram(file, name, res.Sizes); err != nil {
			return files, err
		}
		files = append(files, file)
	}

	file := filepath.Join(dir, fileSafe(name)+"_frames.png")
	if err := saveFrameChart(file, name, res.Frames); err != nil {
		return files, err
	}
	return append(files, file), nil
}

func saveSizeHistogram(file, name string, sizes []float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Keypoint Size", name)
	p.X.Label.Text = "Size (px)"
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(sizes), HistogramBins)
	if err != nil {
		return fmt.Errorf("生成直方图失败: %w", err)
	}
	h.FillColor = keypointColor
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save size histogram: %w", err)
	}
	return nil
}

func saveFrameChart(file, name string, frames []pipeline.FrameStats) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Keypoints / Matches", name)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Count"

	kpPts := make(plotter.XYs, 0, len(frames))
	matchPts := make(plotter.XYs, 0, len(frames))
	for _, f := range frames {
		kpPts = append(kpPts, plotter.XY{X: float64(f.Index), Y: float64(f.Keypoints)})
		// 第一帧没有匹配
		if f.Matched {
			matchPts = append(matchPts, plotter.XY{X: float64(f.Index), Y: float64(f.Matches)})
		}
	}

	if len(kpPts) > 0 {
		kpLine, err := plotter.NewLine(kpPts)
		if err != nil {
			return err
		}
		kpLine.Color = keypointColor
		kpLine.Width = vg.Points(1.5)
		p.Add(kpLine)
		p.Legend.Add("keypoints", kpLine)
	}
	if len(matchPts) > 0 {
		matchLine, err := plotter.NewLine(matchPts)
		if err != nil {
			return err
		}
		matchLine.Color = matchColor
		matchLine.Width = vg.Points(1.5)
		p.Add(matchLine)
		p.Legend.Add("matches", matchLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("save frame chart: %w", err)
	}
	return nil
}

// fileSafe 把组合名称中的 + 和 / 替换为下划线
func fileSafe(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch c {
		case '+', '/', '\\', ' ', ':':
			b[i] = '_'
		}
	}
	return string(b)
}
