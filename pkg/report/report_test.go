package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zoeyai/featuretrack/pkg/config"
	"github.com/zoeyai/featuretrack/pkg/pipeline"
	"github.com/zoeyai/featuretrack/pkg/vision/cv"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Frames: []pipeline.FrameStats{
			{Index: 0, Filename: "0000.png", Keypoints: 12, MeanSize: 7, SizeStdDev: 0, DetectTime: 2 * time.Millisecond},
			{Index: 1, Filename: "0001.png", Keypoints: 10, MeanSize: 7, SizeStdDev: 0, DetectTime: 3 * time.Millisecond, Matched: true, Matches: 8},
		},
		Sizes: []float64{5, 7, 7, 9},
		Summary: pipeline.Summary{
			Frames:         2,
			AvgKeypoints:   11,
			AvgSize:        7,
			AvgMatches:     8,
			AvgDetectMs:    2.5,
			AvgProcessMs:   2.5,
			TotalKeypoints: 22,
			TotalMatches:   8,
		},
	}
}

func TestWriteFrame(t *testing.T) {
	res := sampleResult()

	var buf bytes.Buffer
	if err := WriteFrame(&buf, "FAST", "ORB", res.Frames[0]); err != nil {
		t.Fatalf("WriteFrame 失败: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "FAST detection with n = 12 keypoints in 2.000 ms") {
		t.Errorf("缺少检测统计:\n%s", out)
	}
	if strings.Contains(out, "Number of matches") {
		t.Errorf("第一帧不应输出匹配数:\n%s", out)
	}

	buf.Reset()
	if err := WriteFrame(&buf, "FAST", "ORB", res.Frames[1]); err != nil {
		t.Fatalf("WriteFrame 失败: %v", err)
	}
	if !strings.Contains(buf.String(), "Number of matches: 8") {
		t.Errorf("缺少匹配数:\n%s", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, "FAST+ORB/MAT_BF/SEL_KNN", sampleResult().Summary); err != nil {
		t.Fatalf("WriteSummary 失败: %v", err)
	}
	for _, want := range []string{
		"===== FAST+ORB/MAT_BF/SEL_KNN (2 frames) =====",
		"Average number of vehicle keypoints per frame: 11",
		"Average number of matches: 8",
		"Average processing time: 2.500 ms",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("输出缺少 %q:\n%s", want, buf.String())
		}
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSummaryError(t *testing.T) {
	if err := WriteSummary(failWriter{}, "x", pipeline.Summary{}); err == nil {
		t.Error("写入失败时应返回错误")
	}
}

func TestWriteSweep(t *testing.T) {
	results := []pipeline.SweepResult{
		{Combination: pipeline.Combination{Detector: cv.DetectorFAST, Descriptor: cv.DescriptorBRISK}, Result: sampleResult()},
		{Combination: pipeline.Combination{Detector: cv.DetectorFAST, Descriptor: cv.DescriptorAKAZE}, Err: cv.ErrIncompatible},
	}

	var buf bytes.Buffer
	if err := WriteSweep(&buf, results); err != nil {
		t.Fatalf("WriteSweep 失败: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("应输出表头加 2 行, 实际 %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "FAST+BRISK") || !strings.Contains(lines[1], "11") {
		t.Errorf("FAST+BRISK 行错误: %q", lines[1])
	}
	if !strings.Contains(lines[2], "error:") {
		t.Errorf("失败的组合应输出错误: %q", lines[2])
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRunRecord("FAST+ORB/MAT_BF/SEL_KNN", cfg, sampleResult(), started, nil)

	path := filepath.Join(t.TempDir(), "out", "run.json")
	if err := WriteJSON(path, rec); err != nil {
		t.Fatalf("WriteJSON 失败: %v", err)
	}
	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON 失败: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("JSON 往返不一致 (-want +got):\n%s", diff)
	}
}

func TestStore(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	defer store.Close()

	cfg := config.DefaultPipelineConfig()
	first := NewRunRecord("FAST+ORB/MAT_BF/SEL_KNN", cfg, sampleResult(), time.Now().Add(-time.Minute), nil)

	cfg2 := *cfg
	cfg2.Detector, cfg2.Descriptor = "SIFT", "SIFT"
	second := NewRunRecord("SIFT+SIFT/MAT_BF/SEL_KNN", &cfg2, sampleResult(), time.Now(), nil)

	id1, err := store.Insert(first)
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	id2, err := store.Insert(second)
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ID 应递增: %d, %d", id1, id2)
	}

	runs, err := store.List(0)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != id2 || runs[0].Detector != "SIFT" {
		t.Fatalf("应按倒序返回 2 条记录: %+v", runs)
	}
	if runs[1].AvgKeypoints != 11 || runs[1].AvgMatches != 8 || runs[1].Frames != 2 {
		t.Errorf("汇总字段错误: %+v", runs[1])
	}

	limited, err := store.List(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("List(1) = %d 条, %v", len(limited), err)
	}

	rec, err := store.Record(id1)
	if err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if diff := cmp.Diff(first.Frames, rec.Frames); diff != "" {
		t.Errorf("逐帧统计不一致 (-want +got):\n%s", diff)
	}
	if _, err := store.Record(id2 + 100); err == nil {
		t.Error("不存在的记录应报错")
	}

	var buf bytes.Buffer
	if err := WriteHistory(&buf, runs); err != nil {
		t.Fatalf("WriteHistory 失败: %v", err)
	}
	if !strings.Contains(buf.String(), "SIFT+SIFT/MAT_BF/SEL_KNN") {
		t.Errorf("历史表格缺少记录:\n%s", buf.String())
	}
}

func TestStoreListBadTimestamp(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	defer store.Close()

	id, err := store.Insert(NewRunRecord("FAST+ORB", config.DefaultPipelineConfig(), sampleResult(), time.Now(), nil))
	if err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if _, err := store.db.Exec("UPDATE runs SET created_at = 'yesterday' WHERE run_id = ?", id); err != nil {
		t.Fatalf("修改记录失败: %v", err)
	}

	if _, err := store.List(0); err == nil {
		t.Error("时间格式无效时 List 应返回错误")
	}
}

func TestSavePlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")

	files, err := SavePlots(dir, "FAST+ORB/MAT_BF", sampleResult())
	if err != nil {
		t.Fatalf("SavePlots 失败: %v", err)
	}
	want := []string{
		filepath.Join(dir, "FAST_ORB_MAT_BF_sizes.png"),
		filepath.Join(dir, "FAST_ORB_MAT_BF_frames.png"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("生成文件不一致 (-want +got):\n%s", diff)
	}

	empty := &pipeline.Result{Frames: []pipeline.FrameStats{{Index: 0}}}
	files, err = SavePlots(dir, "none", empty)
	if err != nil {
		t.Fatalf("SavePlots 失败: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("无关键点时只生成折线图, 实际 %v", files)
	}
}
