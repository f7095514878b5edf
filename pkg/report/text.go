// Package report 输出运行结果：终端文本、JSON 文件、统计图表和 SQLite 运行历史
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/zoeyai/featuretrack/pkg/pipeline"
)

// WriteFrame 输出单帧统计
func WriteFrame(w io.Writer, detector, descriptor string, fs pipeline.FrameStats) error {
	ew := &errWriter{w: w}
	ew.printf("Frame %d: %s\n", fs.Index, fs.Filename)
	ew.printf("%s detection with n = %d keypoints in %.3f ms\n", detector, fs.Keypoints, ms(fs.DetectTime.Seconds()))
	ew.printf("Vehicle keypoint number: %d\n", fs.Keypoints)
	ew.printf("Mean vehicle keypoint size: %g\n", fs.MeanSize)
	ew.printf("Standard deviation: %g\n", fs.SizeStdDev)
	ew.printf("%s descriptor extraction in %.3f ms\n", descriptor, ms(fs.DescribeTime.Seconds()))
	if fs.Matched {
		ew.printf("Number of matches: %d\n", fs.Matches)
	}
	ew.printf("\n")
	return ew.err
}

// WriteSummary 输出整个序列的平均统计
func WriteSummary(w io.Writer, name string, s pipeline.Summary) error {
	ew := &errWriter{w: w}
	ew.printf("===== %s (%d frames) =====\n", name, s.Frames)
	ew.printf("Average number of vehicle keypoints per frame: %d\n", s.AvgKeypoints)
	ew.printf("Average vehicle keypoint size per frame: %g\n", s.AvgSize)
	ew.printf("Vehicle keypoint size standard deviation per frame: %g\n", s.AvgSizeStdDev)
	ew.printf("Average number of matches: %d\n", s.AvgMatches)
	ew.printf("Average keypoint detection time: %.3f ms\n", s.AvgDetectMs)
	ew.printf("Average descriptor extraction time: %.3f ms\n", s.AvgDescribeMs)
	ew.printf("Average processing time: %.3f ms\n", s.AvgProcessMs)
	return ew.err
}

// WriteSweep 以表格输出各组合的对比结果，失败的组合列出错误
func WriteSweep(w io.Writer, results []pipeline.SweepResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ew := &errWriter{w: tw}
	ew.printf("COMBINATION\tKEYPOINTS\tSIZE\tSIZE STD\tMATCHES\tDETECT ms\tDESCRIBE ms\tTOTAL ms\n")
	for _, r := range results {
		if r.Err != nil {
			ew.printf("%s\terror: %v\n", r.Combination, r.Err)
			continue
		}
		s := r.Result.Summary
		ew.printf("%s\t%d\t%.2f\t%.2f\t%d\t%.3f\t%.3f\t%.3f\n",
			r.Combination, s.AvgKeypoints, s.AvgSize, s.AvgSizeStdDev, s.AvgMatches,
			s.AvgDetectMs, s.AvgDescribeMs, s.AvgProcessMs)
	}
	if ew.err != nil {
		return ew.err
	}
	return tw.Flush()
}

// WriteHistory 以表格输出已保存的运行记录
func WriteHistory(w io.Writer, runs []RunRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ew := &errWriter{w: tw}
	ew.printf("ID\tTIME\tNAME\tFRAMES\tKEYPOINTS\tMATCHES\tTOTAL ms\n")
	for _, r := range runs {
		ew.printf("%d\t%s\t%s\t%d\t%d\t%d\t%.3f\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Name,
			r.Frames, r.AvgKeypoints, r.AvgMatches, r.AvgProcessMs)
	}
	if ew.err != nil {
		return ew.err
	}
	return tw.Flush()
}

func ms(seconds float64) float64 {
	return seconds * 1000
}

// errWriter 记录第一次写入错误，之后的写入直接跳过
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
