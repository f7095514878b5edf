package pipeline

import (
	"fmt"

	"github.com/zoeyai/featuretrack/pkg/config"
)

// ImageSequence 按序号拼接图像文件名
type ImageSequence struct {
	src config.ImageSource
}

// NewImageSequence 创建图像序列
func NewImageSequence(src config.ImageSource) *ImageSequence {
	return &ImageSequence{src: src}
}

// Len 序列中的帧数
func (s *ImageSequence) Len() int {
	if s.src.EndIndex < s.src.StartIndex {
		return 0
	}
	return s.src.EndIndex - s.src.StartIndex + 1
}

// Filename 第 i 帧 (从 0 开始) 的文件路径
func (s *ImageSequence) Filename(i int) string {
	return fmt.Sprintf("%s%s%0*d%s", s.src.BasePath, s.src.Prefix, s.src.FillWidth, s.src.StartIndex+i, s.src.FileType)
}
