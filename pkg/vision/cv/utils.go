package cv

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// ReadImage 读取彩色图像文件
func ReadImage(filename string) (gocv.Mat, error) {
	mat := gocv.IMRead(filename, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("无法读取图像: %s", filename)
	}
	return mat, nil
}

// ReadImageGray 读取图像并转换为灰度图
func ReadImageGray(filename string) (gocv.Mat, error) {
	color, err := ReadImage(filename)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer color.Close()
	return ToGray(color), nil
}

// WriteImage 保存图像文件
func WriteImage(filename string, img gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if ok := gocv.IMWrite(filename, img); !ok {
		return fmt.Errorf("保存图像失败: %s", filename)
	}
	return nil
}

// ToGray 转换为灰度图，单通道图像直接复制
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}
