// Package cv 封装关键点检测、描述子提取与描述子匹配
//
// 所有算法均由 OpenCV (gocv) 实现，本包只负责按名称选择算法并统计耗时:
//   - 检测器: SHITOMASI, HARRIS, FAST, BRISK, ORB, AKAZE, SIFT
//   - 描述子: BRISK, ORB, AKAZE, SIFT
//   - 匹配器: MAT_BF, MAT_FLANN；选择策略: SEL_NN, SEL_KNN (比率 0.8)
//
// 基本用法:
//
//	img, err := cv.ReadImageGray("0000000000.png")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	det, err := cv.DetectKeypoints(img, cv.DetectorFAST)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	desc, err := cv.DescribeKeypoints(img, det.Keypoints, cv.DescriptorORB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer desc.Descriptors.Close()
package cv
