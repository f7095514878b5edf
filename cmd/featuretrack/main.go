package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zoeyai/featuretrack/internal/logger"
	"github.com/zoeyai/featuretrack/pkg/config"
	"github.com/zoeyai/featuretrack/pkg/pipeline"
	"github.com/zoeyai/featuretrack/pkg/process"
	"github.com/zoeyai/featuretrack/pkg/report"
	"github.com/zoeyai/featuretrack/pkg/vision/cv"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 命令行参数
	var (
		configFile  = flag.String("config", "", "配置文件路径 (默认 ~/.featuretrack/config.json)")
		imageDir    = flag.String("images", "", "图像根目录")
		prefix      = flag.String("prefix", "", "图像文件名前缀")
		start       = flag.Int("start", -1, "起始帧序号")
		end         = flag.Int("end", -1, "结束帧序号")
		detector    = flag.String("detector", "", "检测器: SHITOMASI, HARRIS, FAST, BRISK, ORB, AKAZE, SIFT")
		descriptor  = flag.String("descriptor", "", "描述子: BRISK, ORB, AKAZE, SIFT (contrib 构建另有 BRIEF)")
		matcher     = flag.String("matcher", "", "匹配器: MAT_BF, MAT_FLANN")
		selector    = flag.String("selector", "", "选择策略: SEL_NN, SEL_KNN")
		class       = flag.String("class", "", "描述子类别: DES_BINARY, DES_HOG (默认按描述子推断)")
		limit       = flag.Int("limit", -1, "每帧最多保留的关键点数，0 表示不限制")
		noFocus     = flag.Bool("no-focus", false, "不按前车区域过滤关键点")
		visualize   = flag.Bool("vis", false, "弹窗显示匹配结果")
		visDet      = flag.Bool("vis-det", false, "同时输出每帧的关键点检测图")
		visDir      = flag.String("vis-dir", "", "匹配图保存目录")
		sweep       = flag.Bool("sweep", false, "遍历所有检测器 × 描述子组合")
		jsonFile    = flag.String("json", "", "运行记录导出为 JSON 文件")
		plotDir     = flag.String("plot", "", "统计图表输出目录")
		dbFile      = flag.String("db", "", "运行历史数据库 (SQLite)")
		history     = flag.Bool("history", false, "列出数据库中的运行历史")
		verbose     = flag.Bool("v", false, "输出 DEBUG 日志")
		saveConfig  = flag.Bool("save", false, "保存配置到本地")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if *showHelp {
		printHelp()
		return
	}

	mgr := config.GetDefaultManager()
	if *configFile != "" {
		mgr = config.NewManagerWithFile(*configFile)
	}

	cfg, err := mgr.Load()
	if err != nil {
		logger.Warn("加载配置失败: %v", err)
	}

	// 命令行参数优先级高于配置文件
	if *imageDir != "" {
		cfg.Images.BasePath = *imageDir
	}
	if *prefix != "" {
		cfg.Images.Prefix = *prefix
	}
	if *start >= 0 {
		cfg.Images.StartIndex = *start
	}
	if *end >= 0 {
		cfg.Images.EndIndex = *end
	}
	if *detector != "" {
		cfg.Detector = *detector
	}
	if *descriptor != "" {
		cfg.Descriptor = *descriptor
	}
	if *matcher != "" {
		cfg.Matcher = *matcher
	}
	if *selector != "" {
		cfg.Selector = *selector
	}
	if *class != "" {
		cfg.DescriptorClass = *class
	}
	if *limit >= 0 {
		cfg.MaxKeypoints = *limit
	}
	if *noFocus {
		cfg.Focus.Enabled = false
	}
	if *visualize {
		cfg.Visualize = true
	}
	if *visDet {
		cfg.VisualizeKeypoints = true
	}
	if *visDir != "" {
		cfg.VisualizeDir = *visDir
	}
	if *verbose {
		cfg.LogLevel = "DEBUG"
	}

	logger.Default().SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := logger.Default().SetFile(cfg.LogFile); err != nil {
			logger.Warn("%v", err)
		}
	}
	defer logger.Default().Close()

	if *history {
		if err := printHistory(*dbFile); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("配置无效: %v", err)
		os.Exit(1)
	}

	if *saveConfig {
		if err := mgr.Save(cfg); err != nil {
			logger.Warn("保存配置失败: %v", err)
		} else {
			logger.Info("配置已保存到 %s", mgr.GetConfigFile())
		}
	}

	// Ctrl+C 在当前帧处理完后停止
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := &output{jsonFile: *jsonFile, plotDir: *plotDir, dbFile: *dbFile}
	if *sweep {
		err = runSweep(ctx, cfg, out)
	} else {
		err = runOnce(ctx, cfg, out)
	}
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// output 运行结果的附加输出目标
type output struct {
	jsonFile string
	plotDir  string
	dbFile   string
}

func runOnce(ctx context.Context, cfg *config.PipelineConfig, out *output) error {
	opts := pipeline.Options{
		Logger: logger.Default(),
		OnFrame: func(fs pipeline.FrameStats) {
			if err := report.WriteFrame(os.Stdout, cfg.Detector, cfg.Descriptor, fs); err != nil {
				logger.Warn("输出第 %d 帧统计失败: %v", fs.Index, err)
			}
		},
	}
	if cfg.Visualize {
		viewer := cv.NewViewer("Keypoint detection and matching")
		defer viewer.Close()
		opts.Viewer = viewer
	}

	p, err := pipeline.New(cfg, opts)
	if err != nil {
		return err
	}

	logger.Info("开始处理: %s (%d 帧)", p.Name(), cfg.Images.EndIndex-cfg.Images.StartIndex+1)
	started := time.Now()
	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.WriteSummary(os.Stdout, p.Name(), res.Summary); err != nil {
		return err
	}
	rec := report.NewRunRecord(p.Name(), cfg, res, started, snapshot())
	if out.jsonFile != "" {
		if err := report.WriteJSON(out.jsonFile, rec); err != nil {
			return err
		}
		logger.Info("运行记录已导出到 %s", out.jsonFile)
	}
	return out.save(rec, res)
}

func runSweep(ctx context.Context, cfg *config.PipelineConfig, out *output) error {
	combos := pipeline.Combinations()
	logger.Info("开始遍历 %d 个组合 (%s/%s)", len(combos), cfg.Matcher, cfg.Selector)

	results, err := pipeline.Sweep(ctx, cfg, combos, pipeline.Options{Logger: logger.Default()})
	if werr := report.WriteSweep(os.Stdout, results); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	host := snapshot()
	var records []*report.RunRecord
	for _, r := range results {
		if r.Err != nil {
			logger.Warn("%s 失败: %v", r.Combination, r.Err)
			continue
		}
		name := fmt.Sprintf("%s/%s/%s", r.Combination, r.Config.Matcher, r.Config.Selector)
		rec := report.NewRunRecord(name, r.Config, r.Result, r.Started, host)
		rec.Duration = r.Duration
		records = append(records, rec)
		if err := out.save(rec, r.Result); err != nil {
			return err
		}
	}

	if out.jsonFile != "" && len(records) > 0 {
		if err := report.WriteJSON(out.jsonFile, records...); err != nil {
			return err
		}
		logger.Info("运行记录已导出到 %s", out.jsonFile)
	}
	return nil
}

// save 把单次运行写入图表目录和运行历史数据库
func (o *output) save(rec *report.RunRecord, res *pipeline.Result) error {
	if o.plotDir != "" {
		files, err := report.SavePlots(o.plotDir, rec.Name, res)
		if err != nil {
			return err
		}
		logger.Info("图表已保存: %v", files)
	}

	if o.dbFile != "" {
		store, err := report.OpenStore(o.dbFile)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Insert(rec)
		if err != nil {
			return err
		}
		logger.Debug("运行记录已保存: ID=%d", id)
	}
	return nil
}

// snapshot 采集主机信息，失败时只记录警告
func snapshot() *process.Snapshot {
	s, err := process.TakeSnapshot()
	if err != nil {
		logger.Warn("采集主机信息失败: %v", err)
		return nil
	}
	return s
}

func printHistory(dbFile string) error {
	if dbFile == "" {
		return fmt.Errorf("请使用 -db 参数指定运行历史数据库")
	}
	if _, err := os.Stat(dbFile); err != nil {
		return fmt.Errorf("数据库不存在: %s", dbFile)
	}

	store, err := report.OpenStore(dbFile)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(0)
	if err != nil {
		return err
	}
	return report.WriteHistory(os.Stdout, runs)
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("featuretrack v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("featuretrack - 相邻帧关键点检测、描述与匹配")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  featuretrack [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  # 默认配置 (FAST + ORB, MAT_BF, SEL_KNN)")
	fmt.Println("  featuretrack -images ../images/")
	fmt.Println()
	fmt.Println("  # 保存每帧关键点图和匹配图")
	fmt.Println("  featuretrack -detector HARRIS -descriptor BRISK -vis-det -vis-dir vis/")
	fmt.Println()
	fmt.Println("  # SIFT + SIFT, FLANN 最近邻，保存图表")
	fmt.Println("  featuretrack -detector SIFT -descriptor SIFT -matcher MAT_FLANN -selector SEL_NN -plot out/")
	fmt.Println()
	fmt.Println("  # 遍历所有组合并写入运行历史")
	fmt.Println("  featuretrack -sweep -db runs.db -json sweep.json")
	fmt.Println("  featuretrack -history -db runs.db")
	fmt.Println()
	fmt.Printf("配置文件位置: %s\n", filepath.Clean(config.GetDefaultManager().GetConfigFile()))
}
