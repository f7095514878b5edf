// Package logger 提供特征跟踪流水线使用的分级日志
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 解析日志级别字符串，无法识别时返回 INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger 日志记录器
type Logger struct {
	mu      sync.Mutex
	level   Level
	console io.Writer
	fileOut *os.File
	logger  *log.Logger
}

var defaultLogger = New()

// New 创建输出到 stderr 的 Logger，stdout 留给统计报告
func New() *Logger {
	l := &Logger{
		level:   INFO,
		console: os.Stderr,
		logger:  log.New(os.Stderr, "", 0),
	}
	return l
}

// Default 获取默认 logger
func Default() *Logger {
	return defaultLogger
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput 替换控制台输出，传入 nil 表示关闭控制台输出
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
	l.updateOutput()
}

// SetFile 追加写入日志文件，path 为空时关闭文件输出
func (l *Logger) SetFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileOut != nil {
		l.fileOut.Close()
		l.fileOut = nil
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("无法打开日志文件: %w", err)
		}
		l.fileOut = f
	}

	l.updateOutput()
	return nil
}

func (l *Logger) updateOutput() {
	var writers []io.Writer
	if l.console != nil {
		writers = append(writers, l.console)
	}
	if l.fileOut != nil {
		writers = append(writers, l.fileOut)
	}

	switch len(writers) {
	case 0:
		l.logger.SetOutput(io.Discard)
	case 1:
		l.logger.SetOutput(writers[0])
	default:
		l.logger.SetOutput(io.MultiWriter(writers...))
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%s | %-5s | %s", timestamp, level.String(), msg)
}

// Debug 输出 DEBUG 级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info 输出 INFO 级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn 输出 WARN 级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error 输出 ERROR 级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// LogStage 记录流水线阶段耗时，失败时以 ERROR 级别输出
//
//	12:00:01.250 | DEBUG | DET  | OK |    3.2ms | FAST n=1824
func (l *Logger) LogStage(stage string, err error, elapsed time.Duration, detail string) {
	ms := float64(elapsed.Microseconds()) / 1000
	if err != nil {
		l.Error("%-4s | NG | %7.1fms | %s: %v", stage, ms, detail, err)
		return
	}
	l.Debug("%-4s | OK | %7.1fms | %s", stage, ms, detail)
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileOut != nil {
		err := l.fileOut.Close()
		l.fileOut = nil
		l.updateOutput()
		return err
	}
	return nil
}

// 包级别便捷函数
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }
func LogStage(stage string, err error, elapsed time.Duration, detail string) {
	defaultLogger.LogStage(stage, err, elapsed, detail)
}
