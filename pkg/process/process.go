// Package process 采集运行环境的主机与进程资源信息，随运行结果一起保存
package process

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HostInfo 主机信息
type HostInfo struct {
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Platform    string `json:"platform,omitempty"`
	Arch        string `json:"arch"`
	CPUModel    string `json:"cpu_model,omitempty"`
	CPUCores    int    `json:"cpu_cores"`
	TotalMemory uint64 `json:"total_memory"`
	GoVersion   string `json:"go_version"`
}

// ProcessInfo 进程信息
type ProcessInfo struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
	// RSS 常驻内存字节数
	RSS uint64 `json:"rss"`
}

// Snapshot 一次采样的主机与当前进程信息
type Snapshot struct {
	Host    HostInfo    `json:"host"`
	Process ProcessInfo `json:"process"`
}

// GetHostInfo 获取主机信息
//
// 单项采集失败时该字段留空，只有全部失败才返回错误。
func GetHostInfo() (*HostInfo, error) {
	info := &HostInfo{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUCores:  runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}

	var failed int
	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
	} else {
		failed++
	}

	if cpus, err := cpu.Info(); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	} else {
		failed++
	}
	if n, err := cpu.Counts(false); err == nil && n > 0 {
		info.CPUCores = n
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	} else {
		failed++
	}

	if failed == 3 {
		return nil, fmt.Errorf("获取主机信息失败")
	}
	return info, nil
}

// GetProcessByPID 按 PID 获取进程信息
func GetProcessByPID(pid int) (*ProcessInfo, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("进程不存在: PID=%d", pid)
	}

	name, _ := proc.Name()
	info := &ProcessInfo{PID: pid, Name: name}
	if m, err := proc.MemoryInfo(); err == nil {
		info.RSS = m.RSS
	}
	return info, nil
}

// Self 当前进程信息
func Self() (*ProcessInfo, error) {
	return GetProcessByPID(os.Getpid())
}

// TakeSnapshot 采集主机与当前进程信息
func TakeSnapshot() (*Snapshot, error) {
	h, err := GetHostInfo()
	if err != nil {
		return nil, err
	}
	p, err := Self()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Host: *h, Process: *p}, nil
}
