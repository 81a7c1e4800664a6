package monitor

import (
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMonitor samples the current process.
type ProcessMonitor struct {
	mu   sync.Mutex
	proc *process.Process
}

func NewProcessMonitor() (*ProcessMonitor, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessMonitor{proc: p}, nil
}

func (m *ProcessMonitor) Name() string {
	return "process"
}

func (m *ProcessMonitor) Collect() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return nil, err
	}

	threads, err := m.proc.NumThreads()
	if err != nil {
		return nil, err
	}

	// CPUPercent is averaged over the process lifetime.
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return nil, err
	}

	return &ProcessState{
		PID:        m.proc.Pid,
		RSSBytes:   mem.RSS,
		Threads:    threads,
		CPUPercent: cpuPercent,
		Goroutines: runtime.NumGoroutine(),
	}, nil
}
