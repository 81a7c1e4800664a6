package monitor

import (
	"github.com/shirou/gopsutil/v4/cpu"
)

type CPUMonitor struct{}

func NewCPUMonitor() *CPUMonitor {
	return &CPUMonitor{}
}

func (m *CPUMonitor) Name() string {
	return "cpu"
}

// Collect reports usage since the previous call; the first call may report 0.
func (m *CPUMonitor) Collect() (any, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}

	var overall float64
	if len(percentages) > 0 {
		overall = percentages[0]
	}

	cores, err := cpu.Counts(true)
	if err != nil {
		return nil, err
	}

	return &CPUState{
		UsagePercent: overall,
		Cores:        cores,
	}, nil
}
