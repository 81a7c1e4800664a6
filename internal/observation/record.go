package observation

import "sort"

// Counter names reported by the instrumented simulator alongside complexity.
const (
	CounterBlocks     = "nblocks"
	CounterMethods    = "nmethod"
	CounterInsts      = "ninsts"
	CounterDataWrites = "ndataWrites"
	CounterDataReads  = "ndataReads"
)

// Record is one logged simulator invocation. Records are never modified after reading.
type Record struct {
	Task       string           `json:"task"`
	Parameters string           `json:"parameters"`
	Complexity float64          `json:"complexity"`
	Counters   map[string]int64 `json:"counters,omitempty"`
}

// GroupByTask buckets records by task, keeping input order within a task.
func GroupByTask(records []Record) map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range records {
		groups[r.Task] = append(groups[r.Task], r)
	}
	return groups
}

// Tasks returns the distinct task ids in sorted order.
func Tasks(records []Record) []string {
	seen := make(map[string]bool)
	var tasks []string
	for _, r := range records {
		if !seen[r.Task] {
			seen[r.Task] = true
			tasks = append(tasks, r.Task)
		}
	}
	sort.Strings(tasks)
	return tasks
}
