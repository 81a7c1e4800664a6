package observation

// Ratio holds per-task averages of instrumentation counters per executed method.
type Ratio struct {
	Task            string  `json:"task"`
	ReadsPerMethod  float64 `json:"reads_per_method"`
	BlocksPerMethod float64 `json:"blocks_per_method"`
	InstsPerMethod  float64 `json:"insts_per_method"`
	Samples         int     `json:"samples"`
}

// Ratios averages reads, blocks and instructions per method for every task.
// Records without counters or with zero methods are ignored. Tasks are
// returned in sorted order; a task with no usable record reports zeros.
func Ratios(records []Record) []Ratio {
	groups := GroupByTask(records)
	ratios := make([]Ratio, 0, len(groups))

	for _, task := range Tasks(records) {
		r := Ratio{Task: task}
		for _, rec := range groups[task] {
			methods, ok := rec.Counters[CounterMethods]
			if !ok || methods == 0 {
				continue
			}
			reads, okR := rec.Counters[CounterDataReads]
			blocks, okB := rec.Counters[CounterBlocks]
			insts, okI := rec.Counters[CounterInsts]
			if !okR || !okB || !okI {
				continue
			}

			m := float64(methods)
			r.ReadsPerMethod += float64(reads) / m
			r.BlocksPerMethod += float64(blocks) / m
			r.InstsPerMethod += float64(insts) / m
			r.Samples++
		}
		if r.Samples > 0 {
			n := float64(r.Samples)
			r.ReadsPerMethod /= n
			r.BlocksPerMethod /= n
			r.InstsPerMethod /= n
		}
		ratios = append(ratios, r)
	}
	return ratios
}
