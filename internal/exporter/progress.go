package exporter

// ProgressEvent 工作簿写入进度
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Rows    int    `json:"rows"`
	Total   int    `json:"total"`
}

// phase 一个写入阶段在整体进度中占据的百分比区间 [from, to]
type phase struct {
	stage  string
	from   int
	to     int
	report func(ProgressEvent)
}

func newPhase(report func(ProgressEvent), stage string, from, to int) phase {
	return phase{stage: stage, from: from, to: to, report: report}
}

// at 报告本阶段已写入 done/total 行；total 为 0 时直接到达区间终点
func (p phase) at(done, total int) {
	if p.report == nil {
		return
	}
	percent := p.to
	if total > 0 {
		percent = p.from + (p.to-p.from)*done/total
	}
	p.report(ProgressEvent{
		Stage:   p.stage,
		Percent: min(max(percent, 0), 100),
		Rows:    done,
		Total:   total,
	})
}
