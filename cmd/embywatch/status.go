package main

import (
	"time"

	"github.com/d3v1l1989/embywatch/internal/scheduler"
	"github.com/d3v1l1989/embywatch/internal/service"
)

// statusReport is the /status document
type statusReport struct {
	Server service.MonitorStatus `json:"server"`
	Cycles []cycleReport         `json:"cycles"`
}

type cycleReport struct {
	Cycle      string    `json:"cycle"`
	OK         bool      `json:"ok"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

func cycleReports(results []scheduler.CycleResult) []cycleReport {
	out := make([]cycleReport, 0, len(results))
	for _, r := range results {
		report := cycleReport{
			Cycle:      r.Cycle,
			OK:         r.OK(),
			Stage:      r.Stage,
			StartedAt:  r.StartedAt,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			report.Error = r.Err.Error()
		}
		out = append(out, report)
	}
	return out
}
