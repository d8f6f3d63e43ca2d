package sdk

import "time"

type Server struct {
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Kind      string     `json:"kind"`
	Command   string     `json:"command,omitempty"`
	Args      string     `json:"args,omitempty"`
	Port      int        `json:"port,omitempty"`
	VenvPath  string     `json:"venv_path,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

type ServerUpdate struct {
	Path     *string `json:"path,omitempty"`
	Kind     *string `json:"kind,omitempty"`
	Command  *string `json:"command,omitempty"`
	Args     *string `json:"args,omitempty"`
	Port     *int    `json:"port,omitempty"`
	VenvPath *string `json:"venv_path,omitempty"`
}

type Stack struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Port   int    `json:"port,omitempty"`
}

type MetricsSnapshot struct {
	Running    bool    `json:"running"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// MetricSample is a [timestamp, cpu_percent, ram_mb] triple as served by
// the history endpoint.
type MetricSample []float64

func (s MetricSample) Timestamp() float64 {
	if len(s) > 0 {
		return s[0]
	}
	return 0
}

func (s MetricSample) CPUPercent() float64 {
	if len(s) > 1 {
		return s[1]
	}
	return 0
}

func (s MetricSample) MemoryMB() float64 {
	if len(s) > 2 {
		return s[2]
	}
	return 0
}
