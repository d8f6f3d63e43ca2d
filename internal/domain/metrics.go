package domain

import (
	"encoding/json"
	"fmt"
)

// MetricSample is one CPU/RAM measurement. It marshals to the on-disk
// [timestamp, cpu_percent, ram_mb] triple, so a series file is a single
// JSON array of arrays.
type MetricSample struct {
	Timestamp  float64
	CPUPercent float64
	MemoryMB   float64
}

func (s MetricSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{s.Timestamp, s.CPUPercent, s.MemoryMB})
}

func (s *MetricSample) UnmarshalJSON(data []byte) error {
	var triple []float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	if len(triple) < 3 {
		return fmt.Errorf("metric sample: expected 3 values, got %d", len(triple))
	}
	s.Timestamp = triple[0]
	s.CPUPercent = triple[1]
	s.MemoryMB = triple[2]
	return nil
}

// Metrics is the latest smoothed snapshot for a running server.
type Metrics struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}
