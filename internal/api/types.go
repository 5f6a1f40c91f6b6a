package api

import (
	"cohortaudit/internal/analytics"
	"cohortaudit/internal/notes"
)

// Inputs lists the files an analysis read.
type Inputs struct {
	JSONPaths []string `json:"json_paths"`
}

// AnalyticsResponse is the successful payload of an analysis request.
type AnalyticsResponse struct {
	OK       bool               `json:"ok"`
	Config   analytics.Config   `json:"config"`
	Inputs   Inputs             `json:"inputs"`
	PerFile  []notes.FileStats  `json:"per_file"`
	Clusters analytics.Clusters `json:"clusters"`
	Overall  analytics.Overall  `json:"overall"`
	Notes    analytics.Notes    `json:"notes"`
}

// LabResponse is the successful payload of a notes listing request.
type LabResponse struct {
	OK    bool          `json:"ok"`
	Notes []notes.Note  `json:"notes"`
	Meta  notes.LabMeta `json:"meta"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	OK           bool   `json:"ok"`
	LockFilePath string `json:"lock_file_path"`
	Workers      int    `json:"workers"`
	Sandbox      bool   `json:"sandbox"`
}

// FromResult combines an analysis result with the batch it was computed from.
func FromResult(result *analytics.Result, batch *notes.Batch) AnalyticsResponse {
	resp := AnalyticsResponse{OK: true, Inputs: Inputs{JSONPaths: []string{}}, PerFile: []notes.FileStats{}}
	if batch != nil {
		resp.Inputs.JSONPaths = append(resp.Inputs.JSONPaths, batch.Paths...)
		resp.PerFile = append(resp.PerFile, batch.Files...)
	}
	if result != nil {
		resp.Config = result.Config
		resp.Clusters = result.Clusters
		resp.Overall = result.Overall
		resp.Notes = result.Notes
	}
	return resp
}

// FromLab wraps a notes union for transport.
func FromLab(lab *notes.Lab) LabResponse {
	resp := LabResponse{OK: true, Notes: []notes.Note{}}
	if lab != nil {
		resp.Notes = append(resp.Notes, lab.Notes...)
		resp.Meta = lab.Meta
	}
	return resp
}
