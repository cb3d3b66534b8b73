// Package report implements the cycle-scoped event sink (C9) and its
// serialization to the neutral record external notifiers consume, in
// the same Response-envelope style the teacher uses for its JSON
// command output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// EngineVersion is stamped into every emitted record.
const EngineVersion = "dev"

// Outcome mirrors the data model's UpdateOutcome.
type Outcome struct {
	Container    string        `json:"container"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	Category     string        `json:"category"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
	Status       string        `json:"status"` // succeeded, failed, skipped
	RejectReason string        `json:"rejectReason,omitempty"`
}

// Collector is the append-only event sink for a single cycle. It is
// not safe for concurrent use — the orchestrator is single-threaded
// per §5, so no locking is needed.
type Collector struct {
	runID             string
	startedAt         time.Time
	endedAt           time.Time
	containersChecked int
	containersUpdated int
	containersFailed  int
	containersSkipped int
	updates           []Outcome
	errors            []string
	warnings          []string
}

// New creates a Collector with a fresh run ID.
func New() *Collector {
	return &Collector{runID: uuid.NewString()}
}

func (c *Collector) MarkStart() { c.startedAt = time.Now() }
func (c *Collector) MarkEnd()   { c.endedAt = time.Now() }

// Reset clears all accumulated state but keeps the run ID, matching
// the teacher's pattern of reusing one long-lived object across
// requests rather than reallocating.
func (c *Collector) Reset() {
	runID := c.runID
	*c = Collector{runID: runID}
}

func (c *Collector) IncProcessed() { c.containersChecked++ }
func (c *Collector) IncSkipped()   { c.containersSkipped++ }

func (c *Collector) AddUpdate(o Outcome) {
	c.updates = append(c.updates, o)
	switch o.Status {
	case "succeeded":
		c.containersUpdated++
	case "failed":
		c.containersFailed++
	}
}

func (c *Collector) AddError(msg string) {
	c.errors = append(c.errors, msg)
}

func (c *Collector) AddWarning(msg string) {
	c.warnings = append(c.warnings, msg)
}

// RunReport is the neutral, serializable record produced at cycle end.
type RunReport struct {
	RunID             string        `json:"runId"`
	EngineVersion     string        `json:"engineVersion"`
	StartedAt         time.Time     `json:"startedAt"`
	EndedAt           time.Time     `json:"endedAt"`
	Duration          time.Duration `json:"duration"`
	ContainersChecked int           `json:"containersChecked"`
	ContainersUpdated int           `json:"containersUpdated"`
	ContainersFailed  int           `json:"containersFailed"`
	ContainersSkipped int           `json:"containersSkipped"`
	Updates           []Outcome     `json:"updates"`
	Errors            []string      `json:"errors,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
}

func (c *Collector) Build() RunReport {
	return RunReport{
		RunID:             c.runID,
		EngineVersion:     EngineVersion,
		StartedAt:         c.startedAt,
		EndedAt:           c.endedAt,
		Duration:          c.endedAt.Sub(c.startedAt),
		ContainersChecked: c.containersChecked,
		ContainersUpdated: c.containersUpdated,
		ContainersFailed:  c.containersFailed,
		ContainersSkipped: c.containersSkipped,
		Updates:           c.updates,
		Errors:            c.errors,
		Warnings:          c.warnings,
	}
}

// Response is the standardized envelope every CLI invocation's JSON
// output is wrapped in, mirroring the teacher's internal/output
// package but carrying a RunReport instead of an arbitrary payload.
type Response struct {
	Success   bool      `json:"success"`
	Data      RunReport `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp string    `json:"timestamp"`
	Version   string    `json:"version"`
}

func (c *Collector) ToResponse(cycleErr error) Response {
	resp := Response{
		Data:      c.Build(),
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   EngineVersion,
	}
	if cycleErr != nil {
		resp.Error = cycleErr.Error()
	} else {
		resp.Success = true
	}
	return resp
}

// WriteJSON writes the response as indented JSON, matching the
// teacher's output formatting.
func WriteJSON(w io.Writer, resp Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	return nil
}
