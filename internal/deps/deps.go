package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"misty/internal/config"
)

// Requirement defines an external program Misty invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// ForConfig lists the external programs the configuration refers to.
func ForConfig(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{{
		Name:        "Synthesizer",
		Command:     cfg.SynthesisBinary(),
		Description: "computes optical depth and flux for generate",
	}}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		status := Status{Requirement: req}
		if req.Command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to unavailable, non-optional requirements.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
