package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowcraft/plugin-sources/internal/importer"
)

// Report is the outcome of one Load call
type Report struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sources    []SourceReport `json:"sources"`
}

// SourceReport is the outcome of loading one source
type SourceReport struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Details map[string]string `json:"details"`
	// Error is set when the source could not be used at all
	Error   error          `json:"-"`
	Modules []ModuleReport `json:"modules"`
}

// ModuleReport is the outcome of importing one module
type ModuleReport struct {
	Name   string           `json:"name"`
	Module *importer.Module `json:"module,omitempty"`
	Error  error            `json:"-"`
}

// Err joins every error of the report, nil when everything loaded
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Sources {
		if s.Error != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", s.Name, s.Error))
		}
		for _, m := range s.Modules {
			if m.Error != nil {
				errs = append(errs, fmt.Errorf("source %s module %s: %w", s.Name, m.Name, m.Error))
			}
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether any source or module failed
func (r *Report) Failed() bool {
	return r.Err() != nil
}

// Source returns the report of the named source
func (r *Report) Source(name string) (*SourceReport, bool) {
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			return &r.Sources[i], true
		}
	}
	return nil, false
}

// Module returns the report of the named module
func (s *SourceReport) Module(name string) (*ModuleReport, bool) {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i], true
		}
	}
	return nil, false
}

// Loaded returns the successfully imported modules
func (s *SourceReport) Loaded() []*importer.Module {
	var out []*importer.Module
	for _, m := range s.Modules {
		if m.Error == nil && m.Module != nil {
			out = append(out, m.Module)
		}
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// MarshalJSON renders Error as a string
func (s SourceReport) MarshalJSON() ([]byte, error) {
	type alias SourceReport
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(s), Error: errString(s.Error)})
}

// MarshalJSON renders Error as a string
func (m ModuleReport) MarshalJSON() ([]byte, error) {
	type alias ModuleReport
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(m), Error: errString(m.Error)})
}
