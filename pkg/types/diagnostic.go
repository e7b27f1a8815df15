// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Severity grades a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a finding produced while converting or validating a template.
// Diagnostics are values, never errors: a run with error diagnostics still
// produces output.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`

	// Code is a stable machine-readable identifier (e.g. "unresolved-field").
	Code string `json:"code" yaml:"code"`

	// Field is the source or destination field involved, if any.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Marker is the raw markup fragment involved, if any.
	Marker string `json:"marker,omitempty" yaml:"marker,omitempty"`

	Message string `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	if d.Field != "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Field, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}

// Diagnostics is an ordered list of findings.
type Diagnostics []Diagnostic

// HasErrors reports whether any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity diagnostics.
func (ds Diagnostics) Errors() Diagnostics { return ds.filter(SeverityError) }

// Warnings returns the warning-severity diagnostics.
func (ds Diagnostics) Warnings() Diagnostics { return ds.filter(SeverityWarning) }

func (ds Diagnostics) filter(s Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Errorf appends an error diagnostic.
func (ds *Diagnostics) Errorf(code, field, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityError, Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a warning diagnostic.
func (ds *Diagnostics) Warnf(code, field, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityWarning, Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Infof appends an informational diagnostic.
func (ds *Diagnostics) Infof(code, field, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Severity: SeverityInfo, Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}
