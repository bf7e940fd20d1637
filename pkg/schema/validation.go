package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single problem found while checking a graph
// definition, located by a JSON-pointer-ish path into the document.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult collects every issue found across the validation
// passes. Issues keep the order in which they were reported.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// Valid reports whether the definition can be accepted. Warnings do not
// block acceptance.
func (r *ValidationResult) Valid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity issues.
func (r *ValidationResult) Errors() []ValidationIssue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity issues.
func (r *ValidationResult) Warnings() []ValidationIssue {
	return r.filter(SeverityWarning)
}

func (r *ValidationResult) filter(sev ValidationSeverity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// AddError records an error-severity issue at path.
func (r *ValidationResult) AddError(path, code, message string) {
	r.add(path, code, message, SeverityError)
}

// AddWarning records a warning-severity issue at path.
func (r *ValidationResult) AddWarning(path, code, message string) {
	r.add(path, code, message, SeverityWarning)
}

func (r *ValidationResult) add(path, code, message string, sev ValidationSeverity) {
	r.Issues = append(r.Issues, ValidationIssue{
		Path:     path,
		Code:     code,
		Message:  message,
		Severity: sev,
	})
}

// Merge appends another result's issues onto this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// ToError collapses an invalid result into a DEFINITION_ERROR carrying the
// full issue list in its details. A valid result yields nil.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	errs := r.Errors()
	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(errs))
	}

	return NewError(ErrCodeDefinition, msg).
		WithDetails(map[string]any{
			"issues": r.Issues,
		})
}
