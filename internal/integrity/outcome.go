// Package integrity implements per-object checksum verification, replica
// repair and common-metadata repair against the grid.
package integrity

// Status classifies the result of processing one path.
type Status int

const (
	StatusPassed Status = iota
	StatusRepaired
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusRepaired:
		return "repaired"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one unit of work. Exactly one Outcome is produced
// per input path.
type Outcome struct {
	Path   string
	Status Status
	Err    error // Set when Status is StatusFailed
}

// Passed reports a path that needed no work.
func Passed(path string) Outcome {
	return Outcome{Path: path, Status: StatusPassed}
}

// Repaired reports a path that was mutated into a correct state.
func Repaired(path string) Outcome {
	return Outcome{Path: path, Status: StatusRepaired}
}

// Failed reports a path that is incorrect or could not be processed.
func Failed(path string, err error) Outcome {
	return Outcome{Path: path, Status: StatusFailed, Err: err}
}

// Skipped reports a path deliberately left untouched.
func Skipped(path string) Outcome {
	return Outcome{Path: path, Status: StatusSkipped}
}
