package copier

import "fmt"

// ExistsError reports a destination data object that already exists when
// overwriting was not allowed.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%s already exists", e.Path)
}

// ChecksumError reports an existing destination whose content differs from
// the source. It aborts the copy run.
type ChecksumError struct {
	Path     string
	Expected string
	Observed string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch at %s: expected %s, observed %s",
		e.Path, e.Expected, e.Observed)
}
