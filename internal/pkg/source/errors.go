package source

import "fmt"

// MissingRawDataError is returned when a raw file is absent and cannot be
// downloaded, either because the run is offline or the source has no URL.
type MissingRawDataError struct {
	Name string
	Path string
	Err  error
}

func (e *MissingRawDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("raw data %q missing at %s: %v", e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("raw data %q missing at %s", e.Name, e.Path)
}

func (e *MissingRawDataError) Unwrap() error {
	return e.Err
}
