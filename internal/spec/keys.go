package spec

import "fmt"

// Object-store layout shared by the runner and its callers.
const (
	DefaultRegisterKey    = "registers/uploaded_records_transfer_register.json"
	DefaultBundleMaxItems = 10_000
)

// StepPrefix is the directory holding one step's output objects.
func StepPrefix(executionID string, step int) string {
	return fmt.Sprintf("processed/%s/step_%d", executionID, step)
}

// StepMarker is the zero-byte object signalling a completed step. It is
// written only after the step's data object, so its presence certifies the
// data is in place.
func StepMarker(executionID string, step int) string {
	return StepPrefix(executionID, step) + "/_SUCCESS"
}
