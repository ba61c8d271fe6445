package ports

import "errors"

// ErrGraphNotFound is returned when a workflow graph id does not resolve
// within the caller's organization.
var ErrGraphNotFound = errors.New("workflow not found in your organization")

// ErrDeviceNotFound is returned when a device id does not resolve within the
// caller's organization.
var ErrDeviceNotFound = errors.New("device not found in your organization")
