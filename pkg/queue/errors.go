package queue

import "errors"

// ErrStoreUnavailable names the "store unreachable" error kind. Store
// methods do not return it; they wrap the underlying database/sql error.
var ErrStoreUnavailable = errors.New("queue: store unavailable")

// ErrNotFound is returned when a command ID does not exist (e.g. it was
// already completed and claimed by the caller's own earlier attempt).
var ErrNotFound = errors.New("queue: command not found")

// ErrDeviceNotConnected is recorded against a claimed row when its device
// has no live upstream.Session, or has one that isn't connected. The literal
// message matches the original system's command_processor classification
// string so operators grepping last_error see the same text.
var ErrDeviceNotConnected = errors.New("Device not connected")
