package reconcile

import "fmt"

// Mode is where mutations go first.
type Mode int

const (
	// ModeLocalOnly applies every change to the local collection only.
	ModeLocalOnly Mode = iota
	// ModeRemoteActive sends every change to the remote store first.
	ModeRemoteActive
)

func (m Mode) String() string {
	switch m {
	case ModeLocalOnly:
		return "local-only"
	case ModeRemoteActive:
		return "remote-active"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Status is the outcome of the last load or mutation.
type Status int

const (
	StatusNone Status = iota
	StatusRemoteSynced
	StatusRemoteEmpty
	StatusLocalMode
	StatusRemoteUnavailable
	StatusCreateSavedLocally
	StatusUpdateSavedLocally
	StatusDeleteSavedLocally
	StatusNotFound
	StatusValidationFailed
)

var statusMessages = map[Status]string{
	StatusNone:               "",
	StatusRemoteSynced:       "Connected to the remote notes API.",
	StatusRemoteEmpty:        "No notes are stored yet. Create a new note to get started.",
	StatusLocalMode:          "Local data mode. The remote notes API is not used.",
	StatusRemoteUnavailable:  "Could not reach the remote notes API. Switched to local data mode.",
	StatusCreateSavedLocally: "Saving to the remote notes API failed. The note was added locally.",
	StatusUpdateSavedLocally: "Updating the remote note failed. The change was saved locally.",
	StatusDeleteSavedLocally: "Deleting the remote note failed. The note was removed locally.",
	StatusNotFound:           "The note no longer exists on the remote notes API.",
	StatusValidationFailed:   "The remote notes API rejected the note.",
}

// Message returns the fixed user-facing text of the status.
func (s Status) Message() string {
	return statusMessages[s]
}

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusRemoteSynced:
		return "remote_synced"
	case StatusRemoteEmpty:
		return "remote_empty"
	case StatusLocalMode:
		return "local_mode"
	case StatusRemoteUnavailable:
		return "remote_unavailable"
	case StatusCreateSavedLocally:
		return "create_saved_locally"
	case StatusUpdateSavedLocally:
		return "update_saved_locally"
	case StatusDeleteSavedLocally:
		return "delete_saved_locally"
	case StatusNotFound:
		return "not_found"
	case StatusValidationFailed:
		return "validation_failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Degraded reports whether the status describes a failure the user should see.
func (s Status) Degraded() bool {
	switch s {
	case StatusRemoteUnavailable, StatusCreateSavedLocally, StatusUpdateSavedLocally,
		StatusDeleteSavedLocally, StatusNotFound, StatusValidationFailed:
		return true
	}
	return false
}
