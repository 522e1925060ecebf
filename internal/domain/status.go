package domain

// WebStatus is the outcome of the most recent liveness or refresh check of an entry URL.
type WebStatus string

const (
	StatusValid       WebStatus = "valid"
	StatusInvalid     WebStatus = "invalid"
	StatusUnavailable WebStatus = "unavailable"
	StatusUnknown     WebStatus = "unknown"
	// StatusUnreachable means no HTTP response at all (dial error, TLS failure, timeout).
	StatusUnreachable WebStatus = "unreachable"
	// StatusNoFile means a refresh could not obtain a valid document and the previous copy was kept.
	StatusNoFile WebStatus = "nofile"
)

// StatusFromCode maps an HTTP status code onto a WebStatus.
func StatusFromCode(code int) WebStatus {
	switch {
	case code >= 200 && code <= 299:
		return StatusValid
	case code >= 400 && code <= 499:
		return StatusInvalid
	case code >= 500 && code <= 599:
		return StatusUnavailable
	default:
		return StatusUnknown
	}
}

// IsKnown reports whether s belongs to the closed status set.
func (s WebStatus) IsKnown() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusUnavailable, StatusUnknown, StatusUnreachable, StatusNoFile:
		return true
	}
	return false
}
