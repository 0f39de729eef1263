package analyzer

// Status of the remote analyzer, set once by Probe
type Status int32

const (
	StatusUnprobed Status = iota
	StatusAvailable
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unprobed"
	}
}
