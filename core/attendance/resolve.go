package attendance

import (
	"time"
)

// ClassifySession derives the half-day session from an institution-local
// instant. A caller-supplied override wins verbatim.
func ClassifySession(local time.Time, override Session) Session {
	if override != "" {
		return override
	}
	if local.Hour() < 12 {
		return SessionAM
	}
	return SessionPM
}

// ResolveState computes PRESENT or LATE from the observed instant versus the
// scheduled start plus tolerance. Both instants must be in the same location;
// arrival at exactly start+tolerance still counts as PRESENT. ABSENT is never
// produced here: only the sweeper or a rejected withdrawal can produce it.
func ResolveState(observed, start time.Time, toleranceMin int) StateCode {
	if observed.Sub(start) <= time.Duration(toleranceMin)*time.Minute {
		return StatePresent
	}
	return StateLate
}
