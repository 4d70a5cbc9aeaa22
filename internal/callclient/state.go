package callclient

// State is the phase of one call attempt
type State int

const (
	StateIdle State = iota
	StateAcquiringMedia
	StateConnecting
	StateWaitingForPeer
	StateActive
	StateEnding
	StateEnded
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateAcquiringMedia: "acquiring-media",
	StateConnecting:     "connecting",
	StateWaitingForPeer: "waiting-for-peer",
	StateActive:         "active",
	StateEnding:         "ending",
	StateEnded:          "ended",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the guarded edges. Every non-terminal state may drop
// straight to ended on cancellation or setup failure.
var transitions = map[State][]State{
	StateIdle:           {StateAcquiringMedia},
	StateAcquiringMedia: {StateConnecting, StateEnded},
	StateConnecting:     {StateWaitingForPeer, StateEnded},
	StateWaitingForPeer: {StateActive, StateEnding, StateEnded},
	StateActive:         {StateEnding, StateEnded},
	StateEnding:         {StateEnded},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EndReason records which exit path finished the call
type EndReason string

const (
	ReasonExpired      EndReason = "expired"
	ReasonEndedByUser  EndReason = "ended-by-user"
	ReasonCancelled    EndReason = "cancelled"
	ReasonMediaFailure EndReason = "media-failure"
	ReasonSetupFailure EndReason = "setup-failure"
)
