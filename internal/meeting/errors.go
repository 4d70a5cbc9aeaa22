package meeting

import "errors"

// Meeting service error types
var (
	ErrForbidden          = errors.New("not allowed")
	ErrClassNotFound      = errors.New("class slot not found")
	ErrClassNotOpen       = errors.New("class is not open")
	ErrOutsideJoinWindow  = errors.New("outside join window")
	ErrSlotNotProposed    = errors.New("selected slot is not one of the proposed slots")
	ErrAlreadyDecided     = errors.New("request was already accepted or rejected")
	ErrPaymentNotRequired = errors.New("payment only required for paid requests")
	ErrNotAccepted        = errors.New("request must be accepted before payment")
	ErrAlreadyPaid        = errors.New("request already paid")
	ErrInvalidTimes       = errors.New("end time must not be zero")
)

// JoinWindowError carries the user-facing window message
type JoinWindowError struct {
	Message string
}

func (e *JoinWindowError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrOutsideJoinWindow) hold
func (e *JoinWindowError) Is(target error) bool { return target == ErrOutsideJoinWindow }
