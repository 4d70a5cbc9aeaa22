package api

import (
	"errors"
	"net/http"

	"skillswap/internal/auth"
	"skillswap/internal/meeting"
	"skillswap/internal/scheduler"
	"skillswap/pkg/interfaces"
	"skillswap/pkg/types"
)

var errInvalidBody = errors.New("invalid request body")

// badRequest lists errors whose message is safe and actionable for the client
var badRequest = []error{
	errInvalidBody,
	types.ErrInvalidUserID,
	types.ErrInvalidRequestType,
	types.ErrInvalidClassCount,
	types.ErrNoProposedSlots,
	types.ErrInvalidProposedSlot,
	types.ErrSelfRequest,
	types.ErrInvalidUserName,
	types.ErrInvalidPrice,
	types.ErrInvalidRoomName,
	meeting.ErrSlotNotProposed,
	meeting.ErrPaymentNotRequired,
	meeting.ErrNotAccepted,
	meeting.ErrAlreadyPaid,
	meeting.ErrInvalidTimes,
	scheduler.ErrClassDatesMismatch,
	scheduler.ErrInvalidClassDate,
}

// statusFor maps service errors to an HTTP status and a client message.
// FUNCTIONAL DISCOVERY: Infrastructure failures never leak their text
func statusFor(err error) (int, string) {
	var windowErr *meeting.JoinWindowError
	switch {
	case errors.As(err, &windowErr):
		return http.StatusBadRequest, windowErr.Message
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, meeting.ErrForbidden), errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, meeting.ErrClassNotFound):
		return http.StatusNotFound, notFoundMessage(err)
	case errors.Is(err, meeting.ErrAlreadyDecided),
		errors.Is(err, meeting.ErrClassNotOpen),
		errors.Is(err, interfaces.ErrConflict):
		return http.StatusConflict, conflictMessage(err)
	}

	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest, target.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func notFoundMessage(err error) string {
	if errors.Is(err, meeting.ErrClassNotFound) {
		return meeting.ErrClassNotFound.Error()
	}
	return err.Error()
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, meeting.ErrAlreadyDecided):
		return meeting.ErrAlreadyDecided.Error()
	case errors.Is(err, meeting.ErrClassNotOpen):
		return meeting.ErrClassNotOpen.Error()
	default:
		return interfaces.ErrConflict.Error()
	}
}
