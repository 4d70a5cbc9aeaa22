package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"skillswap/internal/auth"
	"skillswap/pkg/types"
)

// UpsertUserRequest is the body of PUT /api/users/me
type UpsertUserRequest struct {
	Name   string  `json:"name"`
	Price4 float64 `json:"price4"`
	Price6 float64 `json:"price6"`
}

// CreateRequestBody is the body of POST /api/requests
type CreateRequestBody struct {
	ToUser        string            `json:"toUser"`
	Type          types.RequestType `json:"type"`
	Classes       int               `json:"classes"`
	ProposedSlots []time.Time       `json:"proposedSlots"`
}

// SelectSlotBody is the body of PUT /api/requests/:id/select-slot
type SelectSlotBody struct {
	SelectedSlot time.Time `json:"selectedSlot"`
}

// PayResponse returns the paid request and, when scheduling succeeded, its meeting
type PayResponse struct {
	Request *types.Request `json:"request"`
	Meeting *types.Meeting `json:"meeting,omitempty"`
}

// bindOptional decodes a JSON body when one is present
func bindOptional(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

func indexParam(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, errInvalidBody
	}
	return index, nil
}

func (s *Server) upsertMe(c *gin.Context) {
	var body UpsertUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.sendError(c, errInvalidBody)
		return
	}
	caller := auth.UserID(c)
	user, err := s.service.UpsertUser(c.Request.Context(), caller, &types.User{
		ID:     caller,
		Name:   body.Name,
		Price4: body.Price4,
		Price6: body.Price6,
	})
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// FUNCTIONAL DISCOVERY: POST /api/requests - the requester is always the caller
func (s *Server) createRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.sendError(c, errInvalidBody)
		return
	}
	req, err := s.service.CreateRequest(c.Request.Context(), auth.UserID(c), &types.Request{
		ToUser:        body.ToUser,
		Type:          body.Type,
		Classes:       body.Classes,
		ProposedSlots: body.ProposedSlots,
	})
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Server) listIncoming(c *gin.Context) {
	reqs, err := s.service.ListIncoming(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) listSent(c *gin.Context) {
	reqs, err := s.service.ListSent(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) getRequest(c *gin.Context) {
	req, err := s.service.GetRequest(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) selectSlot(c *gin.Context) {
	var body SelectSlotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.sendError(c, errInvalidBody)
		return
	}
	req, err := s.service.SelectSlot(c.Request.Context(), auth.UserID(c), c.Param("id"), body.SelectedSlot)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) rejectRequest(c *gin.Context) {
	req, err := s.service.RejectRequest(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// FUNCTIONAL DISCOVERY: POST /api/payment/:requestId/pay - body is optional
// and may override the class cadence
func (s *Server) pay(c *gin.Context) {
	var opts types.ScheduleOptions
	if err := bindOptional(c, &opts); err != nil {
		s.sendError(c, err)
		return
	}
	req, meeting, err := s.service.Pay(c.Request.Context(), auth.UserID(c), c.Param("requestId"), opts)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, PayResponse{Request: req, Meeting: meeting})
}

func (s *Server) getMeeting(c *gin.Context) {
	meeting, err := s.service.GetMeeting(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

func (s *Server) listMeetings(c *gin.Context) {
	meetings, err := s.service.ListMeetingsForUser(c.Request.Context(), auth.UserID(c), c.Param("userId"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, meetings)
}

func (s *Server) revealRoom(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	reveal, err := s.service.RevealRoom(c.Request.Context(), auth.UserID(c), c.Param("id"), index)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, reveal)
}

func (s *Server) roomInfo(c *gin.Context) {
	info, err := s.service.RoomInfo(c.Request.Context(), auth.UserID(c), c.Param("roomName"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) completeClass(c *gin.Context) {
	index, err := indexParam(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	var report types.CompletionReport
	if err := bindOptional(c, &report); err != nil {
		s.sendError(c, err)
		return
	}
	slot, err := s.service.CompleteClass(c.Request.Context(), auth.UserID(c), c.Param("id"), index, report)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) listNotifications(c *gin.Context) {
	notes, err := s.service.ListNotifications(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	note, err := s.service.MarkNotificationRead(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}
