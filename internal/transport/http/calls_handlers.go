package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/callwire/callwire-server/internal/proto"
	"github.com/callwire/callwire-server/internal/service/calls"
	"github.com/callwire/callwire-server/internal/store"
)

// CallsHandlers provides read-only HTTP access to call state. Lifecycle
// transitions go over the WebSocket; these endpoints let clients recover
// state after a reconnect.
type CallsHandlers struct {
	service *calls.Service
	log     *zerolog.Logger
}

// NewCallsHandlers creates a new calls handlers instance.
func NewCallsHandlers(svc *calls.Service, logger *zerolog.Logger) *CallsHandlers {
	return &CallsHandlers{
		service: svc,
		log:     logger,
	}
}

func snapshotToView(snap *calls.Snapshot) *proto.CallView {
	view := &proto.CallView{
		ID:              snap.Call.ID,
		Type:            string(snap.Call.Type),
		Media:           string(snap.Call.Media),
		ChatID:          snap.Call.ChatID,
		InitiatorUserID: snap.Call.InitiatorUserID,
		Status:          string(snap.Call.Status),
		Participants:    make([]proto.ParticipantView, 0, len(snap.Participants)),
		CreatedAt:       snap.Call.CreatedAt,
		EndedAt:         snap.Call.EndedAt,
	}
	for _, p := range snap.Participants {
		view.Participants = append(view.Participants, proto.ParticipantView{
			UserID:   p.UserID,
			Status:   string(p.Status),
			JoinedAt: p.JoinedAt,
			LeftAt:   p.LeftAt,
		})
	}
	return view
}

// GetCall handles retrieving a call with its participants.
// GET /api/calls/:id
func (h *CallsHandlers) GetCall(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	callID := c.Param("id")
	snap, err := h.service.Get(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, calls.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "call not found"})
			return
		}
		h.log.Error().Err(err).Str("call_id", callID).Msg("failed to get call")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if snap.Participant(uid) == nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant in this call"})
		return
	}

	c.JSON(http.StatusOK, snapshotToView(snap))
}

// ListActiveCalls handles listing active calls for the current user.
// GET /api/calls/active
func (h *CallsHandlers) ListActiveCalls(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	callsList, err := h.service.ListActive(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list active calls")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]*proto.CallView, 0, len(callsList))
	for _, call := range callsList {
		response = append(response, callToView(call))
	}
	c.JSON(http.StatusOK, response)
}

func callToView(call *store.Call) *proto.CallView {
	return &proto.CallView{
		ID:              call.ID,
		Type:            string(call.Type),
		Media:           string(call.Media),
		ChatID:          call.ChatID,
		InitiatorUserID: call.InitiatorUserID,
		Status:          string(call.Status),
		Participants:    []proto.ParticipantView{},
		CreatedAt:       call.CreatedAt,
		EndedAt:         call.EndedAt,
	}
}
