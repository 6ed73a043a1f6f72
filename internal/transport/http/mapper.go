package http

import (
	"encoding/json"

	"github.com/callwire/callwire-server/internal/core"
	"github.com/callwire/callwire-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeStartCall:
		var start proto.StartCallData
		if err := json.Unmarshal(inbound.Data, &start); err != nil {
			return nil, nil, err
		}
		if start.ChatID == nil && len(start.ParticipantIDs) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "chat_id or participant_ids is required"}, nil
		}
		return &core.Command{
			Kind:           core.CommandStartCall,
			ChatID:         start.ChatID,
			ParticipantIDs: start.ParticipantIDs,
			Media:          start.Media,
		}, nil, nil
	case proto.InboundTypeJoinCall, proto.InboundTypeEndCall, proto.InboundTypeRejectCall:
		var ref proto.CallRefData
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, nil, err
		}
		if ref.CallID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "call_id is required"}, nil
		}
		kind := core.CommandJoinCall
		switch inbound.Type {
		case proto.InboundTypeEndCall:
			kind = core.CommandEndCall
		case proto.InboundTypeRejectCall:
			kind = core.CommandRejectCall
		}
		return &core.Command{Kind: kind, CallID: ref.CallID}, nil, nil
	case proto.InboundTypeOffer, proto.InboundTypeAnswer, proto.InboundTypeICECandidate:
		var signal proto.SignalData
		if err := json.Unmarshal(inbound.Data, &signal); err != nil {
			return nil, nil, err
		}
		if signal.TargetUserID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "target_user_id is required"}, nil
		}
		kind := core.SignalOffer
		switch inbound.Type {
		case proto.InboundTypeAnswer:
			kind = core.SignalAnswer
		case proto.InboundTypeICECandidate:
			kind = core.SignalICECandidate
		}
		return &core.Command{
			Kind:         core.CommandRelaySignal,
			Signal:       kind,
			CallID:       signal.CallID,
			TargetUserID: signal.TargetUserID,
			Payload:      signal.Payload,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

var eventNames = map[core.EventKind]string{
	core.EventCallStarted:       proto.EventCallStarted,
	core.EventCallIncoming:      proto.EventIncomingCall,
	core.EventCallJoined:        proto.EventCallJoined,
	core.EventCallAccepted:      proto.EventCallAccepted,
	core.EventParticipantJoined: proto.EventParticipantJoined,
	core.EventParticipantLeft:   proto.EventParticipantLeft,
	core.EventCallRejected:      proto.EventCallRejected,
	core.EventCallEnded:         proto.EventCallEnded,
}

var signalEventNames = map[core.SignalKind]string{
	core.SignalOffer:        proto.InboundTypeOffer,
	core.SignalAnswer:       proto.InboundTypeAnswer,
	core.SignalICECandidate: proto.InboundTypeICECandidate,
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventCallSignal:
		name := signalEventNames[event.Signal.Kind]
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data: proto.SignalEventData{
				CallID:     event.Signal.CallID,
				FromUserID: event.FromUserID,
				Payload:    event.Signal.Payload,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		name, ok := eventNames[event.Kind]
		if !ok {
			return proto.Outbound{Type: proto.OutboundTypeEvent}
		}
		view := callInfoToView(event.Call)
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data: proto.CallEventData{
				Call:       view,
				FromUserID: event.FromUserID,
				Reason:     event.Reason,
				Ringing:    view != nil && view.Status == "ringing",
			},
		}
	}
}

func callInfoToView(info *core.CallInfo) *proto.CallView {
	if info == nil {
		return nil
	}
	view := &proto.CallView{
		ID:              info.ID,
		Type:            info.Type,
		Media:           info.Media,
		ChatID:          info.ChatID,
		InitiatorUserID: info.InitiatorUserID,
		Status:          info.Status,
		Participants:    make([]proto.ParticipantView, 0, len(info.Participants)),
		CreatedAt:       info.CreatedAt,
		EndedAt:         info.EndedAt,
	}
	for _, p := range info.Participants {
		view.Participants = append(view.Participants, proto.ParticipantView{
			UserID:   p.UserID,
			Status:   p.Status,
			JoinedAt: p.JoinedAt,
			LeftAt:   p.LeftAt,
		})
	}
	return view
}
