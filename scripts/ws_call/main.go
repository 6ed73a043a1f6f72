package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/callwire/callwire-server/internal/proto"
)

// Manual smoke client: connect with a JWT, start or join a call, and print
// every event the server pushes. Run one instance per participant.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_call: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT token (from /api/auth/login)")
	chatID := flag.Int64("chat", 0, "chat to start a call in")
	callID := flag.String("call", "", "call to join")
	media := flag.String("media", "audio", "call media: audio or video")
	timeout := flag.Duration("timeout", 60*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(msgType string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", msgType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", msgType, err)
		}
		return nil
	}

	switch {
	case *chatID != 0:
		if err := send(proto.InboundTypeStartCall, proto.StartCallData{ChatID: chatID, Media: *media}); err != nil {
			return err
		}
	case *callID != "":
		if err := send(proto.InboundTypeJoinCall, proto.CallRefData{CallID: *callID}); err != nil {
			return err
		}
	default:
		fmt.Println("listening for incoming calls (pass -chat to start, -call to join)")
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		raw, _ := json.Marshal(outbound.Data)
		if outbound.Type == proto.OutboundTypeError {
			fmt.Printf("error: code=%s msg=%s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}
		fmt.Printf("event=%s data=%s\n", outbound.Event, raw)
	}
}
