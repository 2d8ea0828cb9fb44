package chatapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/uimessage"
)

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var body orchestrator.ChatRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if body.UserID == "" {
		body.UserID = r.Header.Get("user-id")
	}

	ctx := r.Context()
	stream, prepared, err := s.chat.Stream(ctx, body)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoMessages) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		log.Error(ctx, err)
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	defer stream.Close()

	log.Print(ctx,
		log.KV{K: "msg", V: "chat turn"},
		log.KV{K: "model", V: prepared.Model},
		log.KV{K: "tool-mode", V: string(prepared.ToolSet.Mode)},
	)

	uimessage.StartResponse(w)
	out := uimessage.NewWriter(w)
	out.Start(uuid.NewString())
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			// Client went away or the stream ended without an end event.
			return
		}
		if out.Event(ev) {
			return
		}
		if out.Err() != nil {
			log.Error(ctx, out.Err(), log.KV{K: "msg", V: "ui message stream write failed"})
			return
		}
	}
}
