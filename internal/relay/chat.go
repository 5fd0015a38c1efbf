package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MegaGrindStone/study-buddy/internal/services"
	"go.uber.org/zap"
)

// HandleChat answers a {sessionId, chatInput} request with the upstream's plain-text reply.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondText(w, http.StatusMethodNotAllowed, "Only POST allowed")
		return
	}

	var req services.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SessionID == "" || req.ChatInput == "" {
		respondText(w, http.StatusBadRequest, "Missing sessionId or chatInput")
		return
	}

	reply, err := h.upstream.Reply(r.Context(), req.SessionID, req.ChatInput)
	if err != nil {
		h.logger.Error("Upstream failed",
			zap.String("sessionID", req.SessionID),
			zap.String("err", err.Error()))
		respondText(w, http.StatusBadGateway, fmt.Sprintf("Error communicating with upstream: %s", err))
		return
	}

	respondText(w, http.StatusOK, reply)
}
