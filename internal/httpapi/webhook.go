package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/orchestrator"
)

const webhookErrorReply = "Lo siento, hubo un error al procesar tu mensaje."

// handleWhatsAppWebhook receives Twilio form posts. The bot is resolved by
// explicit bot id (query or form) or by the To number. Internal failures
// still answer 200 with an apology TwiML; only unresolvable input gets a 4xx.
func (s *Server) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "webhook.whatsapp")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	from := normalizeNumber(r.FormValue("From"))
	to := normalizeNumber(r.FormValue("To"))
	body := strings.TrimSpace(r.FormValue("Body"))
	spanAttr(span, "webhook.from", from)
	spanAttr(span, "webhook.to", to)

	if from != "" && !s.rateLimiter.Allow(from) {
		slog.Warn("webhook rate limited", "from", from)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	bot, err := s.resolveBot(ctx, r, to)
	if err != nil {
		slog.Warn("webhook bot resolution failed", "to", to, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spanAttr(span, "webhook.bot", bot.ID)
	if !bot.Active() {
		writeError(w, http.StatusBadRequest, "bot is not active")
		return
	}

	reply, err := s.orch.HandleMessage(ctx, bot, from, body)
	if err != nil {
		if errors.Is(err, orchestrator.ErrMissingSender) || errors.Is(err, orchestrator.ErrMissingBody) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("message handling failed", "bot", bot.ID, "from", from, "error", err)
		reply = webhookErrorReply
	}

	s.writeTwiML(w, reply)
}

// resolveBot prefers an explicit bot id over number lookup.
func (s *Server) resolveBot(ctx context.Context, r *http.Request, to string) (*bots.Bot, error) {
	botID := r.URL.Query().Get("bot_id")
	if botID == "" {
		botID = r.FormValue("BotId")
	}
	if botID != "" {
		bot, err := s.bots.Get(ctx, botID)
		if err != nil {
			return nil, fmt.Errorf("bot %q not found", botID)
		}
		return bot, nil
	}
	if to == "" {
		return nil, errors.New("no bot id and no destination number provided")
	}
	bot, err := s.bots.FindByNumber(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("no bot found for number %q", to)
	}
	return bot, nil
}

func (s *Server) writeTwiML(w http.ResponseWriter, reply string) {
	payload, err := twiML(reply)
	if err != nil {
		slog.Error("twiml encode failed", "error", err)
		payload, _ = twiML(webhookErrorReply)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// normalizeNumber strips the whatsapp: channel prefix Twilio adds.
func normalizeNumber(n string) string {
	return strings.TrimPrefix(n, "whatsapp:")
}
