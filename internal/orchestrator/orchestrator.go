// Package orchestrator drives one conversational turn end to end: session
// load, thread continuity, the run state machine with its distributed lock,
// tool dispatch on requires_action, and the final reply. One turn per thread
// runs at a time; everything else gets a transient busy reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/clientdata"
	"github.com/nextlevelbuilder/turnero/internal/store"
	"github.com/nextlevelbuilder/turnero/internal/tools"
)

// Input validation errors, surfaced by the webhook as client errors.
var (
	ErrMissingSender = errors.New("missing sender number")
	ErrMissingBody   = errors.New("message body is required")
)

// Reply strings for degraded outcomes. Spanish because the assistant speaks
// Spanish to customers; these must read like the assistant, not like an
// error page.
const (
	replyBusy      = "Estoy terminando de procesar tu mensaje anterior, dame un momento por favor."
	replyTimeout   = "Lo siento, no pude procesar tu mensaje en este momento."
	replyRunFailed = "Lo siento, hubo un error al procesar tu mensaje."
)

// lockPending is the lock value between acquisition and run creation, before
// a real run id exists.
const lockPending = "pending"

// Config bounds the run state machine.
type Config struct {
	PollInterval      time.Duration // default 1s
	MaxPollIterations int           // default 60
	BusyProbeTimeout  time.Duration // default 5s
	BusyProbeInterval time.Duration // default 500ms
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxPollIterations <= 0 {
		c.MaxPollIterations = 60
	}
	if c.BusyProbeTimeout <= 0 {
		c.BusyProbeTimeout = 5 * time.Second
	}
	if c.BusyProbeInterval <= 0 {
		c.BusyProbeInterval = 500 * time.Millisecond
	}
	return c
}

// Orchestrator wires the gateway, stores and tool router into the turn
// pipeline.
type Orchestrator struct {
	gateway assistant.Gateway
	stores  *store.Stores
	router  *tools.Router
	cfg     Config
}

func New(gateway assistant.Gateway, stores *store.Stores, router *tools.Router, cfg Config) *Orchestrator {
	return &Orchestrator{gateway: gateway, stores: stores, router: router, cfg: cfg.withDefaults()}
}

// HandleMessage processes one inbound message and returns the reply text.
// Degraded outcomes (busy, timeout, upstream failure) come back as normal
// replies; an error return means the input itself was invalid.
func (o *Orchestrator) HandleMessage(ctx context.Context, bot *bots.Bot, userID, text string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrMissingSender
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrMissingBody
	}

	log := slog.With("bot", bot.ID, "user", userID)

	// Opportunistic profile enrichment from the raw message.
	extracted := clientdata.Extract(text)
	for field, value := range extracted {
		if err := o.stores.ClientData.Set(userID, field, value); err != nil {
			log.Warn("client data update failed", "field", field, "error", err)
		}
	}

	if !o.gateway.Available() {
		history := o.appendUser(bot.ID, userID, text, log)
		reply := assistant.FallbackReply(history)
		o.persistReply(bot.ID, userID, reply, log)
		return reply, nil
	}

	threadID, err := o.ensureThread(ctx, bot, userID)
	if err != nil {
		log.Error("thread setup failed", "error", err)
		o.appendUser(bot.ID, userID, text, log)
		o.persistReply(bot.ID, userID, replyRunFailed, log)
		return replyRunFailed, nil
	}
	log = log.With("thread", threadID)

	// The message is appended to the session only after the lock is ours, so
	// a busy-rejected turn leaves no unanswered message in the history.
	if busy := o.guardEntry(ctx, threadID, log); busy {
		return replyBusy, nil
	}

	acquired, err := o.stores.RunLocks.Acquire(threadID, lockPending)
	if err != nil {
		log.Error("lock acquire failed", "error", err)
		return replyRunFailed, nil
	}
	if !acquired {
		// Lost the race between the guard probe and acquisition.
		return replyBusy, nil
	}
	defer func() {
		if err := o.stores.RunLocks.Release(threadID); err != nil {
			log.Warn("lock release failed, TTL will expire it", "error", err)
		}
	}()

	o.appendUser(bot.ID, userID, text, log)
	reply := o.runTurn(ctx, bot, userID, threadID, text, log)
	o.persistReply(bot.ID, userID, reply, log)
	return reply, nil
}

// ensureThread returns a live upstream thread for this user, reusing the
// cached one when upstream still knows it.
func (o *Orchestrator) ensureThread(ctx context.Context, bot *bots.Bot, userID string) (string, error) {
	namespace := bot.AssistantID
	if namespace == "" {
		namespace = bot.ID
	}

	if cached := o.stores.Threads.Get(namespace, userID); cached != "" {
		if o.gateway.ThreadExists(ctx, cached) {
			return cached, nil
		}
		slog.Debug("cached thread is stale upstream", "thread", cached)
		if err := o.stores.Threads.Delete(namespace, userID); err != nil {
			slog.Warn("stale thread delete failed", "thread", cached, "error", err)
		}
	}

	threadID, err := o.gateway.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if err := o.stores.Threads.Put(namespace, userID, threadID); err != nil {
		slog.Warn("thread cache write failed", "thread", threadID, "error", err)
	}
	return threadID, nil
}

// guardEntry handles an existing lock holder. It returns true when the turn
// should answer busy. A holder whose upstream run already finished is cleaned
// up so this turn can proceed.
func (o *Orchestrator) guardEntry(ctx context.Context, threadID string, log *slog.Logger) bool {
	holder, err := o.stores.RunLocks.Holder(threadID)
	if err != nil {
		log.Warn("lock holder check failed", "error", err)
		return false
	}
	if holder == "" {
		return false
	}

	deadline := time.Now().Add(o.cfg.BusyProbeTimeout)
	for {
		if holder == lockPending {
			// Another turn is between acquire and run creation. Give it a
			// moment; if it is crashed the TTL reclaims the lock.
			if time.Now().After(deadline) {
				return true
			}
			o.sleep(ctx, o.cfg.BusyProbeInterval)
		} else {
			state, err := o.gateway.PollRun(ctx, threadID, holder)
			if err != nil {
				log.Warn("held run probe failed", "run", holder, "error", err)
				return true
			}
			if state.Status.Terminal() {
				log.Debug("held run already terminal, reclaiming lock", "run", holder)
				if err := o.stores.RunLocks.Release(threadID); err != nil {
					log.Warn("stale lock release failed", "error", err)
				}
				return false
			}
			if time.Now().After(deadline) {
				return true
			}
			o.sleep(ctx, o.cfg.BusyProbeInterval)
		}

		holder, err = o.stores.RunLocks.Holder(threadID)
		if err != nil || holder == "" {
			return false
		}
	}
}

// runTurn starts the run and drives it to a terminal state. Always returns a
// reply string; the caller owns the lock.
func (o *Orchestrator) runTurn(ctx context.Context, bot *bots.Bot, userID, threadID, text string, log *slog.Logger) string {
	runID, err := o.gateway.StartTurn(ctx, threadID, bot.AssistantID, text, o.instructions(bot, userID))
	if err != nil {
		log.Error("run start failed", "error", err)
		return replyRunFailed
	}
	if err := o.stores.RunLocks.Update(threadID, runID); err != nil {
		log.Warn("lock update failed", "run", runID, "error", err)
	}
	log = log.With("run", runID)

	toolCtx := tools.WithUserPhone(ctx, userID)
	for i := 0; i < o.cfg.MaxPollIterations; i++ {
		state, err := o.gateway.PollRun(ctx, threadID, runID)
		if err != nil {
			log.Warn("run poll failed", "iteration", i, "error", err)
			o.sleep(ctx, o.cfg.PollInterval)
			continue
		}

		switch {
		case state.Status == assistant.StatusRequiresAction:
			outputs := o.router.Dispatch(toolCtx, bot, state.ToolCalls)
			o.recordToolMessages(bot.ID, userID, state.ToolCalls, outputs, log)
			if _, err := o.gateway.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
				log.Error("tool output submission failed", "error", err)
				return replyRunFailed
			}
			// Submission may land in requires_action again; next poll sees it.

		case state.Status == assistant.StatusCompleted:
			reply, err := o.gateway.LatestMessage(ctx, threadID)
			if err != nil || reply == "" {
				log.Warn("no assistant reply extractable", "error", err)
				return replyTimeout
			}
			return reply

		case state.Status.Terminal():
			log.Warn("run ended without completion", "status", state.Status)
			return replyRunFailed

		default:
			o.sleep(ctx, o.cfg.PollInterval)
		}
	}

	// Local timeout. The upstream run keeps going; the deferred release (or
	// the TTL) frees the thread for the next turn.
	log.Warn("run poll budget exhausted")
	return replyTimeout
}

// instructions augments the bot's base instructions with facts already known
// about this customer so the assistant stops re-asking.
func (o *Orchestrator) instructions(bot *bots.Bot, userID string) string {
	known := o.stores.ClientData.Get(userID)
	if len(known) == 0 {
		return bot.Instructions
	}

	labels := []struct{ field, label string }{
		{"marca", "Marca del vehículo"},
		{"modelo", "Modelo"},
		{"año", "Año"},
		{"combustible", "Combustible"},
		{"start_stop", "Start-Stop"},
		{"comuna", "Comuna"},
	}
	var lines []string
	for _, l := range labels {
		if v := known[l.field]; v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", l.label, v))
		}
	}
	if len(lines) == 0 {
		return bot.Instructions
	}
	return bot.Instructions +
		"\n\nINFORMACIÓN YA CONOCIDA DEL CLIENTE:\n" + strings.Join(lines, "\n") +
		"\n\nNO preguntes por información que ya tienes. Usa esta información para ayudar mejor al cliente."
}

// appendUser adds the inbound message to the session, returning the updated
// history. A failed append still yields a usable in-memory history.
func (o *Orchestrator) appendUser(botID, userID, text string, log *slog.Logger) []assistant.Message {
	history, err := o.stores.Sessions.Append(botID, userID, assistant.Message{Role: "user", Content: text})
	if err != nil {
		log.Warn("session append failed", "error", err)
		history = append(o.stores.Sessions.Load(botID, userID), assistant.Message{Role: "user", Content: text})
	}
	return history
}

func (o *Orchestrator) recordToolMessages(botID, userID string, calls []assistant.ToolCall, outputs []assistant.ToolOutput, log *slog.Logger) {
	for i, out := range outputs {
		name := ""
		if i < len(calls) {
			name = calls[i].Name
		}
		if _, err := o.stores.Sessions.Append(botID, userID, assistant.Message{
			Role:    "tool",
			Name:    name,
			Content: out.Output,
		}); err != nil {
			log.Warn("tool message persist failed", "tool", name, "error", err)
		}
	}
}

func (o *Orchestrator) persistReply(botID, userID, reply string, log *slog.Logger) {
	if _, err := o.stores.Sessions.Append(botID, userID, assistant.Message{Role: "assistant", Content: reply}); err != nil {
		log.Warn("reply persist failed", "error", err)
	}
}

// sleep waits without outliving the request context.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
