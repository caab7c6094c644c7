package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/juicyshop/backend/internal/domain/order"
	"github.com/juicyshop/backend/internal/telegram"
)

// TelegramWebhook handles POST /telegram/webhook. Operator button presses
// (confirm_<id> / cancel_<id>) drive the same lifecycle operations as the
// HTTP API; /start messages register the visiting client and attach the
// referral carried in the deep-link payload.
//
// The webhook always answers 200: Telegram retries non-2xx deliveries, and
// every operation behind it is idempotent anyway.
func (h *Handler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := decodeJSON(r, &update); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	lg := zctx.From(ctx)

	// Only buttons in the operator chat carry lifecycle actions.
	if cq.Message == nil || cq.Message.Chat.ID != h.adminChatID {
		h.answerCallback(ctx, cq.ID, "")
		return
	}

	var (
		outcome *order.Outcome
		err     error
		verb    string
	)
	switch {
	case strings.HasPrefix(cq.Data, "confirm_"):
		verb = "Completed"
		outcome, err = h.orderService.Confirm(ctx, strings.TrimPrefix(cq.Data, "confirm_"))
	case strings.HasPrefix(cq.Data, "cancel_"):
		verb = "Cancelled"
		outcome, err = h.orderService.Cancel(ctx, strings.TrimPrefix(cq.Data, "cancel_"))
	default:
		h.answerCallback(ctx, cq.ID, "")
		return
	}

	if err != nil {
		lg.Warn("Callback transition failed",
			zap.String("data", cq.Data), zap.Error(err))
		h.answerCallback(ctx, cq.ID, "Could not process: "+err.Error())
		return
	}

	note := verb
	if outcome.AlreadyDone {
		note = "Already processed"
	}
	h.answerCallback(ctx, cq.ID, note)

	if h.bot != nil {
		edited := cq.Message.Text + "\n\n" + note
		if err := h.bot.EditMessageText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, edited); err != nil {
			lg.Warn("Operator message edit failed", zap.Error(err))
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || !strings.HasPrefix(msg.Text, "/start") {
		return
	}
	lg := zctx.From(ctx)
	clientID := strconv.FormatInt(msg.From.ID, 10)

	if _, err := h.clientService.RegisterVisit(ctx, clientID); err != nil {
		lg.Warn("Visit registration failed",
			zap.String("client_id", clientID), zap.Error(err))
		return
	}

	// Deep link: "/start ref_<referrer id>" attaches the referral edge.
	if payload, ok := strings.CutPrefix(msg.Text, "/start ref_"); ok && payload != "" {
		if _, err := h.graph.Attach(ctx, clientID, payload); err != nil {
			lg.Warn("Referral attach from deep link failed",
				zap.String("client_id", clientID), zap.Error(err))
		}
	}
}

func (h *Handler) answerCallback(ctx context.Context, callbackID, text string) {
	if h.bot == nil {
		return
	}
	if err := h.bot.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		zctx.From(ctx).Warn("Callback answer failed", zap.Error(err))
	}
}
