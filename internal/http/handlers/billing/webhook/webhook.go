// Package webhook принимает события Stripe и передаёт их сверке подписок.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/paymentprovider"
	"github.com/robolike/portal/internal/services/billing"
)

// MaxBodyBytes предел размера тела события.
const MaxBodyBytes = 64 << 10

// SignatureHeader заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// Service сверка подписок по событию.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Handler обрабатывает webhook платёжной системы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Webhook Stripe
// @Description Проверяет подпись и применяет checkout.session.completed, customer.subscription.updated и customer.subscription.deleted.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или событие"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, Stripe повторит доставку"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("cannot read body"))
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		log.Warn("webhook without signature")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing signature"))
		return
	}

	err = h.service.HandleWebhook(r.Context(), body, signature)
	switch {
	case err == nil:
	case errors.Is(err, paymentprovider.ErrInvalidSignature):
		log.Warn("webhook signature rejected", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	case errors.Is(err, billing.ErrMissingMetadata):
		// повтор доставки не поможет
		log.Error("webhook object has no user reference", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing user reference"))
		return
	default:
		log.Error("failed to process webhook", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("webhook processed")
	render.JSON(w, r, response.StatusOKWithData(nil))
}
