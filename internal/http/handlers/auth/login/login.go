// Package login реализует HTTP-обработчик запроса ссылки для входа.
//
// Адрес проверяется, при необходимости регистрируется новый пользователь,
// и на почту уходит одноразовая ссылка. Ответ не раскрывает, существовал ли адрес.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/services/auth"
)

// Request входные данные запроса ссылки.
type Request struct {
	Email      string `json:"email" validate:"required,max=254"`
	RedirectTo string `json:"redirect_to,omitempty" validate:"max=2048"`
}

// Service описывает выдачу ссылки входа.
type Service interface {
	RequestLogin(ctx context.Context, email, redirectTo string) error
}

// Handler обрабатывает HTTP-запросы ссылки для входа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запрос ссылки для входа
// @Description Отправляет одноразовую ссылку входа на адрес. Новый адрес регистрируется.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Адрес и страница возврата"
// @Success 200 {object} response.Response "Ссылка отправлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Некорректный адрес"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 502 {object} response.ErrorResponse "Письмо не отправлено"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		errors.As(err, &verrs)
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	err := h.service.RequestLogin(r.Context(), req.Email, req.RedirectTo)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrPlusAddress):
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, auth.ErrTooManyRequests):
		w.WriteHeader(http.StatusTooManyRequests)
		render.JSON(w, r, response.Error("too many login requests, try again later"))
		return
	case errors.Is(err, auth.ErrDelivery):
		log.Error("magic link not delivered", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to send email, try again later"))
		return
	default:
		log.Error("login request failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "check your email for a sign-in link",
	}))
}
