// Package list отдаёт страницу записей блога. Публичная ручка видит только
// опубликованные записи, административная ещё и черновики.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/blog"
)

// Service чтение записей блога.
type Service interface {
	ListPublished(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Post, error)
}

// Page страница записей.
type Page struct {
	Posts  []*models.Post `json:"posts"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// Handler обрабатывает запрос списка записей.
type Handler struct {
	log           *slog.Logger
	service       Service
	includeDrafts bool
}

// New создает обработчик; includeDrafts включает черновики в выдачу.
func New(log *slog.Logger, service Service, includeDrafts bool) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		includeDrafts: includeDrafts,
	}
}

// ServeHTTP godoc
// @Summary Записи блога
// @Description Опубликованные записи, новые первыми. В административной версии также черновики.
// @Tags Blog
// @Produce  json
// @Param limit query int false "Размер страницы, по умолчанию 10, не больше 50"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=Page}
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /blog [get]
// @Router /admin/posts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.blog.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		offset = 0
	}
	limit, offset = blog.NormalizePage(limit, offset)

	var posts []*models.Post
	if h.includeDrafts {
		posts, err = h.service.ListAll(r.Context(), limit, offset)
	} else {
		posts, err = h.service.ListPublished(r.Context(), limit, offset)
	}
	if err != nil {
		log.Error("failed to list posts", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list posts"))
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	render.JSON(w, r, response.StatusOKWithData(Page{Posts: posts, Limit: limit, Offset: offset}))
}
