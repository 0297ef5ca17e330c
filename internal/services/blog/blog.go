// Package blog хранит и отдаёт записи блога. Публичное чтение кэшируется в
// Redis, любая запись сбрасывает кэш.
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/storage/repository"
)

const (
	cacheTTL     = 10 * time.Minute
	listPrefix   = "blog:list:"
	postPrefix   = "blog:post:"
	DefaultLimit = 10
	MaxLimit     = 50
)

var (
	// ErrPostNotFound записи нет или она не опубликована.
	ErrPostNotFound = errors.New("post not found")
	// ErrSlugTaken slug уже занят другой записью.
	ErrSlugTaken = errors.New("slug already taken")
)

// Repository хранилище записей.
type Repository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id uuid.UUID) (string, error)
	GetPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetPublishedPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	ListPosts(ctx context.Context, onlyPublished bool, limit, offset int) ([]*models.Post, error)
}

// Cache JSON-кэш.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Service записи блога.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewService создаёт сервис блога.
func NewService(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// NormalizePage приводит limit и offset к допустимым значениям.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListPublished возвращает опубликованные записи, новые первыми.
func (s *Service) ListPublished(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	const op = "blog.ListPublished"
	limit, offset = NormalizePage(limit, offset)

	cacheKey := fmt.Sprintf("%s%d:%d", listPrefix, limit, offset)
	var cached []*models.Post
	if s.fromCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	posts, err := s.repo.ListPosts(ctx, true, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.toCache(ctx, cacheKey, posts)
	return posts, nil
}

// GetPublished возвращает опубликованную запись по slug.
func (s *Service) GetPublished(ctx context.Context, slug string) (*models.Post, error) {
	const op = "blog.GetPublished"

	cacheKey := postPrefix + slug
	var cached models.Post
	if s.fromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	post, err := s.repo.GetPublishedPostBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.toCache(ctx, cacheKey, post)
	return post, nil
}

// ListAll возвращает записи вместе с черновиками. Не кэшируется.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	const op = "blog.ListAll"
	limit, offset = NormalizePage(limit, offset)
	posts, err := s.repo.ListPosts(ctx, false, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return posts, nil
}

// Create добавляет запись.
func (s *Service) Create(ctx context.Context, req models.DummyPost) (*models.Post, error) {
	const op = "blog.Create"

	now := s.now()
	post := &models.Post{
		ID:        uuid.New(),
		Slug:      req.Slug,
		Title:     req.Title,
		Summary:   req.Summary,
		Body:      req.Body,
		Published: req.Published,
		CreatedAt: now,
	}
	if post.Published {
		post.PublishedAt = &now
	}

	err := s.repo.CreatePost(ctx, post)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, ErrSlugTaken
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("post created", slog.String("id", post.ID.String()), slog.String("slug", post.Slug))

	s.invalidate(ctx, post.Slug)
	return post, nil
}

// Update перезаписывает запись. Дата публикации ставится при первой
// публикации и сбрасывается, если запись снята с публикации.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req models.DummyPost) (*models.Post, error) {
	const op = "blog.Update"

	post, err := s.repo.GetPostByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oldSlug := post.Slug

	now := s.now()
	switch {
	case req.Published && post.PublishedAt == nil:
		post.PublishedAt = &now
	case !req.Published:
		post.PublishedAt = nil
	}
	post.Slug = req.Slug
	post.Title = req.Title
	post.Summary = req.Summary
	post.Body = req.Body
	post.Published = req.Published
	post.UpdatedAt = now

	err = s.repo.UpdatePost(ctx, post)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return nil, ErrSlugTaken
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrPostNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, oldSlug, post.Slug)
	return post, nil
}

// Delete удаляет запись.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "blog.Delete"

	slug, err := s.repo.DeletePost(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("post deleted", slog.String("id", id.String()))

	s.invalidate(ctx, slug)
	return nil
}

// fromCache читает ключ; ошибка кэша означает промах.
func (s *Service) fromCache(ctx context.Context, key string, result any) bool {
	found, err := s.cache.Get(ctx, key, result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
		return false
	}
	return found
}

func (s *Service) toCache(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, cacheTTL); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		keys = append(keys, postPrefix+slug)
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to remove from cache", sl.Err(err))
	}
	if err := s.cache.InvalidatePrefix(ctx, listPrefix); err != nil {
		s.log.Warn("failed to remove list from cache", sl.Err(err))
	}
}
