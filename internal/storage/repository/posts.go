package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/robolike/portal/internal/models"
)

const postColumns = `id, slug, title, summary, body, published, published_at, created_at, updated_at`

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Body,
		&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost сохраняет запись блога. Занятый slug даёт ErrAlreadyExists.
func (s *Storage) CreatePost(ctx context.Context, post *models.Post) error {
	const op = "storage.CreatePost"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO posts (id, slug, title, summary, body, published, published_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	if _, err := s.DB.ExecContext(ctx, query,
		post.ID, post.Slug, post.Title, post.Summary, post.Body,
		post.Published, post.PublishedAt, post.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	post.UpdatedAt = post.CreatedAt
	return nil
}

// UpdatePost перезаписывает запись по ID.
func (s *Storage) UpdatePost(ctx context.Context, post *models.Post) error {
	const op = "storage.UpdatePost"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE posts
			  SET slug = $1, title = $2, summary = $3, body = $4, published = $5,
			      published_at = $6, updated_at = $7
			  WHERE id = $8`
	res, err := s.DB.ExecContext(ctx, query,
		post.Slug, post.Title, post.Summary, post.Body, post.Published,
		post.PublishedAt, post.UpdatedAt, post.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// DeletePost удаляет запись и возвращает её slug для сброса кэша.
func (s *Storage) DeletePost(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "storage.DeletePost"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var slug string
	if err := s.DB.QueryRowContext(ctx,
		`DELETE FROM posts WHERE id = $1 RETURNING slug`, id).Scan(&slug); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return slug, nil
}

// GetPostByID возвращает запись вместе с черновиками.
func (s *Storage) GetPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	const op = "storage.GetPostByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPost(s.DB.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// GetPublishedPostBySlug возвращает опубликованную запись.
func (s *Storage) GetPublishedPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	const op = "storage.GetPublishedPostBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPost(s.DB.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE slug = $1 AND published`, slug))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// ListPosts возвращает записи с пагинацией. При onlyPublished черновики скрыты.
func (s *Storage) ListPosts(ctx context.Context, onlyPublished bool, limit, offset int) ([]*models.Post, error) {
	const op = "storage.ListPosts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + postColumns + `
			  FROM posts
			  WHERE published OR NOT $1
			  ORDER BY COALESCE(published_at, created_at) DESC, id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, onlyPublished, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
