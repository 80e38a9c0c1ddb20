package store

import (
	"context"

	"backend-prolink/internal/domain"
)

func (p *Postgres) CreatePost(ctx context.Context, post *domain.Post) error {
	row := p.q.QueryRow(ctx, `
		INSERT INTO posts (id, author_id, description, image)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at
	`, post.ID, post.AuthorID, post.Description, nullable(post.Image))
	if err := row.Scan(&post.CreatedAt, &post.UpdatedAt); err != nil {
		return mapErr(err)
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	return nil
}

func (p *Postgres) PostByID(ctx context.Context, id string) (domain.Post, error) {
	var post domain.Post
	err := p.q.QueryRow(ctx, `
		SELECT id, author_id, description, COALESCE(image, ''), created_at, updated_at
		FROM posts WHERE id=$1
	`, id).Scan(&post.ID, &post.AuthorID, &post.Description, &post.Image, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return domain.Post{}, mapErr(err)
	}
	post.Likes, err = p.Likes(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (p *Postgres) AddLike(ctx context.Context, postID, userID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, postID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) RemoveLike(ctx context.Context, postID, userID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2`, postID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) Likes(ctx context.Context, postID string) ([]string, error) {
	likes, err := p.likesFor(ctx, []string{postID})
	if err != nil {
		return nil, err
	}
	if likes[postID] == nil {
		return []string{}, nil
	}
	return likes[postID], nil
}

func (p *Postgres) likesFor(ctx context.Context, postIDs []string) (map[string][]string, error) {
	if len(postIDs) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := p.q.Query(ctx, `
		SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1)
		ORDER BY created_at
	`, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	likes := map[string][]string{}
	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			return nil, err
		}
		likes[postID] = append(likes[postID], userID)
	}
	return likes, rows.Err()
}

func (p *Postgres) AddComment(ctx context.Context, c *domain.Comment) error {
	row := p.q.QueryRow(ctx, `
		INSERT INTO post_comments (id, post_id, user_id, content)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, c.ID, c.PostID, c.UserID, c.Content)
	return mapErr(row.Scan(&c.CreatedAt))
}

func (p *Postgres) Comments(ctx context.Context, postID string) ([]domain.CommentView, error) {
	comments, err := p.commentsFor(ctx, []string{postID})
	if err != nil {
		return nil, err
	}
	if comments[postID] == nil {
		return []domain.CommentView{}, nil
	}
	return comments[postID], nil
}

func (p *Postgres) commentsFor(ctx context.Context, postIDs []string) (map[string][]domain.CommentView, error) {
	if len(postIDs) == 0 {
		return map[string][]domain.CommentView{}, nil
	}
	rows, err := p.q.Query(ctx, `
		SELECT c.id, c.post_id, c.user_id, c.content, c.created_at, `+summaryColumns+`
		FROM post_comments c JOIN users u ON u.id = c.user_id
		WHERE c.post_id = ANY($1)
		ORDER BY c.created_at, c.id
	`, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := map[string][]domain.CommentView{}
	for rows.Next() {
		var c domain.CommentView
		u := &c.User
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt,
			&u.ID, &u.FirstName, &u.LastName, &u.UserName, &u.ProfileImage, &u.Headline); err != nil {
			return nil, err
		}
		comments[c.PostID] = append(comments[c.PostID], c)
	}
	return comments, rows.Err()
}

func (p *Postgres) Feed(ctx context.Context, offset, limit int) ([]domain.PostView, int, error) {
	var total int
	if err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := p.q.Query(ctx, `
		SELECT p.id, p.description, COALESCE(p.image, ''), p.created_at, p.updated_at, `+summaryColumns+`
		FROM posts p JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC, p.id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := []domain.PostView{}
	var ids []string
	for rows.Next() {
		var v domain.PostView
		a := &v.Author
		if err := rows.Scan(&v.ID, &v.Description, &v.Image, &v.CreatedAt, &v.UpdatedAt,
			&a.ID, &a.FirstName, &a.LastName, &a.UserName, &a.ProfileImage, &a.Headline); err != nil {
			return nil, 0, err
		}
		ids = append(ids, v.ID)
		posts = append(posts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	likes, err := p.likesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	comments, err := p.commentsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range posts {
		posts[i].Likes = likes[posts[i].ID]
		if posts[i].Likes == nil {
			posts[i].Likes = []string{}
		}
		posts[i].Comments = comments[posts[i].ID]
		if posts[i].Comments == nil {
			posts[i].Comments = []domain.CommentView{}
		}
	}
	return posts, total, nil
}
