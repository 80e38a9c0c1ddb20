package store

import (
	"context"

	"backend-prolink/internal/domain"
)

func (p *Postgres) CreateNotification(ctx context.Context, n *domain.Notification) error {
	row := p.q.QueryRow(ctx, `
		INSERT INTO notifications (id, receiver_id, type, related_user_id, related_post_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, n.ID, n.ReceiverID, string(n.Type), n.RelatedUserID, nullable(n.RelatedPostID))
	return mapErr(row.Scan(&n.CreatedAt))
}

func (p *Postgres) Notifications(ctx context.Context, receiverID string) ([]domain.NotificationView, error) {
	rows, err := p.q.Query(ctx, `
		SELECT n.id, n.receiver_id, n.type, n.related_user_id, COALESCE(n.related_post_id, ''), n.created_at,
			COALESCE(u.id, ''), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COALESCE(u.user_name, ''),
			COALESCE(u.profile_image, ''), COALESCE(u.headline, ''),
			COALESCE(p.id, ''), COALESCE(p.image, ''), COALESCE(p.description, '')
		FROM notifications n
		LEFT JOIN users u ON u.id = n.related_user_id
		LEFT JOIN posts p ON p.id = n.related_post_id
		WHERE n.receiver_id=$1
		ORDER BY n.created_at DESC
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.NotificationView{}
	for rows.Next() {
		var v domain.NotificationView
		var u domain.UserSummary
		var post domain.PostSummary
		var kind string
		if err := rows.Scan(&v.ID, &v.ReceiverID, &kind, &v.RelatedUserID, &v.RelatedPostID, &v.CreatedAt,
			&u.ID, &u.FirstName, &u.LastName, &u.UserName, &u.ProfileImage, &u.Headline,
			&post.ID, &post.Image, &post.Description); err != nil {
			return nil, err
		}
		v.Type = domain.NotificationType(kind)
		if u.ID != "" {
			v.RelatedUser = &u
		}
		if post.ID != "" {
			v.RelatedPost = &post
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteNotification(ctx context.Context, id, receiverID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND receiver_id=$2`, id, receiverID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ClearNotifications(ctx context.Context, receiverID string) (int64, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM notifications WHERE receiver_id=$1`, receiverID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) DeleteLikeNotification(ctx context.Context, receiverID, relatedUserID, postID string) (bool, error) {
	tag, err := p.q.Exec(ctx, `
		DELETE FROM notifications
		WHERE receiver_id=$1 AND type='like' AND related_user_id=$2 AND related_post_id=$3
	`, receiverID, relatedUserID, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
