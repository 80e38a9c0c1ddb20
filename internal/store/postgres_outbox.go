package store

import (
	"context"
	"time"

	"backend-prolink/internal/domain"
)

func (p *Postgres) EnqueueEvents(ctx context.Context, events ...domain.Event) error {
	for _, e := range events {
		if _, err := p.q.Exec(ctx, `
			INSERT INTO outbox_events (recipient_id, post_id, event, payload)
			VALUES ($1,$2,$3,$4)
		`, e.RecipientID, nullable(e.PostID), e.Name, []byte(e.Payload)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) PendingEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := p.q.Query(ctx, `
		SELECT id, recipient_id, COALESCE(post_id, ''), event, payload, created_at
		FROM outbox_events
		WHERE delivered_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.RecipientID, &e.PostID, &e.Name, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) MarkEventsDelivered(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.q.Exec(ctx, `UPDATE outbox_events SET delivered_at=now() WHERE id = ANY($1)`, ids)
	return err
}

func (p *Postgres) PurgeDeliveredEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.q.Exec(ctx, `DELETE FROM outbox_events WHERE delivered_at IS NOT NULL AND delivered_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1,$2,$3)
	`, token, userID, expiresAt)
	return mapErr(err)
}

func (p *Postgres) LookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	var userID string
	var expiresAt time.Time
	err := p.q.QueryRow(ctx, `
		SELECT user_id, expires_at FROM refresh_tokens
		WHERE token=$1 AND revoked_at IS NULL
	`, token).Scan(&userID, &expiresAt)
	if err != nil {
		return "", time.Time{}, mapErr(err)
	}
	return userID, expiresAt, nil
}

func (p *Postgres) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := p.q.Exec(ctx, `UPDATE refresh_tokens SET revoked_at=now() WHERE token=$1 AND revoked_at IS NULL`, token)
	return err
}

func (p *Postgres) SaveMediaObject(ctx context.Context, o *domain.MediaObject) error {
	row := p.q.QueryRow(ctx, `
		INSERT INTO media_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, o.ID, o.UserID, o.URL, o.Kind)
	return mapErr(row.Scan(&o.CreatedAt))
}
