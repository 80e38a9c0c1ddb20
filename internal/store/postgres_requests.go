package store

import (
	"context"
	"errors"

	"backend-prolink/internal/domain"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

func scanRequest(row pgx.Row) (domain.ConnectionRequest, error) {
	var r domain.ConnectionRequest
	var status string
	if err := row.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.ConnectionRequest{}, mapErr(err)
	}
	r.Status = domain.ConnectionStatus(status)
	return r, nil
}

func (p *Postgres) CreateConnectionRequest(ctx context.Context, r *domain.ConnectionRequest) error {
	row := p.q.QueryRow(ctx, `
		INSERT INTO connection_requests (id, sender_id, receiver_id, status)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at
	`, r.ID, r.SenderID, r.ReceiverID, string(r.Status))
	return mapErr(row.Scan(&r.CreatedAt, &r.UpdatedAt))
}

func (p *Postgres) ConnectionRequestByID(ctx context.Context, id string) (domain.ConnectionRequest, error) {
	return scanRequest(p.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM connection_requests WHERE id=$1`, id))
}

func (p *Postgres) PendingRequestBetween(ctx context.Context, a, b string) (domain.ConnectionRequest, error) {
	return scanRequest(p.q.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM connection_requests
		WHERE status='pending'
		  AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
		LIMIT 1
	`, a, b))
}

func (p *Postgres) TransitionConnectionRequest(ctx context.Context, id string, from, to domain.ConnectionStatus) (domain.ConnectionRequest, error) {
	r, err := scanRequest(p.q.QueryRow(ctx, `
		UPDATE connection_requests SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+requestColumns+`
	`, id, string(from), string(to)))
	if errors.Is(err, ErrNotFound) {
		if _, lookupErr := p.ConnectionRequestByID(ctx, id); lookupErr != nil {
			return domain.ConnectionRequest{}, lookupErr
		}
		return domain.ConnectionRequest{}, ErrStale
	}
	return r, err
}

func (p *Postgres) IncomingRequests(ctx context.Context, receiverID string) ([]domain.IncomingRequest, error) {
	rows, err := p.q.Query(ctx, `
		SELECT r.id, r.sender_id, r.receiver_id, r.status, r.created_at, r.updated_at, `+summaryColumns+`
		FROM connection_requests r JOIN users u ON u.id = r.sender_id
		WHERE r.receiver_id=$1 AND r.status='pending'
		ORDER BY r.created_at DESC
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.IncomingRequest{}
	for rows.Next() {
		var in domain.IncomingRequest
		var status string
		s := &in.Sender
		if err := rows.Scan(&in.ID, &in.SenderID, &in.ReceiverID, &status, &in.CreatedAt, &in.UpdatedAt,
			&s.ID, &s.FirstName, &s.LastName, &s.UserName, &s.ProfileImage, &s.Headline); err != nil {
			return nil, err
		}
		in.Status = domain.ConnectionStatus(status)
		out = append(out, in)
	}
	return out, rows.Err()
}
