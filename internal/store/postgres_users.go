package store

import (
	"context"
	"strings"

	"backend-prolink/internal/domain"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, first_name, last_name, user_name, email, password_hash, profile_image, cover_image,
		headline, location, gender, skills, education, experience, created_at, updated_at`

const summaryColumns = `u.id, u.first_name, u.last_name, u.user_name, u.profile_image, u.headline`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var education, experience []byte
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.UserName, &u.Email, &u.PasswordHash,
		&u.ProfileImage, &u.CoverImage, &u.Headline, &u.Location, &u.Gender, &u.Skills,
		&education, &experience, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, mapErr(err)
	}
	if len(education) > 0 {
		if err := json.Unmarshal(education, &u.Education); err != nil {
			return domain.User{}, err
		}
	}
	if len(experience) > 0 {
		if err := json.Unmarshal(experience, &u.Experience); err != nil {
			return domain.User{}, err
		}
	}
	return u, nil
}

func scanSummaries(rows pgx.Rows) ([]domain.UserSummary, error) {
	defer rows.Close()
	out := []domain.UserSummary{}
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.UserName, &s.ProfileImage, &s.Headline); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Skills == nil {
		u.Skills = []string{}
	}
	if u.Education == nil {
		u.Education = []domain.Education{}
	}
	if u.Experience == nil {
		u.Experience = []domain.Experience{}
	}
	education, err := json.Marshal(u.Education)
	if err != nil {
		return err
	}
	experience, err := json.Marshal(u.Experience)
	if err != nil {
		return err
	}
	row := p.q.QueryRow(ctx, `
		INSERT INTO users (id, first_name, last_name, user_name, email, password_hash, profile_image, cover_image,
			headline, location, gender, skills, education, experience)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at
	`, u.ID, u.FirstName, u.LastName, u.UserName, u.Email, u.PasswordHash, u.ProfileImage, u.CoverImage,
		u.Headline, u.Location, u.Gender, u.Skills, education, experience)
	return mapErr(row.Scan(&u.CreatedAt, &u.UpdatedAt))
}

func (p *Postgres) userBy(ctx context.Context, where string, arg any) (domain.User, error) {
	u, err := scanUser(p.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return domain.User{}, err
	}
	u.Connections, err = p.connectionIDs(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (p *Postgres) UserByID(ctx context.Context, id string) (domain.User, error) {
	return p.userBy(ctx, `id=$1`, id)
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return p.userBy(ctx, `email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

func (p *Postgres) UserByUserName(ctx context.Context, userName string) (domain.User, error) {
	return p.userBy(ctx, `lower(user_name)=lower($1)`, strings.TrimSpace(userName))
}

func (p *Postgres) connectionIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.q.Query(ctx, `
		SELECT connection_id FROM user_connections WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.User, error) {
	var education, experience []byte
	if patch.Education != nil {
		b, err := json.Marshal(*patch.Education)
		if err != nil {
			return domain.User{}, err
		}
		education = b
	}
	if patch.Experience != nil {
		b, err := json.Marshal(*patch.Experience)
		if err != nil {
			return domain.User{}, err
		}
		experience = b
	}
	var skills []string
	if patch.Skills != nil {
		skills = *patch.Skills
		if skills == nil {
			skills = []string{}
		}
	}
	tag, err := p.q.Exec(ctx, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			user_name = COALESCE($4, user_name),
			headline = COALESCE($5, headline),
			location = COALESCE($6, location),
			gender = COALESCE($7, gender),
			skills = COALESCE($8, skills),
			education = COALESCE($9, education),
			experience = COALESCE($10, experience),
			profile_image = COALESCE($11, profile_image),
			cover_image = COALESCE($12, cover_image),
			updated_at = now()
		WHERE id=$1
	`, id, patch.FirstName, patch.LastName, patch.UserName, patch.Headline, patch.Location, patch.Gender,
		skills, education, experience, patch.ProfileImage, patch.CoverImage)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.User{}, ErrNotFound
	}
	return p.UserByID(ctx, id)
}

func (p *Postgres) SearchUsers(ctx context.Context, query string, limit int) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.UserSummary{}, nil
	}
	rows, err := p.q.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM users u
		WHERE to_tsvector('simple', u.first_name || ' ' || u.last_name || ' ' || u.user_name || ' ' || array_to_string(u.skills, ' '))
			@@ plainto_tsquery('simple', $1)
		ORDER BY u.created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	found, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return found, nil
	}

	// Word search misses prefixes, fall back to a substring match.
	pattern := "%" + escapeLike(query) + "%"
	rows, err = p.q.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM users u
		WHERE u.first_name ILIKE $1 OR u.last_name ILIKE $1 OR u.user_name ILIKE $1
		   OR EXISTS (SELECT 1 FROM unnest(u.skills) s WHERE s ILIKE $1)
		ORDER BY u.created_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (p *Postgres) SuggestedUsers(ctx context.Context, userID string, limit int) ([]domain.UserSummary, error) {
	rows, err := p.q.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM users u
		WHERE u.id <> $1
		  AND u.id NOT IN (SELECT connection_id FROM user_connections WHERE user_id=$1)
		ORDER BY u.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func (p *Postgres) AddConnection(ctx context.Context, userID, otherID string) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO user_connections (user_id, connection_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, userID, otherID)
	return err
}

func (p *Postgres) RemoveConnection(ctx context.Context, userID, otherID string) error {
	_, err := p.q.Exec(ctx, `DELETE FROM user_connections WHERE user_id=$1 AND connection_id=$2`, userID, otherID)
	return err
}

func (p *Postgres) IsConnected(ctx context.Context, userID, otherID string) (bool, error) {
	var ok bool
	err := p.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM user_connections WHERE user_id=$1 AND connection_id=$2)
	`, userID, otherID).Scan(&ok)
	return ok, err
}

func (p *Postgres) Connections(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	rows, err := p.q.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM user_connections c JOIN users u ON u.id = c.connection_id
		WHERE c.user_id=$1
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}
