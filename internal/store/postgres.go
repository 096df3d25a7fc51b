package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// ErrNotFound is returned when a row does not exist (or is not owned by the caller).
var ErrNotFound = errors.New("not found")

// PostgresStore handles users, wallet challenges, resources and tags.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username       VARCHAR(50)  UNIQUE,
			email          VARCHAR(255) UNIQUE,
			password       VARCHAR(255),
			wallet_address VARCHAR(64)  UNIQUE,
			created_at     TIMESTAMPTZ  DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS wallet_challenges (
			wallet_address VARCHAR(64) PRIMARY KEY,
			challenge      TEXT        NOT NULL,
			expires_at     TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS resources (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type       VARCHAR(10) NOT NULL,
			title      TEXT NOT NULL,
			url        TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL DEFAULT '',
			pattern    TEXT NOT NULL DEFAULT '',
			image      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tags (
			id      UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name    VARCHAR(64) NOT NULL,
			UNIQUE (user_id, name)
		);

		CREATE TABLE IF NOT EXISTS resource_tags (
			resource_id UUID NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
			tag_id      UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (resource_id, tag_id)
		);
	`)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u                                models.User
		username, email, password, wallet *string
	)
	err := row.Scan(&u.ID, &username, &email, &password, &wallet, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if username != nil {
		u.Username = *username
	}
	if email != nil {
		u.Email = *email
	}
	if password != nil {
		u.Password = *password
	}
	if wallet != nil {
		u.WalletAddress = *wallet
	}
	return &u, nil
}

const userColumns = `id, username, email, password, wallet_address, created_at`

func (s *PostgresStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		username, email, hashedPassword,
	))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindOrCreateWalletUser returns the user owning address, creating it on first sight.
func (s *PostgresStore) FindOrCreateWalletUser(ctx context.Context, address string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (wallet_address) VALUES ($1)
		 ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		 RETURNING `+userColumns,
		address,
	))
	if err != nil {
		return nil, fmt.Errorf("wallet user: %w", err)
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Wallet challenges
// ---------------------------------------------------------------------------

// UpsertChallenge replaces any challenge for the wallet.
func (s *PostgresStore) UpsertChallenge(ctx context.Context, c models.Challenge) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallet_challenges (wallet_address, challenge, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (wallet_address) DO UPDATE
		 SET challenge = EXCLUDED.challenge, expires_at = EXCLUDED.expires_at`,
		c.WalletAddress, c.Challenge, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChallenge(ctx context.Context, address string) (*models.Challenge, error) {
	var c models.Challenge
	err := s.pool.QueryRow(ctx,
		`SELECT wallet_address, challenge, expires_at FROM wallet_challenges WHERE wallet_address = $1`,
		address,
	).Scan(&c.WalletAddress, &c.Challenge, &c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConsumeChallenge deletes the wallet's challenge only if it still matches
// and has not expired. ErrNotFound means another request used it first.
func (s *PostgresStore) ConsumeChallenge(ctx context.Context, address, challenge string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM wallet_challenges
		 WHERE wallet_address = $1 AND challenge = $2 AND expires_at > $3`,
		address, challenge, now,
	)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM wallet_challenges WHERE expires_at < $1`, now)
	return err
}

// ---------------------------------------------------------------------------
// Resources and tags
// ---------------------------------------------------------------------------

// CreateResource inserts the resource, creates any of its tags the owner
// lacks and links them, all in one transaction.
func (s *PostgresStore) CreateResource(ctx context.Context, r *models.Resource) (*models.Resource, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	defer tx.Rollback(ctx)

	out := *r
	err = tx.QueryRow(ctx,
		`INSERT INTO resources (user_id, type, title, url, content, pattern, image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		r.UserID, r.Type, r.Title, r.URL, r.Content, r.Pattern, r.Image,
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if len(r.Tags) > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO tags (user_id, name)
			 SELECT $1, unnest($2::text[])
			 ON CONFLICT (user_id, name) DO NOTHING`,
			r.UserID, r.Tags,
		)
		if err != nil {
			return nil, fmt.Errorf("create tags: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO resource_tags (resource_id, tag_id)
			 SELECT $1, id FROM tags WHERE user_id = $2 AND name = ANY($3)`,
			out.ID, r.UserID, r.Tags,
		)
		if err != nil {
			return nil, fmt.Errorf("link tags: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return &out, nil
}

const resourceSelect = `
	SELECT r.id, r.user_id, r.type, r.title, r.url, r.content, r.pattern, r.image, r.created_at,
	       COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
	FROM resources r
	LEFT JOIN resource_tags rt ON rt.resource_id = r.id
	LEFT JOIN tags t ON t.id = rt.tag_id`

func scanResource(row pgx.Row) (*models.Resource, error) {
	var r models.Resource
	err := row.Scan(&r.ID, &r.UserID, &r.Type, &r.Title, &r.URL, &r.Content, &r.Pattern, &r.Image, &r.CreatedAt, &r.Tags)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListResources(ctx context.Context, userID string) ([]models.Resource, error) {
	rows, err := s.pool.Query(ctx,
		resourceSelect+` WHERE r.user_id = $1 GROUP BY r.id ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// validID reports whether id can name a row. Anything else is simply absent.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *PostgresStore) GetResource(ctx context.Context, userID, id string) (*models.Resource, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	r, err := scanResource(s.pool.QueryRow(ctx,
		resourceSelect+` WHERE r.user_id = $1 AND r.id = $2 GROUP BY r.id`, userID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) DeleteResource(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM resources WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindTag(ctx context.Context, userID, name string) (*models.Tag, error) {
	t := models.Tag{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM tags WHERE user_id = $1 AND name = $2`, userID, name,
	).Scan(&t.ID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) CountTags(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) CreateTag(ctx context.Context, userID, name string) (*models.Tag, error) {
	t := models.Tag{UserID: userID, Name: name}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tags (user_id, name) VALUES ($1, $2)
		 ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		userID, name,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns q into an ILIKE pattern matching it literally anywhere.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// ListTags returns the owner's tags whose name contains q (case-insensitive).
func (s *PostgresStore) ListTags(ctx context.Context, userID, q string) ([]models.Tag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM tags
		 WHERE user_id = $1 AND name ILIKE $2 ESCAPE '\'
		 ORDER BY name`,
		userID, containsPattern(q),
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		t := models.Tag{UserID: userID}
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
