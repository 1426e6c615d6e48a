package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
)

// Queries is the PostgreSQL-backed Store.
type Queries struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const userColumns = `id, username, COALESCE(email, ''), COALESCE(hashed_password, ''), is_active,
	COALESCE(avatar_url, ''), COALESCE(full_name, ''), COALESCE(auth_provider, ''), created_at`

// userColumnsU is userColumns qualified with the alias u, for joins.
const userColumnsU = `u.id, u.username, COALESCE(u.email, ''), COALESCE(u.hashed_password, ''), u.is_active,
	COALESCE(u.avatar_url, ''), COALESCE(u.full_name, ''), COALESCE(u.auth_provider, ''), u.created_at`

const messageColumns = `id, content, created_at, is_read, sender_id, receiver_id`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive,
		&u.AvatarURL, &u.FullName, &u.AuthProvider, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	return u, err
}

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	err := row.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.IsRead, &m.SenderID, &m.ReceiverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return message.Message{}, ErrNotFound
	}
	return m, err
}

func collectUsers(rows pgx.Rows) ([]user.User, error) {
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser inserts a new account.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (user.User, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, hashed_password, auth_provider)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		RETURNING `+userColumns,
		arg.Username, arg.Email, arg.PasswordHash, arg.AuthProvider)

	u, err := scanUser(row)
	if err != nil {
		return user.User{}, translateUserConflict(err)
	}
	return u, nil
}

// GetUserByID fetches one account by id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return scanUser(q.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByUsername fetches one account by its exact username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return scanUser(q.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// GetUserByEmail fetches one account by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return scanUser(q.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// SearchUsers returns active users whose username contains query, case-insensitively.
func (q *Queries) SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := q.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND id <> $1 AND lower(username) LIKE $2 ESCAPE '\'
		ORDER BY username
		LIMIT $3`,
		excludeID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectUsers(rows)
}

// UpdateUserAvatar sets the avatar URL of an account.
func (q *Queries) UpdateUserAvatar(ctx context.Context, id int64, avatarURL string) (user.User, error) {
	return scanUser(q.pool.QueryRow(ctx, `
		UPDATE users SET avatar_url = NULLIF($2, '') WHERE id = $1
		RETURNING `+userColumns,
		id, avatarURL))
}

// CreateMessage appends a message and returns it with its generated id.
func (q *Queries) CreateMessage(ctx context.Context, arg message.New) (message.Message, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO direct_messages (content, created_at, sender_id, receiver_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageColumns,
		arg.Content, arg.Timestamp(time.Now()), arg.SenderID, arg.ReceiverID)

	m, err := scanMessage(row)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return message.Message{}, ErrReferenceViolation
		}
		return message.Message{}, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// GetMessage fetches one message by id.
func (q *Queries) GetMessage(ctx context.Context, id int64) (message.Message, error) {
	return scanMessage(q.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM direct_messages WHERE id = $1`, id))
}

// ListMessages returns the history selected by filter, oldest first.
func (q *Queries) ListMessages(ctx context.Context, filter message.Filter) ([]message.Message, error) {
	filter = filter.Normalize()

	var (
		rows pgx.Rows
		err  error
	)
	if filter.OtherUserID != 0 {
		rows, err = q.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM direct_messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at, id
			OFFSET $3 LIMIT $4`,
			filter.UserID, filter.OtherUserID, filter.Skip, filter.Limit)
	} else {
		rows, err = q.pool.Query(ctx, `
			SELECT `+messageColumns+` FROM direct_messages
			WHERE sender_id = $1 OR receiver_id = $1
			ORDER BY created_at, id
			OFFSET $2 LIMIT $3`,
			filter.UserID, filter.Skip, filter.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]message.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListConversationPartners returns everyone userID exchanged messages with,
// most recent conversation first.
func (q *Queries) ListConversationPartners(ctx context.Context, userID int64) ([]user.User, error) {
	rows, err := q.pool.Query(ctx, `
		WITH last_messages AS (
			SELECT
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS user_id,
				MAX(created_at) AS last_message_time,
				MAX(id) AS last_message_id
			FROM direct_messages
			WHERE sender_id = $1 OR receiver_id = $1
			GROUP BY 1
		)
		SELECT `+userColumnsU+`
		FROM users u
		JOIN last_messages lm ON u.id = lm.user_id
		ORDER BY lm.last_message_time DESC, lm.last_message_id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return collectUsers(rows)
}

// MarkMessageRead sets is_read on a message addressed to receiverID.
func (q *Queries) MarkMessageRead(ctx context.Context, id int64, receiverID int64) error {
	tag, err := q.pool.Exec(ctx,
		`UPDATE direct_messages SET is_read = TRUE WHERE id = $1 AND receiver_id = $2`,
		id, receiverID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := q.GetMessage(ctx, id); err != nil {
		return err
	}
	return ErrNotReceiver
}

// CountUnread counts unread messages addressed to userID.
func (q *Queries) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM direct_messages WHERE receiver_id = $1 AND NOT is_read`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// Ping checks database connectivity.
func (q *Queries) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}

// Close releases the pool.
func (q *Queries) Close() {
	q.pool.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
