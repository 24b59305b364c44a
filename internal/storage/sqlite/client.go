package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS url_groups (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_groups_user ON url_groups(user_id);

	CREATE TABLE IF NOT EXISTS group_urls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		FOREIGN KEY (group_id) REFERENCES url_groups(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_group_urls_group ON group_urls(group_id);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON chat_sessions(created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON chat_messages(created_at);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertGroup(group *models.URLGroup) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO url_groups (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		group.ID, group.UserID, group.Name, group.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for i, u := range group.URLs {
		_, err = tx.Exec(
			`INSERT INTO group_urls (group_id, position, url) VALUES (?, ?, ?)`,
			group.ID, i, u,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group url: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}

	logger.Debug("Group inserted", zap.String("group_id", group.ID), zap.Int("urls", len(group.URLs)))
	return nil
}

func (c *Client) GetGroup(id string) (*models.URLGroup, error) {
	var group models.URLGroup
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT id, user_id, name, created_at FROM url_groups WHERE id = ?`, id,
	).Scan(&group.ID, &group.UserID, &group.Name, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.CreatedAt = time.Unix(createdAt, 0)

	urls, err := c.GetGroupURLs(id)
	if err != nil {
		return nil, err
	}
	group.URLs = urls

	return &group, nil
}

func (c *Client) GetGroupURLs(groupID string) ([]string, error) {
	rows, err := c.db.Query(
		`SELECT url FROM group_urls WHERE group_id = ? ORDER BY position`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		urls = append(urls, u)
	}

	return urls, rows.Err()
}

func (c *Client) ListGroups(userID string) ([]models.URLGroup, error) {
	rows, err := c.db.Query(
		`SELECT id, user_id, name, created_at FROM url_groups WHERE user_id = ? ORDER BY created_at`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.URLGroup
	for rows.Next() {
		var g models.URLGroup
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		g.CreatedAt = time.Unix(createdAt, 0)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		urls, err := c.GetGroupURLs(groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].URLs = urls
	}

	return groups, nil
}

func (c *Client) RenameGroup(id, name string) error {
	_, err := c.db.Exec(`UPDATE url_groups SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return nil
}

// ReplaceGroupURLs swaps the whole ordered URL set for a group.
func (c *Client) ReplaceGroupURLs(groupID string, urls []string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM group_urls WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to clear group urls: %w", err)
	}

	for i, u := range urls {
		_, err = tx.Exec(
			`INSERT INTO group_urls (group_id, position, url) VALUES (?, ?, ?)`,
			groupID, i, u,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group url: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group urls: %w", err)
	}

	return nil
}

// DeleteGroup removes the group and, via the FK cascade, all of its URL rows.
func (c *Client) DeleteGroup(id string) error {
	_, err := c.db.Exec(`DELETE FROM url_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	logger.Info("Group deleted", zap.String("group_id", id))
	return nil
}

func (c *Client) InsertSession(session *models.ChatSession) error {
	_, err := c.db.Exec(
		`INSERT INTO chat_sessions (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.Title, session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	logger.Debug("Session inserted", zap.String("session_id", session.ID))
	return nil
}

func (c *Client) GetSession(id string) (*models.ChatSession, error) {
	var s models.ChatSession
	var createdAt int64

	err := c.db.QueryRow(
		`SELECT id, user_id, title, created_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Title, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0)

	return &s, nil
}

// ListSessions returns the user's sessions newest-first.
func (c *Client) ListSessions(userID string) ([]models.ChatSession, error) {
	rows, err := c.db.Query(
		`SELECT id, user_id, title, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		var s models.ChatSession
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func (c *Client) UpdateSessionTitle(id, title string) error {
	_, err := c.db.Exec(`UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update session title: %w", err)
	}
	return nil
}

func (c *Client) DeleteSession(id string) error {
	_, err := c.db.Exec(`DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (c *Client) InsertMessage(msg *models.ChatMessage) error {
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(
		`INSERT INTO chat_messages (id, session_id, sender, kind, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Sender), string(msg.Kind), msg.Content, metadata, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// UpdateMessage mutates a message in place (content, kind and metadata change
// as a turn advances; the row identity stays stable).
func (c *Client) UpdateMessage(msg *models.ChatMessage) error {
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(
		`UPDATE chat_messages SET content = ?, kind = ?, metadata = ? WHERE id = ?`,
		msg.Content, string(msg.Kind), metadata, msg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	return nil
}

func (c *Client) GetMessage(id string) (*models.ChatMessage, error) {
	row := c.db.QueryRow(
		`SELECT id, session_id, sender, kind, content, metadata, created_at FROM chat_messages WHERE id = ?`, id,
	)
	return scanMessage(row)
}

// ListMessages returns the session transcript in insertion order. created_at
// is second-granular, so same-second rows are tie-broken by rowid rather than
// by the random message id.
func (c *Client) ListMessages(sessionID string) ([]*models.ChatMessage, error) {
	rows, err := c.db.Query(
		`SELECT id, session_id, sender, kind, content, metadata, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at, rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (c *Client) SetSetting(key, value string) error {
	_, err := c.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// GetSetting returns "" for an absent key.
func (c *Client) GetSetting(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scannable) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	var sender, kind string
	var metadata sql.NullString
	var createdAt int64

	err := row.Scan(&msg.ID, &msg.SessionID, &sender, &kind, &msg.Content, &metadata, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	msg.Sender = models.Sender(sender)
	msg.Kind = models.MessageKind(kind)
	msg.CreatedAt = time.Unix(createdAt, 0)

	if metadata.Valid && metadata.String != "" {
		var m models.MessageMetadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}
		msg.Metadata = &m
	}

	return &msg, nil
}

func marshalMetadata(m *models.MessageMetadata) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message metadata: %w", err)
	}
	return string(data), nil
}
