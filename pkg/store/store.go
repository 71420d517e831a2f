// Package store keeps people, conversation streams and message history in
// SQLite. It is the host directory and stream registry the gateway hands to
// the proactive plugin.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/identity"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory if needed and
// applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.InfoCF("store", "Database opened", map[string]any{"path": path})
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Person is a stored profile.
type Person struct {
	ID         host.PersonID
	Platform   string
	UserID     int64
	Name       string
	Nickname   string
	Impression int
}

// UpsertPerson creates or refreshes the profile for platform/userID. name
// tracks the latest non-empty sender name; the nickname is taken from the
// first non-empty one and kept after that.
func (s *Store) UpsertPerson(ctx context.Context, platform string, userID int64, name string) (host.PersonID, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persons (id, platform, user_id, name, nickname, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, user_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE persons.name END,
			nickname = CASE WHEN persons.nickname = '' THEN excluded.nickname ELSE persons.nickname END,
			updated_at = excluded.updated_at
	`, uuid.NewString(), platform, userID, name, name, now, now)
	if err != nil {
		return "", fmt.Errorf("upsert person: %w", err)
	}

	id, ok, err := s.PersonID(ctx, platform, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("upsert person: %s/%d vanished", platform, userID)
	}
	return id, nil
}

// SetImpression stores how favourably the bot regards a user.
func (s *Store) SetImpression(ctx context.Context, platform string, userID int64, impression int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE persons SET impression = ?, updated_at = ? WHERE platform = ? AND user_id = ?
	`, impression, time.Now().UTC(), platform, userID)
	if err != nil {
		return fmt.Errorf("set impression: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set impression: no person %s/%d", platform, userID)
	}
	return nil
}

// GetPerson returns nil, nil when the profile does not exist.
func (s *Store) GetPerson(ctx context.Context, id host.PersonID) (*Person, error) {
	p := &Person{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, platform, user_id, name, nickname, impression
		FROM persons WHERE id = ?
	`, string(id)).Scan(&p.ID, &p.Platform, &p.UserID, &p.Name, &p.Nickname, &p.Impression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// PersonIDByName matches the stored name first, then the nickname, then a
// platform user id that has a numeric alias (a Slack member id, say).
func (s *Store) PersonIDByName(ctx context.Context, name string) (host.PersonID, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id FROM persons p
		WHERE p.name = ? OR p.nickname = ? OR EXISTS (
			SELECT 1 FROM user_aliases a
			WHERE a.platform = p.platform AND a.user_id = p.user_id AND a.external_id = ?
		)
		ORDER BY CASE WHEN p.name = ? THEN 0 WHEN p.nickname = ? THEN 1 ELSE 2 END, p.updated_at DESC
		LIMIT 1
	`, name, name, name, name, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("person by name: %w", err)
	}
	return host.PersonID(id), true, nil
}

func (s *Store) PersonID(ctx context.Context, platform string, userID int64) (host.PersonID, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM persons WHERE platform = ? AND user_id = ?`, platform, userID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("person by id: %w", err)
	}
	return host.PersonID(id), true, nil
}

// PersonValue exposes user_id (as a string), nickname and impression.
// Unknown attributes are reported as absent.
func (s *Store) PersonValue(ctx context.Context, id host.PersonID, attr string) (any, bool, error) {
	p, err := s.GetPerson(ctx, id)
	if err != nil || p == nil {
		return nil, false, err
	}
	switch attr {
	case host.AttrUserID:
		return strconv.FormatInt(p.UserID, 10), true, nil
	case host.AttrNickname:
		if p.Nickname == "" {
			return nil, false, nil
		}
		return p.Nickname, true, nil
	case host.AttrImpression:
		return p.Impression, true, nil
	case "name":
		return p.Name, p.Name != "", nil
	default:
		return nil, false, nil
	}
}

// Inbound is a message observed on a channel.
type Inbound struct {
	Platform string
	UserID   string
	UserName string
	// ChatID is the platform address of the conversation: the DM channel for
	// private messages, the group for group messages.
	ChatID  string
	Private bool
	Content string
}

// RecordInbound upserts the sender's profile and the conversation stream and
// appends the message to the stream history. A sender id that is not numeric
// is stored under its alias, so profile and stream user_id are always numbers.
func (s *Store) RecordInbound(ctx context.Context, in Inbound) (host.Stream, error) {
	if in.Platform == "" || in.UserID == "" {
		return host.Stream{}, errors.New("record inbound: platform and user id are required")
	}

	sender := in.UserID
	n, ok := numericUserID(in.UserID)
	if !ok {
		alias, err := s.UserAlias(ctx, in.Platform, in.UserID)
		if err != nil {
			return host.Stream{}, err
		}
		n = alias
		in.UserID = strconv.FormatInt(alias, 10)
	}
	if _, err := s.UpsertPerson(ctx, in.Platform, n, in.UserName); err != nil {
		return host.Stream{}, err
	}

	stream, err := s.upsertStream(ctx, in)
	if err != nil {
		return host.Stream{}, err
	}
	if err := s.insertMessage(ctx, stream.ID, "in", sender, in.Content); err != nil {
		return host.Stream{}, err
	}
	return stream, nil
}

// RecordOutbound appends a message the bot sent to the stream history.
func (s *Store) RecordOutbound(ctx context.Context, stream host.Stream, text string) error {
	return s.insertMessage(ctx, stream.ID, "out", "", text)
}

func (s *Store) upsertStream(ctx context.Context, in Inbound) (host.Stream, error) {
	peer := in.ChatID
	userID := ""
	if in.Private {
		peer = in.UserID
		userID = in.UserID
	}
	if peer == "" {
		return host.Stream{}, errors.New("record inbound: group message without chat id")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streams (id, platform, user_id, user_name, chat_id, private, peer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, private, peer) DO UPDATE SET
			user_name = CASE WHEN excluded.user_name != '' THEN excluded.user_name ELSE streams.user_name END,
			chat_id = CASE WHEN excluded.chat_id != '' THEN excluded.chat_id ELSE streams.chat_id END,
			updated_at = excluded.updated_at
	`, uuid.NewString(), in.Platform, userID, in.UserName, in.ChatID, in.Private, peer, now, now)
	if err != nil {
		return host.Stream{}, fmt.Errorf("upsert stream: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, user_id, chat_id, private FROM streams
		WHERE platform = ? AND private = ? AND peer = ?
	`, in.Platform, in.Private, peer)
	return scanStream(row)
}

// UserAlias returns the numeric user_id standing in for a platform user id
// that is not a number, allocating the next free one on first sight.
func (s *Store) UserAlias(ctx context.Context, platform, externalID string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_aliases (platform, external_id, created_at) VALUES (?, ?, ?)
	`, platform, externalID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("user alias: %w", err)
	}
	id, ok, err := s.lookupAlias(ctx, platform, externalID)
	if err != nil {
		return 0, fmt.Errorf("user alias: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("user alias: %s/%s vanished", platform, externalID)
	}
	return id, nil
}

func (s *Store) lookupAlias(ctx context.Context, platform, externalID string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM user_aliases WHERE platform = ? AND external_id = ?`, platform, externalID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func numericUserID(s string) (int64, bool) {
	if !identity.IsNumericID(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func (s *Store) insertMessage(ctx context.Context, streamID, direction, senderID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, stream_id, direction, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), streamID, direction, senderID, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// StreamByUser returns nil, nil when the user has no private stream. userID
// may be the numeric user_id or an aliased platform id.
func (s *Store) StreamByUser(ctx context.Context, userID, platform string) (*host.Stream, error) {
	if _, ok := numericUserID(userID); !ok {
		alias, found, err := s.lookupAlias(ctx, platform, userID)
		if err != nil {
			return nil, fmt.Errorf("stream by user: %w", err)
		}
		if !found {
			return nil, nil
		}
		userID = strconv.FormatInt(alias, 10)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, user_id, chat_id, private FROM streams
		WHERE platform = ? AND private = 1 AND peer = ?
	`, platform, userID)
	st, err := scanStream(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream by user: %w", err)
	}
	return &st, nil
}

// PrivateStreams lists a platform's private streams, most recently active
// first.
func (s *Store) PrivateStreams(ctx context.Context, platform string) ([]host.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, user_id, chat_id, private FROM streams
		WHERE platform = ? AND private = 1
		ORDER BY updated_at DESC, rowid DESC
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("private streams: %w", err)
	}
	defer rows.Close()

	var out []host.Stream
	for rows.Next() {
		st, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("private streams: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// StreamInfo prefers the profile nickname over the name seen on the stream.
func (s *Store) StreamInfo(ctx context.Context, st host.Stream) (host.StreamInfo, error) {
	info := host.StreamInfo{UserID: st.UserID}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, user_name FROM streams WHERE id = ?`, st.ID,
	).Scan(&info.UserID, &info.UserName)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("stream %s not found", st.ID)
	}
	if err != nil {
		return info, fmt.Errorf("stream info: %w", err)
	}

	if n, err := strconv.ParseInt(info.UserID, 10, 64); err == nil {
		var nick string
		err := s.db.QueryRowContext(ctx,
			`SELECT nickname FROM persons WHERE platform = ? AND user_id = ?`, st.Platform, n,
		).Scan(&nick)
		if err == nil && strings.TrimSpace(nick) != "" {
			info.UserName = nick
		}
	}
	return info, nil
}

// Message is a history entry.
type Message struct {
	ID        string
	StreamID  string
	Direction string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// RecentMessages returns up to limit messages of a stream in chronological
// order.
func (s *Store) RecentMessages(ctx context.Context, streamID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, direction, sender_id, content, created_at
		FROM messages WHERE stream_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.StreamID, &m.Direction, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("recent messages: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStream(r rowScanner) (host.Stream, error) {
	var st host.Stream
	err := r.Scan(&st.ID, &st.Platform, &st.UserID, &st.ChatID, &st.Private)
	return st, err
}

var (
	_ host.Directory      = (*Store)(nil)
	_ host.StreamRegistry = (*Store)(nil)
)
