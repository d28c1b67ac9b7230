package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/iabetor/textspeaker/internal/logger"
)

// Utterance 是一次朗读的记录。
type Utterance struct {
	ID         string
	Text       string
	Engine     string
	Samples    int
	SampleRate int
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Store 使用 SQLite 保存朗读历史。
type Store struct {
	db   *sql.DB
	path string
	keep int
}

// Open 打开或创建历史数据库并执行迁移。
// keep > 0 时每次写入后只保留最近 keep 条记录。
func Open(dbPath string, keep int) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("[history] 数据库路径为空")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("[history] 创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("[history] 打开数据库失败: %w", err)
	}
	// 单连接避免 :memory: 库在多个连接间不共享
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("[history] 设置 WAL 模式失败: %w", err)
	}

	s := &Store{db: db, path: dbPath, keep: keep}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debugf("[history] 数据库已打开: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS utterances (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			engine TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL DEFAULT 0,
			sample_rate INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_utterances_created_at ON utterances(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("[history] 数据库迁移失败: %w", err)
		}
	}
	return nil
}

// Path 返回数据库文件路径。
func (s *Store) Path() string { return s.path }

// Record 写入一条朗读记录，ID 和 CreatedAt 为空时自动填充。
func (s *Store) Record(ctx context.Context, u *Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances (id, text, engine, samples, sample_rate, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Text, u.Engine, u.Samples, u.SampleRate, u.Duration.Milliseconds(), u.Error, u.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("[history] 写入记录失败: %w", err)
	}

	if s.keep > 0 {
		if _, err := s.Prune(ctx, s.keep); err != nil {
			logger.Warnf("[history] 清理旧记录失败: %v", err)
		}
	}
	return nil
}

// Recent 按时间倒序返回最近 limit 条记录。
func (s *Store) Recent(ctx context.Context, limit int) ([]Utterance, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, engine, samples, sample_rate, duration_ms, error, created_at
		 FROM utterances ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("[history] 查询记录失败: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var (
			u          Utterance
			durationMs int64
			createdAt  int64
		)
		if err := rows.Scan(&u.ID, &u.Text, &u.Engine, &u.Samples, &u.SampleRate, &durationMs, &u.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("[history] 读取记录失败: %w", err)
		}
		u.Duration = time.Duration(durationMs) * time.Millisecond
		u.CreatedAt = time.Unix(0, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Prune 只保留最近 keep 条记录，返回删除的条数。
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM utterances WHERE id NOT IN (
			SELECT id FROM utterances ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("[history] 清理记录失败: %w", err)
	}
	return res.RowsAffected()
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
