package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		detector TEXT NOT NULL,
		descriptor TEXT NOT NULL,
		matcher TEXT NOT NULL,
		selector TEXT NOT NULL,
		frames INTEGER NOT NULL,
		avg_keypoints INTEGER NOT NULL,
		avg_size DOUBLE,
		avg_size_std_dev DOUBLE,
		avg_matches INTEGER NOT NULL,
		avg_detect_ms DOUBLE,
		avg_describe_ms DOUBLE,
		avg_process_ms DOUBLE,
		record_json TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs (name);
`

// RunRow 运行历史中的一行
type RunRow struct {
	ID           int64
	Name         string
	Detector     string
	Descriptor   string
	Matcher      string
	Selector     string
	Frames       int
	AvgKeypoints int
	AvgSize      float64
	AvgSizeStd   float64
	AvgMatches   int
	AvgDetectMs  float64
	AvgDescribe  float64
	AvgProcessMs float64
	CreatedAt    time.Time
}

// Store SQLite 运行历史
type Store struct {
	db *sql.DB
}

// OpenStore 打开或创建运行历史数据库
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert 保存一次运行，返回记录 ID
func (s *Store) Insert(rec *RunRecord) (int64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("序列化运行记录失败: %w", err)
	}

	cfg, sum := rec.Config, rec.Summary
	created := rec.StartedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.Exec(`
		INSERT INTO runs (name, detector, descriptor, matcher, selector, frames,
			avg_keypoints, avg_size, avg_size_std_dev, avg_matches,
			avg_detect_ms, avg_describe_ms, avg_process_ms, record_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Name, cfg.Detector, cfg.Descriptor, cfg.Matcher, cfg.Selector, sum.Frames,
		sum.AvgKeypoints, sum.AvgSize, sum.AvgSizeStdDev, sum.AvgMatches,
		sum.AvgDetectMs, sum.AvgDescribeMs, sum.AvgProcessMs, string(data),
		created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("保存运行记录失败: %w", err)
	}
	return res.LastInsertId()
}

// List 按时间倒序列出最近 limit 次运行，limit <= 0 时列出全部
func (s *Store) List(limit int) ([]RunRow, error) {
	query := `
		SELECT run_id, name, detector, descriptor, matcher, selector, frames,
			avg_keypoints, avg_size, avg_size_std_dev, avg_matches,
			avg_detect_ms, avg_describe_ms, avg_process_ms, created_at
		FROM runs ORDER BY run_id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询运行历史失败: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var (
			r       RunRow
			created string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Detector, &r.Descriptor, &r.Matcher, &r.Selector,
			&r.Frames, &r.AvgKeypoints, &r.AvgSize, &r.AvgSizeStd, &r.AvgMatches,
			&r.AvgDetectMs, &r.AvgDescribe, &r.AvgProcessMs, &created); err != nil {
			return nil, fmt.Errorf("读取运行历史失败: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("运行记录 ID=%d 的时间格式无效: %w", r.ID, err)
		}
		r.CreatedAt = t
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Record 读取某次运行的完整记录
func (s *Store) Record(id int64) (*RunRecord, error) {
	var data string
	err := s.db.QueryRow("SELECT record_json FROM runs WHERE run_id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("运行记录不存在: ID=%d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("读取运行记录失败: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("解析运行记录失败: %w", err)
	}
	return &rec, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}
