// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/routing"
)

const schema = `
CREATE TABLE IF NOT EXISTS departments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	expertise TEXT NOT NULL,
	workload INTEGER NOT NULL DEFAULT 0,
	response_hours REAL NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0,
	staff INTEGER NOT NULL DEFAULT 0,
	escalation_level INTEGER NOT NULL DEFAULT 1,
	contact TEXT,
	coverage TEXT,
	specializations TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	category TEXT NOT NULL,
	urgency TEXT NOT NULL,
	priority_score REAL NOT NULL,
	confidence REAL NOT NULL,
	recommended_action TEXT NOT NULL,
	assigned_department TEXT,
	status TEXT NOT NULL,
	location TEXT,
	created_at DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_category ON reports(category);
CREATE INDEX IF NOT EXISTS idx_reports_department ON reports(assigned_department);
`

// SQLite is the database/sql implementation of Store backed by SQLite.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	log.WithField("path", path).Info("report store initialized")
	return &SQLite{db: db}, nil
}

// NewWithDB wraps an existing database handle. The schema is assumed to be
// in place; used by tests.
func NewWithDB(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveDepartment inserts or replaces a department profile.
func (s *SQLite) SaveDepartment(ctx context.Context, p routing.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("store: department without id")
	}
	expertise, err := json.Marshal(p.Expertise)
	if err != nil {
		return fmt.Errorf("store: marshal expertise: %w", err)
	}
	contact := marshalOrEmpty(p.Contact)
	coverage := marshalOrEmpty(p.Coverage)
	specs := marshalOrEmpty(p.Specializations)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO departments
			(id, name, expertise, workload, response_hours, success_rate, staff, escalation_level, contact, coverage, specializations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			expertise = excluded.expertise,
			workload = excluded.workload,
			response_hours = excluded.response_hours,
			success_rate = excluded.success_rate,
			staff = excluded.staff,
			escalation_level = excluded.escalation_level,
			contact = excluded.contact,
			coverage = excluded.coverage,
			specializations = excluded.specializations,
			updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Name, string(expertise), p.Workload, p.ResponseHours, p.SuccessRate,
		p.Staff, p.EscalationLevel, contact, coverage, specs)
	if err != nil {
		return fmt.Errorf("store: save department %s: %w", p.ID, err)
	}
	return nil
}

// Department loads one department profile by id.
func (s *SQLite) Department(ctx context.Context, id string) (routing.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, expertise, workload, response_hours, success_rate, staff, escalation_level, contact, coverage, specializations
		FROM departments WHERE id = ?`, id)
	p, err := scanDepartment(row)
	if err == sql.ErrNoRows {
		return routing.Profile{}, fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	if err != nil {
		return routing.Profile{}, fmt.Errorf("store: load department %s: %w", id, err)
	}
	return p, nil
}

// Departments loads all department profiles ordered by id.
func (s *SQLite) Departments(ctx context.Context) ([]routing.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, expertise, workload, response_hours, success_rate, staff, escalation_level, contact, coverage, specializations
		FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list departments: %w", err)
	}
	defer rows.Close()

	var out []routing.Profile
	for rows.Next() {
		p, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan department: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteDepartment removes a department.
func (s *SQLite) DeleteDepartment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete department %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	return nil
}

// SaveReport inserts one analyzed report.
func (s *SQLite) SaveReport(ctx context.Context, r ReportRecord) error {
	if r.ID == "" {
		return fmt.Errorf("store: report without id")
	}
	if r.Status == "" {
		r.Status = StatusOpen
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	var resolvedAt interface{}
	if !r.ResolvedAt.IsZero() {
		resolvedAt = r.ResolvedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports
			(id, text, category, urgency, priority_score, confidence, recommended_action, assigned_department, status, location, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Text, r.Category, r.Urgency, r.PriorityScore, r.Confidence,
		r.RecommendedAction, r.AssignedDepartment, r.Status, r.Location, r.CreatedAt, resolvedAt)
	if err != nil {
		return fmt.Errorf("store: save report %s: %w", r.ID, err)
	}
	return nil
}

// Report loads one report by id.
func (s *SQLite) Report(ctx context.Context, id string) (ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, category, urgency, priority_score, confidence, recommended_action, assigned_department, status, location, created_at, resolved_at
		FROM reports WHERE id = ?`, id)

	var r ReportRecord
	var location sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Text, &r.Category, &r.Urgency, &r.PriorityScore,
		&r.Confidence, &r.RecommendedAction, &r.AssignedDepartment, &r.Status,
		&location, &r.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return ReportRecord{}, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	if err != nil {
		return ReportRecord{}, fmt.Errorf("store: load report %s: %w", id, err)
	}
	r.Location = location.String
	if resolvedAt.Valid {
		r.ResolvedAt = resolvedAt.Time
	}
	return r, nil
}

// UpdateReportStatus moves a report to a new status, recording the
// resolution time for resolved reports.
func (s *SQLite) UpdateReportStatus(ctx context.Context, id, status string, resolvedAt time.Time) error {
	var resolved interface{}
	if !resolvedAt.IsZero() {
		resolved = resolvedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, resolved_at = ? WHERE id = ?`,
		status, resolved, id)
	if err != nil {
		return fmt.Errorf("store: update report %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	return nil
}

// OpenReports lists unresolved reports, newest first.
func (s *SQLite) OpenReports(ctx context.Context, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, category, urgency, priority_score, confidence, recommended_action, assigned_department, status, location, created_at, resolved_at
		FROM reports WHERE status != ? ORDER BY created_at DESC LIMIT ?`,
		StatusResolved, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list open reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		var location sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.Text, &r.Category, &r.Urgency, &r.PriorityScore,
			&r.Confidence, &r.RecommendedAction, &r.AssignedDepartment, &r.Status,
			&location, &r.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("store: scan report: %w", err)
		}
		r.Location = location.String
		if resolvedAt.Valid {
			r.ResolvedAt = resolvedAt.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Seed stores the given departments if the table is empty.
func (s *SQLite) Seed(ctx context.Context, departments []routing.Profile) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments`).Scan(&count); err != nil {
		return fmt.Errorf("store: count departments: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range departments {
		if err := s.SaveDepartment(ctx, p); err != nil {
			return err
		}
	}
	log.WithField("count", len(departments)).Info("seeded default departments")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDepartment(row rowScanner) (routing.Profile, error) {
	var p routing.Profile
	var expertise string
	var contact, coverage, specs sql.NullString
	err := row.Scan(&p.ID, &p.Name, &expertise, &p.Workload, &p.ResponseHours,
		&p.SuccessRate, &p.Staff, &p.EscalationLevel, &contact, &coverage, &specs)
	if err != nil {
		return routing.Profile{}, err
	}

	var categories []analyzer.Category
	if err := json.Unmarshal([]byte(expertise), &categories); err != nil {
		return routing.Profile{}, fmt.Errorf("decode expertise for %s: %w", p.ID, err)
	}
	p.Expertise = categories
	if contact.Valid && contact.String != "" {
		if err := json.Unmarshal([]byte(contact.String), &p.Contact); err != nil {
			log.Warnf("Ignoring undecodable contact info for department %s: %v", p.ID, err)
		}
	}
	if coverage.Valid && coverage.String != "" {
		if err := json.Unmarshal([]byte(coverage.String), &p.Coverage); err != nil {
			log.Warnf("Ignoring undecodable coverage for department %s: %v", p.ID, err)
		}
	}
	if specs.Valid && specs.String != "" {
		if err := json.Unmarshal([]byte(specs.String), &p.Specializations); err != nil {
			log.Warnf("Ignoring undecodable specializations for department %s: %v", p.ID, err)
		}
	}
	return p, nil
}

func marshalOrEmpty(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
