// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store persists departments and analyzed reports. The SQLite
// implementation is the default backend; the interfaces keep the
// orchestration core independent of any one database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Bouric0076/publicbridge-core/internal/routing"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// DepartmentStore persists routing department profiles.
type DepartmentStore interface {
	SaveDepartment(ctx context.Context, p routing.Profile) error
	Department(ctx context.Context, id string) (routing.Profile, error)
	Departments(ctx context.Context) ([]routing.Profile, error)
	DeleteDepartment(ctx context.Context, id string) error
}

// ReportRecord is one analyzed citizen report as persisted.
type ReportRecord struct {
	ID                 string    `json:"id"`
	Text               string    `json:"text"`
	Category           string    `json:"category"`
	Urgency            string    `json:"urgency"`
	PriorityScore      float64   `json:"priority_score"`
	Confidence         float64   `json:"confidence"`
	RecommendedAction  string    `json:"recommended_action"`
	AssignedDepartment string    `json:"assigned_department"`
	Status             string    `json:"status"`
	Location           string    `json:"location,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	ResolvedAt         time.Time `json:"resolved_at,omitempty"`
}

// Report statuses.
const (
	StatusOpen     = "open"
	StatusAssigned = "assigned"
	StatusResolved = "resolved"
)

// ReportStore persists analyzed reports.
type ReportStore interface {
	SaveReport(ctx context.Context, r ReportRecord) error
	Report(ctx context.Context, id string) (ReportRecord, error)
	UpdateReportStatus(ctx context.Context, id, status string, resolvedAt time.Time) error
	OpenReports(ctx context.Context, limit int) ([]ReportRecord, error)
}

// Store is the combined persistence surface the orchestrator consumes.
type Store interface {
	DepartmentStore
	ReportStore
	Close() error
}
