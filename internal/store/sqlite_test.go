package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/routing"
)

func newMockStore(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	s := NewWithDB(db)
	t.Cleanup(func() { s.Close() })
	return s, mock
}

func departmentColumns() []string {
	return []string{
		"id", "name", "expertise", "workload", "response_hours",
		"success_rate", "staff", "escalation_level", "contact", "coverage", "specializations",
	}
}

func reportColumns() []string {
	return []string{
		"id", "text", "category", "urgency", "priority_score", "confidence",
		"recommended_action", "assigned_department", "status", "location", "created_at", "resolved_at",
	}
}

func TestSaveDepartment_Upserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO departments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveDepartment(context.Background(), routing.Profile{
		ID:        "public_works",
		Name:      "Public Works Department",
		Expertise: []analyzer.Category{analyzer.CategoryInfrastructure},
		Workload:  45,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDepartment_RejectsEmptyID(t *testing.T) {
	s, _ := newMockStore(t)
	require.Error(t, s.SaveDepartment(context.Background(), routing.Profile{Name: "nameless"}))
}

func TestDepartment_DecodesJSONColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM departments WHERE id").
		WithArgs("health_department").
		WillReturnRows(sqlmock.NewRows(departmentColumns()).AddRow(
			"health_department", "Health Department",
			`["healthcare","environment"]`,
			30, 12.0, 0.9, 35, 2,
			`{"email":"health@gov.go.ke"}`,
			`["all_regions"]`,
			`["medical","sanitation"]`,
		))

	p, err := s.Department(context.Background(), "health_department")
	require.NoError(t, err)
	require.Equal(t, "Health Department", p.Name)
	require.Equal(t, []analyzer.Category{analyzer.CategoryHealthcare, analyzer.CategoryEnvironment}, p.Expertise)
	require.Equal(t, "health@gov.go.ke", p.Contact["email"])
	require.Equal(t, []string{"all_regions"}, p.Coverage)
	require.Equal(t, []string{"medical", "sanitation"}, p.Specializations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartment_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM departments WHERE id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Department(context.Background(), "ghost")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDepartments_ListsAll(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM departments ORDER BY id").
		WillReturnRows(sqlmock.NewRows(departmentColumns()).
			AddRow("a", "A", `["general"]`, 1, 1.0, 0.5, 1, 1, nil, nil, nil).
			AddRow("b", "B", `["education"]`, 2, 2.0, 0.6, 2, 2, nil, nil, nil))

	out, err := s.Departments(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, []analyzer.Category{analyzer.CategoryEducation}, out[1].Expertise)
}

func TestDeleteDepartment(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM departments WHERE id").
		WithArgs("a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteDepartment(context.Background(), "a"))

	mock.ExpectExec("DELETE FROM departments WHERE id").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.DeleteDepartment(context.Background(), "ghost")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveReport_DefaultsStatusAndTimestamp(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs("r1", "water outage", "utilities", "high", 0.7, 0.8,
			"standard_processing", "public_works", StatusOpen, "", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveReport(context.Background(), ReportRecord{
		ID:                 "r1",
		Text:               "water outage",
		Category:           "utilities",
		Urgency:            "high",
		PriorityScore:      0.7,
		Confidence:         0.8,
		RecommendedAction:  "standard_processing",
		AssignedDepartment: "public_works",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReport_RoundTrip(t *testing.T) {
	s, mock := newMockStore(t)

	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reportColumns()).AddRow(
			"r1", "water outage", "utilities", "high", 0.7, 0.8,
			"standard_processing", "public_works", StatusOpen, nil, created, nil,
		))

	r, err := s.Report(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "water outage", r.Text)
	require.Equal(t, StatusOpen, r.Status)
	require.Empty(t, r.Location)
	require.True(t, r.ResolvedAt.IsZero())
	require.Equal(t, created, r.CreatedAt)
}

func TestReport_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Report(context.Background(), "ghost")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateReportStatus(t *testing.T) {
	s, mock := newMockStore(t)
	resolved := time.Now()

	mock.ExpectExec("UPDATE reports SET status").
		WithArgs(StatusResolved, resolved, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateReportStatus(context.Background(), "r1", StatusResolved, resolved))

	mock.ExpectExec("UPDATE reports SET status").
		WithArgs(StatusOpen, nil, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.UpdateReportStatus(context.Background(), "ghost", StatusOpen, time.Time{})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestOpenReports_FiltersResolved(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE status").
		WithArgs(StatusResolved, 100).
		WillReturnRows(sqlmock.NewRows(reportColumns()).AddRow(
			"r2", "pothole", "infrastructure", "medium", 0.5, 0.7,
			"routine_processing", "public_works", StatusAssigned, "ward 5", time.Now(), nil,
		))

	out, err := s.OpenReports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "ward 5", out[0].Location)
}

func TestSeed_OnlyWhenEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	seed := []routing.Profile{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM departments`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO departments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO departments").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Seed(ctx, seed))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM departments`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	require.NoError(t, s.Seed(ctx, seed))

	require.NoError(t, mock.ExpectationsWereMet())
}
