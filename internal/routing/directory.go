// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing assigns classified reports to government departments. The
// Directory holds live department profiles under per-entry locks; the Engine
// scores candidates and produces routing decisions with escalation paths.
package routing

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

// ErrUnknownDepartment is returned when a department id is not registered.
var ErrUnknownDepartment = errors.New("routing: unknown department")

// DefaultDepartmentID receives reports no registered department has expertise
// for. It must always be registered.
const DefaultDepartmentID = "general_administration"

// MayorOfficeID is the executive escalation tier appended for critical
// reports. It is an escalation address, not a routable department.
const MayorOfficeID = "mayor_office"

// EmergencyServicesID is the emergency escalation tier for critical reports.
const EmergencyServicesID = "emergency_services"

// Profile describes one department's routing-relevant state. Workload,
// ResponseHours and SuccessRate are live values mutated only through
// Directory.UpdatePerformance.
type Profile struct {
	ID              string              `json:"department_id"`
	Name            string              `json:"name"`
	Expertise       []analyzer.Category `json:"category_expertise"`
	Workload        int                 `json:"current_workload"`
	ResponseHours   float64             `json:"average_response_time"`
	SuccessRate     float64             `json:"success_rate"`
	Staff           int                 `json:"active_staff"`
	EscalationLevel int                 `json:"escalation_level"`
	Contact         map[string]string   `json:"contact_info,omitempty"`
	Coverage        []string            `json:"geographic_coverage,omitempty"`
	Specializations []string            `json:"specializations,omitempty"`
}

// Covers reports whether the department has expertise for the category.
func (p Profile) Covers(c analyzer.Category) bool {
	for _, e := range p.Expertise {
		if e == c {
			return true
		}
	}
	return false
}

type entry struct {
	mu sync.Mutex
	p  Profile
}

// Directory is the concurrency-safe registry of department profiles.
// The registry map is guarded by an RWMutex; each profile carries its own
// lock so concurrent performance updates for different departments never
// serialize against each other.
type Directory struct {
	mu    sync.RWMutex
	depts map[string]*entry
	order []string
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{depts: make(map[string]*entry)}
}

// Register adds or replaces a department profile. Registration order is
// preserved and used as the deterministic tie-break in ranking.
func (d *Directory) Register(p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("routing: profile without id")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.depts[p.ID]; ok {
		existing.mu.Lock()
		existing.p = p
		existing.mu.Unlock()
		return nil
	}
	d.depts[p.ID] = &entry{p: p}
	d.order = append(d.order, p.ID)
	return nil
}

// Get returns a snapshot of one profile.
func (d *Directory) Get(id string) (Profile, bool) {
	d.mu.RLock()
	e, ok := d.depts[id]
	d.mu.RUnlock()
	if !ok {
		return Profile{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p, true
}

// Snapshot returns copies of all profiles in registration order.
func (d *Directory) Snapshot() []Profile {
	d.mu.RLock()
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	d.mu.RUnlock()

	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := d.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of registered departments.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.depts)
}

// UpdatePerformance folds one resolved report into a department's live
// metrics. Response time and success rate move by an exponential moving
// average with weight 1/10; workload moves by exactly one, floored at zero.
// The read-modify-write runs under the department's own lock, so concurrent
// resolutions for the same department never lose updates.
func (d *Directory) UpdatePerformance(id string, responseHours float64, success bool) error {
	d.mu.RLock()
	e, ok := d.depts[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDepartment, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.p.ResponseHours = (e.p.ResponseHours*9 + responseHours) / 10
	if success {
		e.p.SuccessRate = minF((e.p.SuccessRate*9+1)/10, 1.0)
		if e.p.Workload > 0 {
			e.p.Workload--
		}
	} else {
		e.p.SuccessRate = maxF(e.p.SuccessRate*9/10, 0.0)
		e.p.Workload++
	}
	log.WithFields(log.Fields{
		"department":    id,
		"response_time": e.p.ResponseHours,
		"success_rate":  e.p.SuccessRate,
		"workload":      e.p.Workload,
	}).Debug("department performance updated")
	return nil
}

// Analytics returns a stats view of every department, keyed by id.
func (d *Directory) Analytics() map[string]interface{} {
	out := make(map[string]interface{})
	for _, p := range d.Snapshot() {
		out[p.ID] = map[string]interface{}{
			"name":                  p.Name,
			"current_workload":      p.Workload,
			"average_response_time": p.ResponseHours,
			"success_rate":          p.SuccessRate,
			"active_staff":          p.Staff,
			"escalation_level":      p.EscalationLevel,
		}
	}
	return out
}

// DefaultDepartments returns the stock department seed used when no
// persistent store provides one.
func DefaultDepartments() []Profile {
	return []Profile{
		{
			ID:   EmergencyServicesID,
			Name: "Emergency Services",
			Expertise: []analyzer.Category{
				analyzer.CategoryEmergency, analyzer.CategoryPublicSafety,
			},
			Workload:        15,
			ResponseHours:   0.5,
			SuccessRate:     0.95,
			Staff:           25,
			EscalationLevel: 1,
			Contact:         map[string]string{"email": "emergency@gov.go.ke", "phone": "911"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"fire", "medical", "police"},
		},
		{
			ID:   "public_works",
			Name: "Public Works Department",
			Expertise: []analyzer.Category{
				analyzer.CategoryInfrastructure, analyzer.CategoryUtilities, analyzer.CategoryTransportation,
			},
			Workload:        45,
			ResponseHours:   24.0,
			SuccessRate:     0.85,
			Staff:           40,
			EscalationLevel: 2,
			Contact:         map[string]string{"email": "publicworks@gov.go.ke", "phone": "555-0101"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"roads", "bridges", "water", "electricity"},
		},
		{
			ID:   "health_department",
			Name: "Health Department",
			Expertise: []analyzer.Category{
				analyzer.CategoryHealthcare, analyzer.CategoryEnvironment,
			},
			Workload:        30,
			ResponseHours:   12.0,
			SuccessRate:     0.90,
			Staff:           35,
			EscalationLevel: 2,
			Contact:         map[string]string{"email": "health@gov.go.ke", "phone": "555-0202"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"medical", "sanitation", "epidemic"},
		},
		{
			ID:   "anti_corruption",
			Name: "Anti-Corruption Bureau",
			Expertise: []analyzer.Category{
				analyzer.CategoryCorruption, analyzer.CategoryGovernmentServices,
			},
			Workload:        20,
			ResponseHours:   48.0,
			SuccessRate:     0.88,
			Staff:           15,
			EscalationLevel: 3,
			Contact:         map[string]string{"email": "anticorruption@gov.go.ke", "phone": "555-0303"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"investigation", "audit", "transparency"},
		},
		{
			ID:   "education_services",
			Name: "Education Services",
			Expertise: []analyzer.Category{
				analyzer.CategoryEducation,
			},
			Workload:        25,
			ResponseHours:   72.0,
			SuccessRate:     0.82,
			Staff:           20,
			EscalationLevel: 2,
			Contact:         map[string]string{"email": "education@gov.go.ke", "phone": "555-0404"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"schools", "universities", "training"},
		},
		{
			ID:   DefaultDepartmentID,
			Name: "General Administration",
			Expertise: []analyzer.Category{
				analyzer.CategoryGeneral, analyzer.CategoryGovernmentServices,
			},
			Workload:        35,
			ResponseHours:   96.0,
			SuccessRate:     0.80,
			Staff:           30,
			EscalationLevel: 2,
			Contact:         map[string]string{"email": "admin@gov.go.ke", "phone": "555-0505"},
			Coverage:        []string{"all_regions"},
			Specializations: []string{"general", "citizen_services"},
		},
	}
}

// NewDefaultDirectory builds a directory seeded with DefaultDepartments.
func NewDefaultDirectory() *Directory {
	d := NewDirectory()
	for _, p := range DefaultDepartments() {
		if err := d.Register(p); err != nil {
			log.WithError(err).Warn("skipping invalid default department")
		}
	}
	return d
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
