package editor

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/five82/licdesk/internal/licensing"
)

// Mode is the editing mode of a license detail.
type Mode int

const (
	ModeNew Mode = iota
	ModeEdit
	ModeView
)

func (m Mode) String() string {
	switch m {
	case ModeNew:
		return "new"
	case ModeEdit:
		return "edit"
	case ModeView:
		return "view"
	default:
		return "unknown"
	}
}

// Header field names accepted by UpdateHeaderField.
const (
	FieldSerialNumber = "serialNumber"
	FieldDomain       = "domain"
	FieldCustomerName = "customerName"
	FieldActive       = "active"
)

// Module field names accepted by UpdateModuleField.
const (
	FieldModule        = "module"
	FieldNumberOfUsers = "numberOfUsers"
	FieldStartDate     = "startDate"
	FieldEndDate       = "endDate"
)

// PlaceholderModule is the label of an unselected module picker.
const PlaceholderModule = "Select Module"

// defaultGrantDays is the length of a freshly added module grant.
const defaultGrantDays = 30

var (
	ErrReadOnly       = errors.New("license is read-only")
	ErrUnknownField   = errors.New("unknown field")
	ErrModuleNotFound = errors.New("module not found")
)

// Policy holds the validation rules that vary per deployment.
type Policy struct {
	// AllowEmptyModules permits saving a license without module grants.
	AllowEmptyModules bool
	// RequireSerial demands a positive serial number.
	RequireSerial bool
}

func (p Policy) minModules() int {
	if p.AllowEmptyModules {
		return 0
	}
	return 1
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the time source used for new module dates.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// State is the working copy of one license being viewed, created or edited,
// together with the snapshot it is compared against.
type State struct {
	mode    Mode
	policy  Policy
	now     func() time.Time
	header  licensing.LicenseHeader
	modules []licensing.ModuleGrant

	snapHeader  licensing.LicenseHeader
	snapModules []licensing.ModuleGrant
}

// NewLicense returns a State for creating a license.
func NewLicense(policy Policy, opts ...Option) *State {
	s := &State{mode: ModeNew, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.initNew()
	return s
}

// FromDetail returns a State for a fetched license in ModeEdit or ModeView.
// ModeNew is treated as ModeEdit.
func FromDetail(detail licensing.LicenseDetail, mode Mode, policy Policy, opts ...Option) *State {
	if mode == ModeNew {
		mode = ModeEdit
	}
	s := &State{mode: mode, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	loaded := detail.Clone()
	for i := range loaded.Modules {
		if d, err := NormalizeDate(loaded.Modules[i].StartDate); err == nil {
			loaded.Modules[i].StartDate = d
		}
		if d, err := NormalizeDate(loaded.Modules[i].EndDate); err == nil {
			loaded.Modules[i].EndDate = d
		}
	}
	s.header = loaded.Header
	s.modules = loaded.Modules
	s.takeSnapshot()
	return s
}

func (s *State) initNew() {
	s.header = licensing.LicenseHeader{Active: true}
	s.modules = nil
	s.takeSnapshot()
}

func (s *State) takeSnapshot() {
	snap := licensing.LicenseDetail{Header: s.header, Modules: s.modules}.Clone()
	s.snapHeader = snap.Header
	s.snapModules = snap.Modules
}

func (s *State) Mode() Mode       { return s.mode }
func (s *State) Policy() Policy   { return s.policy }
func (s *State) IsNew() bool      { return s.mode == ModeNew }
func (s *State) IsEditMode() bool { return s.mode == ModeNew || s.mode == ModeEdit }
func (s *State) CanEdit() bool    { return s.IsEditMode() }
func (s *State) ModuleCount() int { return len(s.modules) }
func (s *State) Header() licensing.LicenseHeader {
	return licensing.LicenseDetail{Header: s.header}.Clone().Header
}

// Modules returns a copy of the working module list.
func (s *State) Modules() []licensing.ModuleGrant {
	return slices.Clone(s.modules)
}

// Detail returns a copy of the working license.
func (s *State) Detail() licensing.LicenseDetail {
	return licensing.LicenseDetail{Header: s.header, Modules: s.modules}.Clone()
}

// Edit switches a read-only view into edit mode.
func (s *State) Edit() {
	if s.mode == ModeView {
		s.mode = ModeEdit
	}
}

// AddModule appends a grant for one user starting today and running for
// 30 days. It returns the new module id.
func (s *State) AddModule() (int, error) {
	if !s.IsEditMode() {
		return 0, ErrReadOnly
	}
	next := 0
	for _, m := range s.modules {
		next = max(next, m.ID)
	}
	next++
	today := s.now().UTC()
	s.modules = append(s.modules, licensing.ModuleGrant{
		ID:            next,
		NumberOfUsers: 1,
		StartDate:     today.Format(DateLayout),
		EndDate:       today.Add(defaultGrantDays * 24 * time.Hour).Format(DateLayout),
	})
	return next, nil
}

// RemoveModule deletes the module with id unless that would leave fewer
// modules than the policy requires. It reports whether a module was removed.
func (s *State) RemoveModule(id int) bool {
	if !s.IsEditMode() || len(s.modules) <= s.policy.minModules() {
		return false
	}
	idx := s.moduleIndex(id)
	if idx < 0 {
		return false
	}
	s.modules = slices.Delete(s.modules, idx, idx+1)
	return true
}

func (s *State) moduleIndex(id int) int {
	return slices.IndexFunc(s.modules, func(m licensing.ModuleGrant) bool { return m.ID == id })
}

// UpdateModuleField sets one field of the module with id from its text
// form. State is unchanged when an error is returned.
func (s *State) UpdateModuleField(id int, field, value string) error {
	if !s.IsEditMode() {
		return ErrReadOnly
	}
	idx := s.moduleIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrModuleNotFound, id)
	}
	m := s.modules[idx]
	switch field {
	case FieldModule:
		if m.Module != value {
			m.ModuleID = 0
		}
		m.Module = value
	case FieldNumberOfUsers:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		m.NumberOfUsers = n
	case FieldStartDate, FieldEndDate:
		d, err := NormalizeDate(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		if field == FieldStartDate {
			m.StartDate = d
		} else {
			m.EndDate = d
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	s.modules[idx] = m
	return nil
}

// UpdateHeaderField sets one header field from its text form. A blank
// serial number clears it. State is unchanged when an error is returned.
func (s *State) UpdateHeaderField(field, value string) error {
	if !s.IsEditMode() {
		return ErrReadOnly
	}
	switch field {
	case FieldSerialNumber:
		v := strings.TrimSpace(value)
		if v == "" {
			s.header.SerialNumber = nil
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		s.header.SerialNumber = &n
	case FieldDomain:
		s.header.Domain = value
	case FieldCustomerName:
		s.header.CustomerName = value
	case FieldActive:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", field, err)
		}
		s.header.Active = b
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}

// ToggleActive flips the active flag.
func (s *State) ToggleActive() {
	if s.IsEditMode() {
		s.header.Active = !s.header.Active
	}
}

// IsDirty reports whether the working copy differs from the snapshot.
// Header text fields compare trimmed; modules compare in order on name,
// user count and dates, ignoring ids.
func (s *State) IsDirty() bool {
	return headerChanged(s.header, s.snapHeader) || modulesChanged(s.modules, s.snapModules)
}

func headerChanged(cur, prev licensing.LicenseHeader) bool {
	return !sameSerial(cur.SerialNumber, prev.SerialNumber) ||
		strings.TrimSpace(cur.Domain) != strings.TrimSpace(prev.Domain) ||
		strings.TrimSpace(cur.CustomerName) != strings.TrimSpace(prev.CustomerName) ||
		cur.Active != prev.Active
}

func sameSerial(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type moduleProjection struct {
	module        string
	numberOfUsers int
	startDate     string
	endDate       string
}

func project(m licensing.ModuleGrant) moduleProjection {
	return moduleProjection{m.Module, m.NumberOfUsers, m.StartDate, m.EndDate}
}

func modulesChanged(cur, prev []licensing.ModuleGrant) bool {
	return !slices.EqualFunc(cur, prev, func(a, b licensing.ModuleGrant) bool {
		return project(a) == project(b)
	})
}

// IsSubmittable reports whether Save may be attempted: the license is
// valid and, when editing an existing license, something changed.
func (s *State) IsSubmittable() bool {
	switch s.mode {
	case ModeView:
		return false
	case ModeEdit:
		if !s.IsDirty() {
			return false
		}
	}
	return len(s.Validate()) == 0
}

// Reset discards edits. A new license starts over; an existing one returns
// to its snapshot.
func (s *State) Reset() {
	if s.mode == ModeNew {
		s.initNew()
		return
	}
	snap := licensing.LicenseDetail{Header: s.snapHeader, Modules: s.snapModules}.Clone()
	s.header = snap.Header
	s.modules = snap.Modules
}

// Commit records a successful save: the working copy becomes the snapshot
// and the state turns read-only. A created license takes its id from ack.
func (s *State) Commit(ack licensing.SaveResponse) {
	if s.mode == ModeNew && ack.ID > 0 {
		id := ack.ID
		s.header.ID = &id
	}
	s.takeSnapshot()
	s.mode = ModeView
}
