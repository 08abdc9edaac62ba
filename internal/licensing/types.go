package licensing

import (
	"encoding/json"
	"strings"
	"time"
)

const auditTimestampLayout = "2006-01-02 15:04:05"

// LicenseSummary is the read projection returned by GET /licenses.
type LicenseSummary struct {
	ID           int64  `json:"id"`
	SerialNumber int64  `json:"serialNumber"`
	Domain       string `json:"domain"`
	CustomerName string `json:"customerName"`
	Active       bool   `json:"active"`
}

// UnmarshalJSON accepts the older list payloads that used "customer" and a
// textual "status" instead of customerName/active.
func (s *LicenseSummary) UnmarshalJSON(data []byte) error {
	type plain LicenseSummary
	var raw struct {
		plain
		Customer string `json:"customer"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = LicenseSummary(raw.plain)
	if s.CustomerName == "" && raw.Customer != "" {
		s.CustomerName = raw.Customer
	}
	if status := strings.TrimSpace(raw.Status); status != "" {
		s.Active = strings.EqualFold(status, "active")
	}
	return nil
}

// LicenseHeader holds the editable header fields of a license.
type LicenseHeader struct {
	ID           *int64 `json:"id,omitempty"`
	SerialNumber *int64 `json:"serialNumber"`
	Domain       string `json:"domain"`
	CustomerName string `json:"customerName"`
	Active       bool   `json:"active"`
}

// UnmarshalJSON maps the legacy isActive flag onto Active.
func (h *LicenseHeader) UnmarshalJSON(data []byte) error {
	type plain LicenseHeader
	var raw struct {
		plain
		IsActive *bool `json:"isActive"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = LicenseHeader(raw.plain)
	if raw.IsActive != nil {
		h.Active = *raw.IsActive
	}
	return nil
}

// Summary projects the header onto the list representation.
func (h LicenseHeader) Summary() LicenseSummary {
	s := LicenseSummary{
		Domain:       h.Domain,
		CustomerName: h.CustomerName,
		Active:       h.Active,
	}
	if h.ID != nil {
		s.ID = *h.ID
	}
	if h.SerialNumber != nil {
		s.SerialNumber = *h.SerialNumber
	}
	return s
}

// ModuleGrant is one entitlement line of a license.
type ModuleGrant struct {
	ID            int    `json:"id"`
	ModuleID      int64  `json:"moduleId,omitempty"`
	Module        string `json:"module"`
	NumberOfUsers int    `json:"numberOfUsers"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

// LicenseDetail mirrors GET /licenses/{id}.
type LicenseDetail struct {
	Header  LicenseHeader `json:"header"`
	Modules []ModuleGrant `json:"modules"`
}

// Clone returns a deep copy of the detail.
func (d LicenseDetail) Clone() LicenseDetail {
	out := LicenseDetail{Header: d.Header}
	if d.Header.ID != nil {
		id := *d.Header.ID
		out.Header.ID = &id
	}
	if d.Header.SerialNumber != nil {
		serial := *d.Header.SerialNumber
		out.Header.SerialNumber = &serial
	}
	if len(d.Modules) > 0 {
		out.Modules = make([]ModuleGrant, len(d.Modules))
		copy(out.Modules, d.Modules)
	}
	return out
}

// ModuleCatalogEntry is a module that can be granted.
type ModuleCatalogEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either an object or a bare module name.
func (e *ModuleCatalogEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*e = ModuleCatalogEntry{Name: name}
		return nil
	}
	type plain ModuleCatalogEntry
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ModuleCatalogEntry(raw)
	return nil
}

// SaveModule is a module line of a save request.
type SaveModule struct {
	ID            int    `json:"id"`
	ModuleID      int64  `json:"moduleId"`
	Module        string `json:"module"`
	NumberOfUsers int    `json:"numberOfUsers"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

// SavePayload is the body sent to create or update a license.
type SavePayload struct {
	ID       *int64        `json:"id,omitempty"`
	Header   LicenseHeader `json:"header"`
	Modules  []SaveModule  `json:"modules"`
	AdminID  string        `json:"adminId,omitempty"`
	Snapshot string        `json:"snapshot"`
}

// IsCreate reports whether the payload creates a new license.
func (p SavePayload) IsCreate() bool {
	return p.ID == nil || *p.ID <= 0
}

// SaveResponse is the server acknowledgement of a save.
type SaveResponse struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginResponse mirrors POST /login.
type LoginResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	AdminID  string `json:"adminId,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Audit actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// AuditRecord is an immutable change log entry for a license.
type AuditRecord struct {
	ID        int64   `json:"id"`
	Action    string  `json:"action"`
	OldData   *string `json:"oldData"`
	NewData   *string `json:"newData"`
	Timestamp string  `json:"timestamp"`
}

// ParsedTimestamp returns the timestamp as time.Time when possible.
func (a AuditRecord) ParsedTimestamp() time.Time {
	return parseTime(a.Timestamp)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(auditTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
