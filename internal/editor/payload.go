package editor

import (
	"encoding/json"
	"strings"

	"github.com/five82/licdesk/internal/licensing"
)

// UnknownModuleID marks a module whose name is not in the catalog.
const UnknownModuleID int64 = 0

// BuildSavePayload assembles the request body for saving the working copy.
// Module names are matched against catalog case-insensitively; names that
// are not found get UnknownModuleID. The payload embeds a JSON snapshot of
// itself for the audit log.
func (s *State) BuildSavePayload(catalog []licensing.ModuleCatalogEntry, adminID string) licensing.SavePayload {
	byName := make(map[string]int64, len(catalog))
	for _, entry := range catalog {
		key := strings.ToLower(strings.TrimSpace(entry.Name))
		if _, seen := byName[key]; !seen {
			byName[key] = entry.ID
		}
	}

	detail := s.Detail()
	header := detail.Header
	header.Domain = strings.TrimSpace(header.Domain)
	header.CustomerName = strings.TrimSpace(header.CustomerName)

	modules := make([]licensing.SaveModule, 0, len(detail.Modules))
	for _, m := range detail.Modules {
		id, ok := byName[strings.ToLower(strings.TrimSpace(m.Module))]
		if !ok {
			id = UnknownModuleID
		}
		modules = append(modules, licensing.SaveModule{
			ID:            m.ID,
			ModuleID:      id,
			Module:        strings.TrimSpace(m.Module),
			NumberOfUsers: m.NumberOfUsers,
			StartDate:     m.StartDate,
			EndDate:       m.EndDate,
		})
	}

	payload := licensing.SavePayload{
		ID:      header.ID,
		Header:  header,
		Modules: modules,
		AdminID: adminID,
	}
	snapshot, err := json.Marshal(struct {
		Header  licensing.LicenseHeader `json:"header"`
		Modules []licensing.SaveModule  `json:"modules"`
	}{header, modules})
	if err == nil {
		payload.Snapshot = string(snapshot)
	}
	return payload
}
