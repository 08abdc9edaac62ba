package editor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/licdesk/internal/licensing"
)

func TestBuildSavePayload_ResolvesCatalog(t *testing.T) {
	d := sampleDetail()
	d.Modules = append(d.Modules, licensing.ModuleGrant{ID: 3, Module: "Telepathy", NumberOfUsers: 1, StartDate: "2024-01-01", EndDate: "2024-02-01"})
	s := FromDetail(d, ModeEdit, Policy{})
	require.NoError(t, s.UpdateHeaderField(FieldCustomerName, "  Acme Inc  "))

	catalog := []licensing.ModuleCatalogEntry{
		{ID: 11, Name: "sales"},
		{ID: 12, Name: "Inventory"},
		{ID: 13, Name: "Inventory"},
	}
	p := s.BuildSavePayload(catalog, "admin-7")

	require.NotNil(t, p.ID)
	assert.Equal(t, int64(7), *p.ID)
	assert.False(t, p.IsCreate())
	assert.Equal(t, "admin-7", p.AdminID)
	assert.Equal(t, "Acme Inc", p.Header.CustomerName)

	require.Len(t, p.Modules, 3)
	assert.Equal(t, int64(11), p.Modules[0].ModuleID)
	assert.Equal(t, int64(12), p.Modules[1].ModuleID, "first catalog match wins")
	assert.Equal(t, UnknownModuleID, p.Modules[2].ModuleID)
	assert.Equal(t, 3, p.Modules[2].ID)

	var snap struct {
		Header  licensing.LicenseHeader `json:"header"`
		Modules []licensing.SaveModule  `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(p.Snapshot), &snap))
	assert.Equal(t, p.Header.Domain, snap.Header.Domain)
	assert.Equal(t, p.Modules, snap.Modules)
}

func TestBuildSavePayload_NewLicenseWithoutCatalog(t *testing.T) {
	s := NewLicense(Policy{}, WithClock(fixedClock()))
	require.NoError(t, s.UpdateHeaderField(FieldDomain, "n.com"))
	id, _ := s.AddModule()
	require.NoError(t, s.UpdateModuleField(id, FieldModule, "Sales"))

	p := s.BuildSavePayload(nil, "")
	assert.Nil(t, p.ID)
	assert.True(t, p.IsCreate())
	require.Len(t, p.Modules, 1)
	assert.Equal(t, UnknownModuleID, p.Modules[0].ModuleID)
	assert.NotEmpty(t, p.Snapshot)
	assert.True(t, s.IsDirty(), "building a payload does not commit")
}
