package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/licdesk/internal/licensing"
)

func TestValidate_Messages(t *testing.T) {
	s := NewLicense(Policy{RequireSerial: true})
	assert.Equal(t, []string{
		"Domain is required",
		"Customer name is required",
		"Serial number must be positive",
		"At least one module is required",
	}, s.Validate())

	require.NoError(t, s.UpdateHeaderField(FieldDomain, "a.com"))
	require.NoError(t, s.UpdateHeaderField(FieldCustomerName, "A"))
	require.NoError(t, s.UpdateHeaderField(FieldSerialNumber, "0"))
	id1, _ := s.AddModule()
	id2, _ := s.AddModule()
	require.NoError(t, s.UpdateModuleField(id1, FieldModule, PlaceholderModule))
	require.NoError(t, s.UpdateModuleField(id1, FieldNumberOfUsers, "0"))
	require.NoError(t, s.UpdateModuleField(id2, FieldModule, "Sales"))
	require.NoError(t, s.UpdateModuleField(id2, FieldStartDate, "2024-05-01"))
	require.NoError(t, s.UpdateModuleField(id2, FieldEndDate, "2024-04-01"))

	assert.Equal(t, []string{
		"Serial number must be positive",
		"Module name is required for row 1",
		"Number of users must be at least 1 for row 1",
		"End date must not be before start date for row 2",
	}, s.Validate())

	require.NoError(t, s.UpdateModuleField(id2, FieldEndDate, ""))
	assert.Contains(t, s.Validate(), "End date is required for row 2")
}

func TestValidate_BlankNamesAndPolicies(t *testing.T) {
	s := NewLicense(Policy{AllowEmptyModules: true})
	require.NoError(t, s.UpdateHeaderField(FieldDomain, "   "))
	require.NoError(t, s.UpdateHeaderField(FieldCustomerName, "C"))
	assert.Equal(t, []string{"Domain is required"}, s.Validate())

	require.NoError(t, s.UpdateHeaderField(FieldDomain, "c.com"))
	assert.Empty(t, s.Validate())
	assert.True(t, s.IsSubmittable(), "empty module list allowed by policy")
}

func TestValidationErr(t *testing.T) {
	s := NewLicense(Policy{})
	err := s.ValidationErr()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "Domain is required; Customer name is required")

	valid := FromDetail(licensing.LicenseDetail{
		Header:  licensing.LicenseHeader{Domain: "v.com", CustomerName: "V"},
		Modules: []licensing.ModuleGrant{{ID: 1, Module: "Sales", NumberOfUsers: 1, StartDate: "2024-01-01", EndDate: "2024-01-01"}},
	}, ModeEdit, Policy{})
	assert.NoError(t, valid.ValidationErr())
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: " 2024-01-09 ", want: "2024-01-09"},
		{in: "2024-01-09T10:00:00Z", want: "2024-01-09"},
		{in: "2024-01-09T10:00:00.123Z", want: "2024-01-09"},
		{in: "9-Jan-2024", want: "2024-01-09"},
		{in: "01/09/2024", want: "2024-01-09"},
		{in: "2024/01/09", want: "2024-01-09"},
		{in: "2024-13-01", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
