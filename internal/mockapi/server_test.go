package mockapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/licdesk/internal/licensing"
)

func newTestClient(t *testing.T, srv *Server, token func() string) *licensing.Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client, err := licensing.NewClient(licensing.Options{
		BaseURL: ts.URL,
		Token:   token,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestServer_SeededData(t *testing.T) {
	client := newTestClient(t, New(Options{}), nil)
	ctx := context.Background()

	summaries, err := client.FetchLicenseSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 20)
	assert.Equal(t, "Compulynx", summaries[0].Domain)
	assert.Equal(t, "Compulynx Limited", summaries[0].CustomerName)
	assert.True(t, summaries[0].Active)
	assert.False(t, summaries[3].Active)

	detail, err := client.FetchLicenseDetail(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, detail.Header.ID)
	assert.Equal(t, int64(1), *detail.Header.ID)
	require.Len(t, detail.Modules, 2)
	assert.Equal(t, "Merchandising", detail.Modules[0].Module)
	assert.Equal(t, "1-Jan-2025", detail.Modules[0].StartDate)

	empty, err := client.FetchLicenseDetail(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, empty.Modules)
	assert.Equal(t, "TechWorld", empty.Header.Domain)

	catalog, err := client.FetchModuleCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 10)
	assert.Equal(t, licensing.ModuleCatalogEntry{ID: 1, Name: "Merchandising"}, catalog[0])
}

func TestServer_CreateUpdateDeleteRecordsAudit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)
	srv := New(Options{Now: func() time.Time { return now }})
	client := newTestClient(t, srv, nil)
	ctx := context.Background()

	created, err := client.SaveLicense(ctx, licensing.SavePayload{
		Header: licensing.LicenseHeader{Domain: " Acme ", CustomerName: "Acme Corp", Active: true},
		Modules: []licensing.SaveModule{
			{ID: 1, ModuleID: 3, Module: "sales", NumberOfUsers: 4, StartDate: "2025-01-01", EndDate: "2025-12-31"},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.Success)
	assert.Equal(t, int64(21), created.ID)
	assert.Equal(t, "License created successfully", created.Message)

	detail, err := client.FetchLicenseDetail(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", detail.Header.Domain)
	require.NotNil(t, detail.Header.SerialNumber)
	require.Len(t, detail.Modules, 1)
	assert.Equal(t, "Sales", detail.Modules[0].Module, "catalog id wins over the submitted name")

	id := created.ID
	detail.Header.CustomerName = "Acme Corporation"
	updated, err := client.SaveLicense(ctx, licensing.SavePayload{
		ID:     &id,
		Header: detail.Header,
		Modules: []licensing.SaveModule{
			{ID: 1, ModuleID: 3, Module: "Sales", NumberOfUsers: 5, StartDate: "2025-01-01", EndDate: "2025-12-31"},
		},
		Snapshot: `{"header":{"domain":"Acme"}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "License updated successfully", updated.Message)

	require.NoError(t, client.DeleteLicense(ctx, id))

	trail, err := client.FetchAuditTrail(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, licensing.ActionCreate, trail[0].Action)
	assert.Nil(t, trail[0].OldData)
	require.NotNil(t, trail[1].NewData)
	assert.Equal(t, `{"header":{"domain":"Acme"}}`, *trail[1].NewData)
	require.NotNil(t, trail[1].OldData)
	assert.Equal(t, *trail[0].NewData, *trail[1].OldData)
	assert.Equal(t, licensing.ActionDelete, trail[2].Action)
	assert.Nil(t, trail[2].NewData)
	assert.Equal(t, "2025-03-01 12:00:00", trail[2].Timestamp)
	assert.True(t, trail[2].ParsedTimestamp().Equal(now))

	_, err = client.FetchLicenseDetail(ctx, id)
	assert.ErrorIs(t, err, licensing.ErrNotFound)
}

func TestServer_ErrorBodies(t *testing.T) {
	client := newTestClient(t, New(Options{}), nil)
	ctx := context.Background()

	_, err := client.SaveLicense(ctx, licensing.SavePayload{
		Header: licensing.LicenseHeader{Domain: "compulynx", CustomerName: "Someone"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, licensing.ErrConflict)
	assert.Equal(t, "Domain already exists", licensing.Message(err))

	_, err = client.SaveLicense(ctx, licensing.SavePayload{
		Header: licensing.LicenseHeader{Domain: "  ", CustomerName: "Someone"},
	})
	require.Error(t, err)
	var apiErr *licensing.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Domain is required", apiErr.Message)

	err = client.DeleteLicense(ctx, 999)
	assert.ErrorIs(t, err, licensing.ErrNotFound)
	assert.Equal(t, "License 999 not found", licensing.Message(err))
}

func TestServer_LoginAndBearerAuth(t *testing.T) {
	srv := New(Options{RequireAuth: true})
	var token string
	client := newTestClient(t, srv, func() string { return token })
	ctx := context.Background()

	_, err := client.FetchLicenseSummaries(ctx)
	assert.ErrorIs(t, err, licensing.ErrUnauthorized)

	resp, err := client.Login(ctx, "admin", "wrong")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid credentials", resp.Message)

	resp, err = client.Login(ctx, DefaultUsername, DefaultPassword)
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, DefaultAdminID, resp.AdminID)
	assert.Equal(t, 3, strings.Count(resp.Token, ".")+1)

	token = resp.Token
	summaries, err := client.FetchLicenseSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 20)

	token = "not-a-token"
	_, err = client.FetchModuleCatalog(ctx)
	assert.ErrorIs(t, err, licensing.ErrUnauthorized)
}

func TestServer_ExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	srv := New(Options{RequireAuth: true, TokenTTL: time.Minute, Now: func() time.Time { return now }})
	token, err := srv.IssueToken("admin")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	client := newTestClient(t, srv, func() string { return token })
	_, err = client.FetchLicenseSummaries(context.Background())
	assert.ErrorIs(t, err, licensing.ErrUnauthorized)
}

func TestBearerToken(t *testing.T) {
	got, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer   ")
	assert.False(t, ok)
}
