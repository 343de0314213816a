package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLookupHPDOwner_PrefersOwnerTypedContact(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, hpdContactsResource, r.URL.Path)
		require.Equal(t, "1000010001", r.URL.Query().Get("bbl"))
		gotToken = r.Header.Get("X-App-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"type":"Agent","corporationname":"MGMT CORP"},
			{"type":"CorporateOwner","corporationname":"ACME REALTY LLC"},
			{"type":"IndividualOwner","firstname":"JANE","lastname":"DOE"}
		]`))
	}))
	defer srv.Close()

	client := NewCivicClient(srv.URL, "token-123", zap.NewNop())
	owner, err := client.LookupHPDOwner(context.Background(), "1000010001")
	require.NoError(t, err)
	require.NotNil(t, owner)
	require.Equal(t, "ACME REALTY LLC", *owner)
	require.Equal(t, "token-123", gotToken)
}

func TestLookupHPDOwner_EmptyDatasetIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewCivicClient(srv.URL, "", zap.NewNop())
	owner, err := client.LookupHPDOwner(context.Background(), "1000010002")
	require.NoError(t, err)
	require.Nil(t, owner)
}

func TestLookupDOBOwner_FallsBackToPersonalName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, dobPermitsResource, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"owner_s_business_name":"N/A","owner_s_first_name":"JOHN","owner_s_last_name":"SMITH"}
		]`))
	}))
	defer srv.Close()

	client := NewCivicClient(srv.URL, "", zap.NewNop())
	owner, err := client.LookupDOBOwner(context.Background(), "1000010003")
	require.NoError(t, err)
	require.NotNil(t, owner)
	require.Equal(t, "JOHN SMITH", *owner)
}

func TestLookupDOBOwner_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewCivicClient(srv.URL, "", zap.NewNop())
	_, err := client.LookupDOBOwner(context.Background(), "1000010004")
	require.Error(t, err)
}

func TestLookupCompany_SkipsInactiveCompanies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0.4/companies/search", r.URL.Path)
		require.Equal(t, "ACME REALTY LLC", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"companies":[
			{"company":{"name":"ACME REALTY LLC (OLD)","company_number":"1","current_status":"Dissolved"}},
			{"company":{"name":"ACME REALTY LLC","company_number":"2","current_status":"Active"}}
		]}}`))
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, "", zap.NewNop())
	name, err := client.LookupCompany(context.Background(), "ACME REALTY LLC")
	require.NoError(t, err)
	require.NotNil(t, name)
	require.Equal(t, "ACME REALTY LLC", *name)
}

func TestLookupCompany_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"companies":[]}}`))
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, "", zap.NewNop())
	name, err := client.LookupCompany(context.Background(), "NOBODY")
	require.NoError(t, err)
	require.Nil(t, name)
}
