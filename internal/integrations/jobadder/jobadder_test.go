package jobadder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
)

type fakeAPI struct {
	srv          *httptest.Server
	tokenCalls   int32
	lastUpdated  string
	candidatesFn http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`))
	})
	mux.HandleFunc("/v2/candidates", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		api.lastUpdated = r.URL.Query().Get("updatedAt")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "100" {
			w.Write([]byte(`{"items":[{"candidateId":3,"firstName":"sam","lastName":"o'neil","currentPosition":"chippy","status":{"name":"Placed"}}],"totalCount":3,"links":{}}`))
			return
		}
		fmt.Fprintf(w, `{"items":[
			{"candidateId":1,"firstName":"jo","lastName":"mcdonald","mobile":"0412 345 678","email":" Jo@Example.com ",
			 "currentPosition":"Sparky","skillTags":["White Card","HV"," white card"],
			 "address":{"street":["12 Smith St"],"city":"Parramatta","state":"NSW","postalCode":"2150"},
			 "status":{"name":"Available"},"updatedAt":"2025-03-01T00:00:00Z"},
			{"candidateId":2,"firstName":"Alex","lastName":"Ng","phone":"02 9876 5432","currentPosition":"Labourer","status":{"name":"Active"}}
		],"totalCount":3,"links":{"next":"%s/v2/candidates?limit=100&offset=100"}}`, api.srv.URL)
	})
	mux.HandleFunc("/v2/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"jobId":77,"jobTitle":"Formworkers x4","company":{"companyId":9,"name":"acme  build"},"location":{"name":"Sydney"},"status":{"name":"Open"}}],"links":{}}`))
	})
	mux.HandleFunc("/v2/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`rate limited`))
	})
	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) client(t *testing.T) *Client {
	c, err := New(context.Background(), config.JobAdderConfig{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RefreshToken: "refresh-1",
		BaseURL:      a.srv.URL + "/v2/",
		TokenURL:     a.srv.URL + "/connect/token",
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), config.JobAdderConfig{ClientID: "x"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestListCandidatesFollowsPagination(t *testing.T) {
	api := newFakeAPI(t)
	c := api.client(t)

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cands, err := c.ListCandidates(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, 1, cands[0].CandidateID)
	assert.Equal(t, 3, cands[2].CandidateID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))
	assert.Empty(t, api.lastUpdated, "next link carries its own query")
}

func TestCandidateToCRM(t *testing.T) {
	api := newFakeAPI(t)
	cands, err := api.client(t).ListCandidates(context.Background(), time.Time{})
	require.NoError(t, err)

	jo := cands[0].ToCRM()
	assert.Equal(t, "Jo", jo.FirstName)
	assert.Equal(t, "McDonald", jo.LastName)
	assert.Equal(t, "jo@example.com", jo.Email)
	assert.Equal(t, "+61412345678", jo.Phone)
	assert.Equal(t, construction.RoleElectrician, jo.Role)
	assert.Equal(t, []string{"HV", "White Card"}, jo.Skills)
	assert.Equal(t, crm.CandidateAvailable, jo.Status)
	assert.Equal(t, "12 Smith St, Parramatta, NSW 2150", jo.Location)
	assert.Equal(t, crm.SourceJobAdder, jo.Source)
	assert.Equal(t, "1", jo.ExternalID)

	alex := cands[1].ToCRM()
	assert.Equal(t, "+61298765432", alex.Phone)

	sam := cands[2].ToCRM()
	assert.Equal(t, "O'Neil", sam.LastName)
	assert.Equal(t, construction.RoleCarpenter, sam.Role)
	assert.Equal(t, crm.CandidatePlaced, sam.Status)
}

func TestListJobs(t *testing.T) {
	api := newFakeAPI(t)
	jobs, err := api.client(t).ListJobs(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Formworkers x4", jobs[0].Title)

	client := ClientFromCompany(jobs[0].Company)
	assert.Equal(t, "acme build", client.Name)
	assert.Equal(t, "9", client.ExternalID)
	assert.Equal(t, crm.SourceJobAdder, client.Source)
}

func TestListErrorStatus(t *testing.T) {
	api := newFakeAPI(t)
	_, err := list[Candidate](context.Background(), api.client(t), "/broken", time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
