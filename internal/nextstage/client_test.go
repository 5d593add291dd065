package nextstage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/savaki/stage-pipeline/internal/environment"
	"github.com/savaki/stage-pipeline/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandoff(t *testing.T) {
	tests := []struct {
		env          environment.Environment
		wantEndpoint string
		wantOrigin   string
	}{
		{
			env:          environment.Prd,
			wantEndpoint: "https://api.index.rll.byu.edu/run",
			wantOrigin:   "https://index.rll.byu.edu",
		},
		{
			env:          environment.Stg,
			wantEndpoint: "https://api.index.rll-dev.byu.edu/run",
			wantOrigin:   "https://index.rll-dev.byu.edu",
		},
		{
			env:          environment.Dev,
			wantEndpoint: "https://api.index.rll-dev.byu.edu/run",
			wantOrigin:   "https://index.rll-dev.byu.edu",
		},
		{
			env:          environment.Parse("feature-x"),
			wantEndpoint: "https://api.index.rll-feature-x.byu.edu/run",
			wantOrigin:   "https://index.rll-feature-x.byu.edu",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			h := New("index", "rll", "byu.edu", tt.env, nil).Handoff("ToDo/x.csv")
			assert.Equal(t, tt.wantEndpoint, h.Endpoint)
			assert.Equal(t, tt.wantOrigin, h.Origin)
			assert.Equal(t, "ToDo/x.csv", h.Key)
		})
	}
}

func TestRun(t *testing.T) {
	var (
		gotOrigin string
		gotBody   models.TriggerRequest
		calls     int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotOrigin = r.Header.Get("origin")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	c := New("index", "rll", "byu.edu", environment.Stg, server.Client()).WithEndpoint(server.URL + "/run")

	code, err := c.Run(context.Background(), "ToDo/x.csv")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "https://index.rll-dev.byu.edu", gotOrigin)
	assert.Equal(t, "ToDo/x.csv", gotBody.InputFile)
}

func TestRun_NonOKIsNotAnError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Request does not come from an allowed origin"}`))
	}))
	defer server.Close()

	c := New("index", "rll", "byu.edu", environment.Prd, server.Client()).WithEndpoint(server.URL)

	code, err := c.Run(context.Background(), "ToDo/x.csv")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 1, calls)
}

func TestRun_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New("index", "rll", "byu.edu", environment.Prd, nil).WithEndpoint(url)

	code, err := c.Run(context.Background(), "ToDo/x.csv")
	assert.Error(t, err)
	assert.Zero(t, code)
}
