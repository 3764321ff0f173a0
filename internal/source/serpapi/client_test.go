package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "google_images", q.Get("engine"))
		assert.Equal(t, "무한도전 짤", q.Get("q"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "2", q.Get("num"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images_results":[
			{"original":"https://img.example/a.jpg","title":"무야호","source":"blog","original_width":640,"original_height":480},
			{"original":"https://img.example/b.png","title":"b"},
			{"original":"https://img.example/c.png","title":"c"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{APIKey: "secret", BaseURL: srv.URL, Results: 2})
	got, err := c.Search(context.Background(), "무한도전 짤")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://img.example/a.jpg", got[0].URL)
	assert.Equal(t, "무야호", got[0].Title)
	assert.Equal(t, "blog", got[0].Source)
	assert.Equal(t, 640, got[0].Width)
	assert.Equal(t, 480, got[0].Height)
	assert.Equal(t, "serpapi:google_images", c.GetSourceID())
}

func TestClient_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantLen int
	}{
		{name: "invalid key", status: http.StatusUnauthorized, body: `{"error":"Invalid API key."}`, wantErr: true},
		{name: "no results", status: http.StatusOK, body: `{"error":"Google hasn't returned any results for this query."}`, wantLen: 0},
		{name: "error with 200", status: http.StatusOK, body: `{"error":"Your account has run out of searches."}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(&Config{APIKey: "k", BaseURL: srv.URL})
			got, err := c.Search(context.Background(), "무한도전")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tc.wantLen)
		})
	}
}
