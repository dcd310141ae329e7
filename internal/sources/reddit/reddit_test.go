package reddit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/sources/reddit"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	longBody := strings.Repeat("x", 600)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/wallstreetbets/search.json", r.URL.Path)
		assert.Equal(t, "GME", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"data":{"children":[
			{"data":{"title":"GME to the moon","selftext":"` + longBody + `","permalink":"/r/wallstreetbets/1","ups":420,"created_utc":1700000000}}
		]}}`))
	}))
	defer srv.Close()

	client := reddit.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}))
	client.SetBaseURL(srv.URL)

	posts, err := client.Search(context.Background(), "wallstreetbets", "GME", 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, "GME to the moon", post.Title)
	assert.Len(t, post.Selftext, 500)
	assert.Equal(t, "r/wallstreetbets", post.Subreddit)
	assert.Equal(t, 420, post.Upvotes)
	assert.Equal(t, "https://reddit.com/r/wallstreetbets/1", post.URL)
	assert.Equal(t, "2023-11-14", post.Created)
}
