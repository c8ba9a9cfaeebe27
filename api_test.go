package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// Test helper functions

func testPost(id int64, created, modified int64) apiPost {
	post := apiPost{
		LastModifyTime: modified,
		ImageList:      []apiImage{{URL: "https://img.example.com/cover.png"}},
	}
	post.Post.PostID = strconv.FormatInt(id, 10)
	post.Post.Subject = "Test Post " + strconv.FormatInt(id, 10)
	post.Post.Content = "<p>content of post " + strconv.FormatInt(id, 10) + "</p>"
	post.Post.CreatedAt = created
	post.Post.OfficialType = int(CategoryInfo)
	post.User.Nickname = "tester"
	return post
}

func writeEnvelope(w http.ResponseWriter, retcode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"retcode": retcode,
		"message": message,
		"data":    data,
	})
}

// newTestClient points a HoyolabClient at a mock server.
func newTestClient(t *testing.T, handler http.Handler) *HoyolabClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewHoyolabClient(GameGenshin, DefaultLanguage, server.Client())
	client.baseURL = server.URL
	return client
}

func TestListSummaries(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getNewsList" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("gids"); got != "2" {
			t.Errorf("Expected gids 2, got %q", got)
		}
		if got := r.URL.Query().Get("page_size"); got != "5" {
			t.Errorf("Expected page_size 5, got %q", got)
		}
		if got := r.Header.Get("X-Rpc-Language"); got != "en-us" {
			t.Errorf("Expected language header en-us, got %q", got)
		}
		writeEnvelope(w, 0, "OK", map[string]any{
			"list": []apiPost{testPost(5, 100, 105), testPost(3, 90, 0)},
		})
	}))

	summaries, err := client.ListSummaries(context.Background(), CategoryInfo, 5)
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != 5 {
		t.Errorf("Expected first id 5, got %d", summaries[0].ID)
	}
	// last modified is max(created_at, last_modify_time)
	if !summaries[0].LastModified.Equal(time.Unix(105, 0)) {
		t.Errorf("Expected last modified 105, got %v", summaries[0].LastModified)
	}
	if !summaries[1].LastModified.Equal(time.Unix(90, 0)) {
		t.Errorf("Expected last modified 90, got %v", summaries[1].LastModified)
	}
}

func TestFetchItem(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getPostFull" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("post_id"); got != "42" {
			t.Errorf("Expected post_id 42, got %q", got)
		}
		writeEnvelope(w, 0, "OK", map[string]any{"post": testPost(42, 100, 105)})
	}))

	item, err := client.FetchItem(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchItem failed: %v", err)
	}

	if item.ID != 42 {
		t.Errorf("Expected id 42, got %d", item.ID)
	}
	if item.Title != "Test Post 42" {
		t.Errorf("Unexpected title %q", item.Title)
	}
	if item.Author != "tester" {
		t.Errorf("Unexpected author %q", item.Author)
	}
	if !item.Published.Equal(time.Unix(100, 0)) {
		t.Errorf("Unexpected published time %v", item.Published)
	}
	if !item.Updated.Equal(time.Unix(105, 0)) {
		t.Errorf("Unexpected updated time %v", item.Updated)
	}
	if item.Image != "https://img.example.com/cover.png" {
		t.Errorf("Unexpected image %q", item.Image)
	}
}

func TestRequestErrors(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusInternalServerError)
			},
			wantErr: ErrAPIRequest,
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html></html>"))
			},
			wantErr: ErrAPIDecode,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: ErrAPIDecode,
		},
		{
			name: "missing retcode",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"data": {"list": []}}`))
			},
			wantErr: ErrAPIResponse,
		},
		{
			name: "missing post list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 0, "OK", map[string]any{})
			},
			wantErr: ErrAPIResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.handler)
			_, err := client.ListSummaries(context.Background(), CategoryInfo, 5)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRequestApplicationError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 1001, "参数错误", nil)
	}))

	_, err := client.ListSummaries(context.Background(), CategoryInfo, 5)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Retcode != 1001 {
		t.Errorf("Expected retcode 1001, got %d", apiErr.Retcode)
	}
	// the remote message is surfaced verbatim, even when not in English
	if apiErr.Message != "参数错误" {
		t.Errorf("Expected verbatim remote message, got %q", apiErr.Message)
	}
}

func TestTransformPost_MissingFields(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*apiPost)
	}{
		{"bad post id", func(p *apiPost) { p.Post.PostID = "not-a-number" }},
		{"empty subject", func(p *apiPost) { p.Post.Subject = "" }},
		{"zero created_at", func(p *apiPost) { p.Post.CreatedAt = 0 }},
		{"empty nickname", func(p *apiPost) { p.User.Nickname = "" }},
		{"unknown category", func(p *apiPost) { p.Post.OfficialType = 99 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			post := testPost(1, 100, 0)
			tc.mutate(&post)
			_, err := transformPost(post)
			if !errors.Is(err, ErrAPIResponse) {
				t.Errorf("Expected ErrAPIResponse, got %v", err)
			}
		})
	}
}

func TestTransformPost_OptionalFields(t *testing.T) {
	post := testPost(1, 100, 0)
	post.ImageList = nil
	post.Post.Content = "<p>no images here</p>"

	item, err := transformPost(post)
	if err != nil {
		t.Fatalf("transformPost failed: %v", err)
	}
	if !item.Updated.IsZero() {
		t.Errorf("Expected no updated time for last_modify_time 0, got %v", item.Updated)
	}
	if item.Image != "" {
		t.Errorf("Expected no image, got %q", item.Image)
	}
}

func TestTransformPost_ContentImageFallback(t *testing.T) {
	post := testPost(1, 100, 0)
	post.ImageList = nil
	post.Post.Content = `<p>hello</p><img src="https://img.example.com/inline.png"><img src="https://img.example.com/second.png">`

	item, err := transformPost(post)
	if err != nil {
		t.Fatalf("transformPost failed: %v", err)
	}
	if item.Image != "https://img.example.com/inline.png" {
		t.Errorf("Expected first inline image as fallback, got %q", item.Image)
	}
}

func TestStripLeadingEmptyParagraph(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{"empty paragraph", "<p></p><p>text</p>", "<p>text</p>"},
		{"nbsp paragraph", "<p>&nbsp;</p><p>text</p>", "<p>text</p>"},
		{"br paragraph", "<p><br></p><p>text</p>", "<p>text</p>"},
		{"no empty prefix", "<p>text</p>", "<p>text</p>"},
		{"empty paragraph in the middle", "<p>a</p><p></p><p>b</p>", "<p>a</p><p></p><p>b</p>"},
		{"empty content", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripLeadingEmptyParagraph(tc.content); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
