package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const testSecret = "graph-test-secret"

type graphCall struct {
	Method string
	Path   string
	Form   url.Values
}

type fakeGraph struct {
	mu    sync.Mutex
	calls []graphCall
	mux   *http.ServeMux
	srv   *httptest.Server
}

func newFakeGraph(t *testing.T) *fakeGraph {
	t.Helper()
	g := &fakeGraph{mux: http.NewServeMux()}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		g.mu.Lock()
		g.calls = append(g.calls, graphCall{Method: r.Method, Path: r.URL.Path, Form: r.Form})
		g.mu.Unlock()
		g.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGraph) handle(pattern string, h http.HandlerFunc) {
	g.mux.HandleFunc(pattern, h)
}

func (g *fakeGraph) callsTo(path string) []graphCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []graphCall
	for _, c := range g.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func graphConfig() config.Config {
	return config.Config{GraphAPIVersion: "v21.0", SecretKey: testSecret}
}

func newTestPublisher(t *testing.T, g *fakeGraph) *GraphPublisher {
	t.Helper()
	return NewGraphPublisher(graphConfig(), g.srv.Client(),
		WithGraphBaseURLs(g.srv.URL, g.srv.URL),
		WithContainerPolling(time.Millisecond, 5))
}

func encryptedAccount(t *testing.T, platform models.Platform, accountID, token string) *models.SocialAccount {
	t.Helper()
	enc, err := utils.Encrypt([]byte(token), []byte(testSecret))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return &models.SocialAccount{Platform: platform, AccountID: accountID, AccessToken: enc}
}

func TestCaption(t *testing.T) {
	got := Caption(models.Content{Text: "  Launch day ", Hashtags: []string{"go", "release"}, Mentions: []string{"gopher"}})
	want := "Launch day\n\n#go #release @gopher"
	if got != want {
		t.Errorf("Caption = %q, want %q", got, want)
	}
	if got := Caption(models.Content{Hashtags: []string{"only"}}); got != "#only" {
		t.Errorf("Caption = %q, want %q", got, "#only")
	}
}

func TestPublishFacebookText(t *testing.T) {
	g := newFakeGraph(t)
	g.handle("POST /v21.0/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "page-1_42"})
	})

	p := &models.Publication{Content: models.Content{Text: "Hello", Hashtags: []string{"go"}}}
	id, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformFacebook, "page-1", "page-token"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "page-1_42" {
		t.Errorf("id = %q", id)
	}

	calls := g.callsTo("/v21.0/page-1/feed")
	if len(calls) != 1 {
		t.Fatalf("feed calls = %d", len(calls))
	}
	if calls[0].Form.Get("message") != "Hello\n\n#go" || calls[0].Form.Get("access_token") != "page-token" {
		t.Errorf("form = %v", calls[0].Form)
	}
}

func TestPublishFacebookSinglePhotoPrefersPostID(t *testing.T) {
	g := newFakeGraph(t)
	g.handle("POST /v21.0/page-1/photos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "photo-1", "post_id": "page-1_7"})
	})

	p := &models.Publication{Content: models.Content{
		Text:  "Photo",
		Media: []models.MediaItem{{Kind: models.MediaKindImage, URL: "https://cdn.example.com/a.jpg"}},
	}}
	id, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformFacebook, "page-1", "page-token"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "page-1_7" {
		t.Errorf("id = %q, want the post id", id)
	}
	form := g.callsTo("/v21.0/page-1/photos")[0].Form
	if form.Get("published") != "true" || form.Get("caption") != "Photo" || form.Get("url") != "https://cdn.example.com/a.jpg" {
		t.Errorf("form = %v", form)
	}
}

func TestPublishFacebookMultiPhoto(t *testing.T) {
	g := newFakeGraph(t)
	var n int
	var mu sync.Mutex
	g.handle("POST /v21.0/page-1/photos", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		id := fmt.Sprintf("photo-%d", n)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	})
	g.handle("POST /v21.0/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "page-1_99"})
	})

	p := &models.Publication{Content: models.Content{
		Text: "Album",
		Media: []models.MediaItem{
			{Kind: models.MediaKindImage, URL: "https://cdn.example.com/1.jpg"},
			{Kind: models.MediaKindImage, URL: "https://cdn.example.com/2.jpg"},
		},
	}}
	id, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformFacebook, "page-1", "page-token"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "page-1_99" {
		t.Errorf("id = %q", id)
	}

	for _, c := range g.callsTo("/v21.0/page-1/photos") {
		if c.Form.Get("published") != "false" {
			t.Errorf("album photo published directly: %v", c.Form)
		}
	}
	feed := g.callsTo("/v21.0/page-1/feed")[0].Form
	if feed.Get("attached_media[0]") != `{"media_fbid":"photo-1"}` || feed.Get("attached_media[1]") != `{"media_fbid":"photo-2"}` {
		t.Errorf("feed form = %v", feed)
	}
}

func TestPublishFacebookMultiPhotoRejectsVideo(t *testing.T) {
	g := newFakeGraph(t)
	p := &models.Publication{Content: models.Content{Media: []models.MediaItem{
		{Kind: models.MediaKindImage, URL: "https://cdn.example.com/1.jpg"},
		{Kind: models.MediaKindVideo, URL: "https://cdn.example.com/2.mp4"},
	}}}
	g.handle("POST /v21.0/page-1/photos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "photo-1"})
	})

	if _, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformFacebook, "page-1", "page-token")); err == nil {
		t.Fatal("expected an error for a video in a multi-photo post")
	}
	if len(g.callsTo("/v21.0/page-1/feed")) != 0 {
		t.Error("feed was posted")
	}
}

func TestPublishInstagramSingleImage(t *testing.T) {
	g := newFakeGraph(t)
	g.handle("POST /v21.0/ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "container-1"})
	})
	g.handle("GET /v21.0/container-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status_code": "FINISHED"})
	})
	g.handle("POST /v21.0/ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "media-1"})
	})

	p := &models.Publication{Content: models.Content{
		Text:  "Hi",
		Media: []models.MediaItem{{Kind: models.MediaKindImage, URL: "https://cdn.example.com/a.jpg"}},
	}}
	id, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformInstagram, "ig-1", "ig-token"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "media-1" {
		t.Errorf("id = %q", id)
	}

	container := g.callsTo("/v21.0/ig-1/media")[0].Form
	if container.Get("image_url") != "https://cdn.example.com/a.jpg" || container.Get("caption") != "Hi" || container.Get("access_token") != "ig-token" {
		t.Errorf("container form = %v", container)
	}
	if got := g.callsTo("/v21.0/ig-1/media_publish")[0].Form.Get("creation_id"); got != "container-1" {
		t.Errorf("creation_id = %q", got)
	}
}

func TestPublishInstagramReelWaitsForContainer(t *testing.T) {
	g := newFakeGraph(t)
	var polls int
	var mu sync.Mutex
	g.handle("POST /v21.0/ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "reel-1"})
	})
	g.handle("GET /v21.0/reel-1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		status := "IN_PROGRESS"
		if polls >= 3 {
			status = "FINISHED"
		}
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status_code": status})
	})
	g.handle("POST /v21.0/ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "media-2"})
	})

	p := &models.Publication{Content: models.Content{
		ContentType: models.ContentTypeReel,
		Media:       []models.MediaItem{{Kind: models.MediaKindVideo, URL: "https://cdn.example.com/v.mp4"}},
	}}
	if _, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformInstagram, "ig-1", "ig-token")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if polls != 3 {
		t.Errorf("polled %d times, want 3", polls)
	}
	form := g.callsTo("/v21.0/ig-1/media")[0].Form
	if form.Get("media_type") != "REELS" || form.Get("video_url") != "https://cdn.example.com/v.mp4" {
		t.Errorf("container form = %v", form)
	}
}

func TestPublishInstagramContainerFailures(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{"error", "ERROR"},
		{"never ready", "IN_PROGRESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph(t)
			g.handle("POST /v21.0/ig-1/media", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"id": "container-1"})
			})
			g.handle("GET /v21.0/container-1", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"status_code": tt.status})
			})

			p := &models.Publication{Content: models.Content{
				Media: []models.MediaItem{{Kind: models.MediaKindVideo, URL: "https://cdn.example.com/v.mp4"}},
			}}
			_, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformInstagram, "ig-1", "ig-token"))
			if err == nil {
				t.Fatal("expected an error")
			}
			if len(g.callsTo("/v21.0/ig-1/media_publish")) != 0 {
				t.Error("container was published")
			}
		})
	}
}

func TestPublishInstagramCarousel(t *testing.T) {
	g := newFakeGraph(t)
	var n int
	var mu sync.Mutex
	g.handle("POST /v21.0/ig-1/media", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		id := fmt.Sprintf("c%d", n)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": id})
	})
	g.handle("GET /v21.0/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status_code": "FINISHED"})
	})
	g.handle("POST /v21.0/ig-1/media_publish", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "media-3"})
	})

	p := &models.Publication{Content: models.Content{
		Text: "Set",
		Media: []models.MediaItem{
			{Kind: models.MediaKindImage, URL: "https://cdn.example.com/1.jpg"},
			{Kind: models.MediaKindVideo, URL: "https://cdn.example.com/2.mp4"},
		},
	}}
	if _, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformInstagram, "ig-1", "ig-token")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	containers := g.callsTo("/v21.0/ig-1/media")
	if len(containers) != 3 {
		t.Fatalf("containers = %d, want 3", len(containers))
	}
	if containers[0].Form.Get("is_carousel_item") != "true" || containers[1].Form.Get("media_type") != "VIDEO" {
		t.Errorf("item forms = %v / %v", containers[0].Form, containers[1].Form)
	}
	carousel := containers[2].Form
	if carousel.Get("media_type") != "CAROUSEL" || carousel.Get("children") != "c1,c2" || carousel.Get("caption") != "Set" {
		t.Errorf("carousel form = %v", carousel)
	}
	if got := g.callsTo("/v21.0/ig-1/media_publish")[0].Form.Get("creation_id"); got != "c3" {
		t.Errorf("creation_id = %q", got)
	}
}

func TestPublishReturnsGraphError(t *testing.T) {
	g := newFakeGraph(t)
	g.handle("POST /v21.0/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": map[string]interface{}{"message": "Invalid OAuth access token.", "code": 190, "is_transient": false},
		})
	})

	p := &models.Publication{Content: models.Content{Text: "Hello"}}
	_, err := newTestPublisher(t, g).Publish(context.Background(), p, encryptedAccount(t, models.PlatformFacebook, "page-1", "page-token"))

	var gerr *GraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("got %v, want *GraphError", err)
	}
	if gerr.StatusCode != http.StatusBadRequest || gerr.Code != 190 || gerr.Message != "Invalid OAuth access token." {
		t.Errorf("graph error = %+v", gerr)
	}
}

func TestPublishRejectsUndecryptableToken(t *testing.T) {
	g := newFakeGraph(t)
	acc := &models.SocialAccount{Platform: models.PlatformFacebook, AccountID: "page-1", AccessToken: "not-encrypted"}
	if _, err := newTestPublisher(t, g).Publish(context.Background(), &models.Publication{}, acc); err == nil {
		t.Fatal("expected a decrypt error")
	}
	if calls := g.callsTo("/v21.0/page-1/feed"); len(calls) != 0 {
		t.Errorf("graph was called %d times", len(calls))
	}
}
