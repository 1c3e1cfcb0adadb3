package httpapi

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"blog.local/gee"
	"blog.local/internal/app/blog"
	"blog.local/internal/app/blog/repo"
	"blog.local/internal/app/blog/stats"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/blobstore"
)

type fakeStore struct {
	mu      sync.Mutex
	posts   map[string]*blog.Post // key: short id
	seq     uint64
	finds   int
	findErr error
}

func newFakeStore(posts ...*blog.Post) *fakeStore {
	s := &fakeStore{posts: map[string]*blog.Post{}}
	for _, p := range posts {
		s.posts[p.ShortID] = p
	}
	return s
}

func (s *fakeStore) FindByShortID(_ context.Context, shortID string) (*blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.posts[shortID]
	if !ok {
		return nil, blog.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) List(_ context.Context, limit int) ([]*blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*blog.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.posts)), nil
}

func (s *fakeStore) Create(_ context.Context, in blog.PostInput) (*blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	shortID, err := blog.NewShortID(s.seq)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	p := &blog.Post{
		ID:            "id-" + strconv.FormatUint(s.seq, 10),
		ShortID:       shortID,
		Title:         in.Title,
		Slug:          in.Slug,
		Author:        in.Author,
		Summary:       in.Summary,
		Content:       in.Content,
		FeaturedImage: in.FeaturedImage,
		Tags:          in.Tags,
		PublishedAt:   now,
		UpdatedAt:     now,
	}
	s.posts[shortID] = p
	return p, nil
}

func (s *fakeStore) byID(id string) *blog.Post {
	for _, p := range s.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *fakeStore) Update(_ context.Context, id string, in blog.PostInput) (*blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.byID(id)
	if p == nil {
		return nil, blog.ErrPostNotFound
	}
	p.Title, p.Slug, p.Author, p.Summary, p.Content = in.Title, in.Slug, in.Author, in.Summary, in.Content
	p.FeaturedImage, p.Tags, p.UpdatedAt = in.FeaturedImage, in.Tags, time.Now()
	cp := *p
	return &cp, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) (*blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.byID(id)
	if p == nil {
		return nil, blog.ErrPostNotFound
	}
	delete(s.posts, p.ShortID)
	return p, nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	puts    map[string]string // key -> content type
	deletes []string
	putErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{puts: map[string]string{}}
}

func (b *fakeBlobs) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts[key] = contentType
	return "https://cdn.test/" + key, nil
}

func (b *fakeBlobs) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, "https://cdn.test/") {
		return blobstore.ErrForeignURL
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, url)
	return nil
}

type fakeUsers struct{}

func (fakeUsers) Authenticate(_ context.Context, username, password string) (repo.User, error) {
	if username == "ada" && password == "correct horse" {
		return repo.User{ID: 1, Username: "ada", DisplayName: "Ada Lovelace", Role: repo.RoleAuthor}, nil
	}
	return repo.User{}, repo.ErrBadCredentials
}

type recordingCollector struct {
	mu     sync.Mutex
	events []stats.ViewEvent
}

func (c *recordingCollector) Collect(e stats.ViewEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *recordingCollector) Close() {}

func samplePost() *blog.Post {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &blog.Post{
		ID:            "id-1",
		ShortID:       "abc12345",
		Title:         "Hello Go World",
		Slug:          "hello-go-world",
		Author:        "Ada Lovelace",
		Summary:       "A first post.",
		Content:       "Some **bold** text.\n\n<script>alert(1)</script>",
		FeaturedImage: "https://cdn.test/posts/abc12345/xyz-cover.png",
		Tags:          []string{"go", "web"},
		PublishedAt:   at,
		UpdatedAt:     at,
	}
}

func newTokens(t *testing.T) auth.TokenService {
	t.Helper()
	ts, err := auth.NewHS256Service("test-secret", "blog", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func newTestServer(d Deps) *gee.Engine {
	r := gee.New()
	r.Use(gee.Recovery())
	RegisterWebRoutes(r)
	RegisterPageRoutes(r, d)
	RegisterAPIRoutes(r.Group("/api/v1"), d)
	return r
}
