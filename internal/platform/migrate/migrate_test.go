package migrate

import (
	"reflect"
	"testing"
	"testing/fstest"

	"blog.local/migrations"
)

func TestListSQLFiles_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"010_b.sql":   {Data: []byte("SELECT 1;")},
		"002_a.SQL":   {Data: []byte("SELECT 1;")},
		"README.md":   {Data: []byte("docs")},
		"sub/003.sql": {Data: []byte("SELECT 1;")},
	}
	got, err := ListSQLFiles(fsys)
	if err != nil {
		t.Fatalf("ListSQLFiles: %v", err)
	}
	want := []string{"002_a.SQL", "010_b.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := ListSQLFiles(migrations.FS)
	if err != nil {
		t.Fatalf("ListSQLFiles: %v", err)
	}
	if len(got) == 0 || got[0] != "001_posts.sql" {
		t.Fatalf("unexpected embedded migrations: %v", got)
	}
}

func TestResolveSource(t *testing.T) {
	if _, _, err := resolveSource(Options{}); err == nil {
		t.Fatal("expected error without source")
	}
	if _, _, err := resolveSource(Options{Dir: t.TempDir() + "/missing"}); err == nil {
		t.Fatal("expected error for missing dir")
	}
	_, src, err := resolveSource(Options{FS: migrations.FS})
	if err != nil || src != "embedded" {
		t.Fatalf("src=%q err=%v", src, err)
	}
	dir := t.TempDir()
	_, src, err = resolveSource(Options{Dir: dir, FS: migrations.FS})
	if err != nil || src != dir {
		t.Fatalf("dir should win: src=%q err=%v", src, err)
	}
}
