package blog

import (
	"reflect"
	"testing"
)

func validForm() PostForm {
	return PostForm{
		Title:   "Stories worth your time",
		Author:  "Alice Doe",
		Summary: "A short summary",
		Content: "Body",
		Tags:    "go, web, Go ,, blog",
	}
}

func TestValidatePostForm_OK(t *testing.T) {
	in, errs := ValidatePostForm(validForm())
	if !errs.Empty() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Slug != "stories-worth-your-time" {
		t.Fatalf("slug: got %q", in.Slug)
	}
	if want := []string{"go", "web", "blog"}; !reflect.DeepEqual(in.Tags, want) {
		t.Fatalf("tags: got %v, want %v", in.Tags, want)
	}
}

func TestValidatePostForm_ExplicitSlug(t *testing.T) {
	f := validForm()
	f.Slug = "custom-slug-here"
	in, errs := ValidatePostForm(f)
	if !errs.Empty() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Slug != "custom-slug-here" {
		t.Fatalf("slug: got %q", in.Slug)
	}
}

func TestValidatePostForm_ExplicitSlugIsNormalised(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Great Post Title", "my-great-post-title"},
		{"  Café au Lait Recipes ", "cafe-au-lait-recipes"},
		{"already-a-valid-slug", "already-a-valid-slug"},
		{"Go__Generics--Deep Dive", "go-generics-deep-dive"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f := validForm()
			f.Slug = tt.in
			in, errs := ValidatePostForm(f)
			if !errs.Empty() {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if in.Slug != tt.want {
				t.Fatalf("slug: got %q want %q", in.Slug, tt.want)
			}
		})
	}
}

func TestValidatePostForm_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*PostForm)
		field string
	}{
		{"short title", func(f *PostForm) { f.Title = "Too short"; f.Slug = "stories-worth-your-time" }, "title"},
		{"short author", func(f *PostForm) { f.Author = "Bob" }, "author"},
		{"empty summary", func(f *PostForm) { f.Summary = "   " }, "summary"},
		{"short slug", func(f *PostForm) { f.Slug = "short" }, "slug"},
		{"slug without ascii", func(f *PostForm) { f.Slug = "只有中文的标题文字" }, "slug"},
		{"slug of punctuation", func(f *PostForm) { f.Slug = "!!! ??? !!! ???" }, "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.edit(&f)
			_, errs := ValidatePostForm(f)
			if !errs.Has(tt.field) {
				t.Fatalf("expected error on %q, got %v", tt.field, errs)
			}
			if len(errs) != 1 {
				t.Fatalf("expected only %q to fail, got %v", tt.field, errs)
			}
		})
	}
}

func TestValidatePostForm_EmptyForm(t *testing.T) {
	_, errs := ValidatePostForm(PostForm{})
	for _, field := range []string{"title", "slug", "author", "summary"} {
		if !errs.Has(field) {
			t.Errorf("expected error on %q", field)
		}
	}
}

func TestParseTags_Empty(t *testing.T) {
	if got := ParseTags(""); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
