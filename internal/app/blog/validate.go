package blog

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var ErrInvalidSlug = errors.New("invalid slug")

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const (
	minTitleLen  = 10
	minSlugLen   = 10
	minAuthorLen = 4
)

// 表单错误提示，和页面上展示的文案一致。
const (
	msgTitleTooShort  = "The title must be at least 10 characters."
	msgSlugTooShort   = "The slug must be at least 10 characters."
	msgSlugInvalid    = "The slug may only contain lowercase letters, digits and single hyphens."
	msgAuthorTooShort = "The author must be at least 4 characters."
	msgSummaryMissing = "Please enter a summary"

	MsgCreateInvalid = "Invalid fields. Failed to create post."
	MsgUpdateInvalid = "Invalid fields. Failed to update post."
	MsgCreateFailed  = "Database Error: failed to create post."
	MsgUpdateFailed  = "Database Error: failed to update post."
	MsgDeleteFailed  = "Database Error: failed to delete post."
)

// PostForm 是表单提交上来的原始字段。Slug 为空时由标题生成，否则按 GenerateSlug 规整。
type PostForm struct {
	Title   string
	Slug    string
	Author  string
	Summary string
	Content string
	Tags    string
}

// FieldErrors 按字段名收集错误提示，字段名与表单 name 一致。
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// FormState 回填到表单模板：字段错误 + 一条总体提示。
type FormState struct {
	Errors  FieldErrors
	Message string
}

// ValidateSlug 校验 slug 形如 "my-great-post"。
func ValidateSlug(slug string) error {
	if !slugRe.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// ValidatePostForm 校验表单并返回可写入的 PostInput。
// FieldErrors 非空时 PostInput 不可用。FeaturedImage 不在这里处理。
func ValidatePostForm(form PostForm) (PostInput, FieldErrors) {
	errs := FieldErrors{}

	title := strings.TrimSpace(form.Title)
	if utf8.RuneCountInString(title) < minTitleLen {
		errs.Add("title", msgTitleTooShort)
	}

	// 手填的 slug 也走一遍 GenerateSlug，"My Great Post" 存成 "my-great-post"
	slug := GenerateSlug(form.Slug)
	if strings.TrimSpace(form.Slug) == "" {
		slug = GenerateSlug(title)
	}
	if len(slug) < minSlugLen {
		errs.Add("slug", msgSlugTooShort)
	} else if ValidateSlug(slug) != nil {
		errs.Add("slug", msgSlugInvalid)
	}

	author := strings.TrimSpace(form.Author)
	if utf8.RuneCountInString(author) < minAuthorLen {
		errs.Add("author", msgAuthorTooShort)
	}

	summary := strings.TrimSpace(form.Summary)
	if summary == "" {
		errs.Add("summary", msgSummaryMissing)
	}

	if !errs.Empty() {
		return PostInput{}, errs
	}
	return PostInput{
		Title:   title,
		Slug:    slug,
		Author:  author,
		Summary: summary,
		Content: form.Content,
		Tags:    ParseTags(form.Tags),
	}, nil
}

// ParseTags 解析逗号分隔的标签，去空白、去空项、按小写去重，保持原顺序。
func ParseTags(raw string) []string {
	tags := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}
