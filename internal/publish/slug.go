package publish

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const untitledSlug = "untitled"

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return untitledSlug
	}
	return slug
}

// UniqueSlug appends -2, -3, ... to base until exists reports it free.
func UniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if err = ctx.Err(); err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
