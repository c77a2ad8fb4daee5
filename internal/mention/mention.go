// Package mention detects @-mention tokens in message text and resolves them
// to user ids.
package mention

import (
	"context"
	"regexp"

	"github.com/kelechukwu/pingme/internal/data"
)

// tokenRE matches an '@' followed by an identifier made of letters, digits,
// underscore, hyphen and dot.
var tokenRE = regexp.MustCompile(`@([A-Za-z0-9._-]+)`)

// Directory is the user lookup the resolver needs: resolve a set of candidate
// handles to known users. Satisfied by data.UsersStore.
type Directory interface {
	FindByHandles(ctx context.Context, handles []string) ([]*data.User, error)
}

// Resolver extracts mention candidates and resolves them against the
// directory.
type Resolver struct {
	dir Directory
}

// NewResolver returns a Resolver backed by the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Extract returns the deduplicated mention candidates found in content, in
// order of first appearance.
func Extract(content string) []string {
	matches := tokenRE.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var handles []string
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		handles = append(handles, m[1])
	}
	return handles
}

// Resolve returns the user ids for every candidate handle in content that
// matches a known user. Unresolved candidates are silently dropped;
// resolution never fails the send, so a directory error yields an empty
// result along with the error for the caller to log.
func (r *Resolver) Resolve(ctx context.Context, content string) ([]string, error) {
	handles := Extract(content)
	if len(handles) == 0 {
		return nil, nil
	}

	users, err := r.dir.FindByHandles(ctx, handles)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID.Hex())
	}
	return ids, nil
}
