package chain

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Resolver maps client-visible paths onto the backing storage directory.
type Resolver struct {
	root string
}

// NewResolver captures root, which must be absolute.
func NewResolver(root string) (Resolver, error) {
	if !filepath.IsAbs(root) {
		return Resolver{}, errors.WithMessagef(ErrRelativeRoot, "root %q", root)
	}
	return Resolver{root: filepath.Clean(root)}, nil
}

// Root returns the cleaned storage root.
func (r Resolver) Root() string { return r.root }

// Resolve returns the backing path of the client path rel. The client path
// is cleaned first, so it can never name anything above the root.
func (r Resolver) Resolve(rel string) (string, error) {
	if !strings.HasPrefix(rel, "/") {
		return "", errors.WithMessagef(ErrRelativePath, "path %q", rel)
	}
	clean := filepath.Clean(rel)
	if clean == "/" {
		return r.root, nil
	}
	if r.root == "/" {
		return clean, nil
	}
	return r.root + clean, nil
}

// Relative is the inverse of Resolve.
func (r Resolver) Relative(abs string) (string, error) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.Errorf("%s is outside storage root %s", abs, r.root)
	}
	if rel == "." {
		return "/", nil
	}
	return "/" + rel, nil
}
