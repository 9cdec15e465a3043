package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when a locator does not resolve to any resource.
var ErrNotFound = errors.New("resource: not found")

// BundleScheme prefixes locators that resolve inside a registered fs.FS, e.g. "bundle:assets/duck.glb"
// addresses duck.glb inside the bundle registered as "assets".
const BundleScheme = "bundle:"

// Locator identifies an asset: a file path, a bundle locator or an http(s) URL.
type Locator string

// String implements fmt.Stringer.
func (l Locator) String() string {
	return string(l)
}

// IsRemote reports whether l is an http(s) URL.
func (l Locator) IsRemote() bool {
	s := strings.ToLower(string(l))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsBundle reports whether l addresses a registered bundle.
func (l Locator) IsBundle() bool {
	return strings.HasPrefix(string(l), BundleScheme)
}

// FilePath returns the local file path of l, if l is a plain file locator.
func (l Locator) FilePath() (string, bool) {
	if l == "" || l.IsRemote() || l.IsBundle() {
		return "", false
	}
	return string(l), true
}

// Ext returns the lower-case extension of l including the dot, ignoring any URL query.
func (l Locator) Ext() string {
	p := string(l)
	if l.IsRemote() {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(path.Ext(filepath.ToSlash(p)))
}

// Base returns the last element of l without its extension.
func (l Locator) Base() string {
	p := filepath.ToSlash(strings.TrimPrefix(string(l), BundleScheme))
	b := path.Base(p)
	return strings.TrimSuffix(b, path.Ext(b))
}

// Sibling resolves name relative to the directory of l. URLs and bundle locators in name are
// returned unchanged. Under a remote l every other name is a URI reference resolved against l,
// so a root-relative "/a.bin" stays on the same host and never addresses a local file. Absolute
// file paths are only honoured under a file locator.
//
// Parameters:
//   - name: a relative reference found inside the asset (e.g. a glTF buffer uri)
//
// Returns:
//   - Locator: the resolved locator, or "" when name cannot be resolved under a remote l
func (l Locator) Sibling(name string) Locator {
	ref := Locator(name)
	if ref.IsRemote() || ref.IsBundle() {
		return ref
	}
	switch {
	case l.IsRemote():
		base, err := url.Parse(string(l))
		if err != nil {
			return ""
		}
		rel, err := url.Parse(name)
		if err != nil {
			return ""
		}
		resolved := base.ResolveReference(rel)
		if resolved.Scheme != base.Scheme {
			return ""
		}
		return Locator(resolved.String())
	case filepath.IsAbs(name):
		return ref
	case l.IsBundle():
		dir := path.Dir(strings.TrimPrefix(string(l), BundleScheme))
		return Locator(BundleScheme + path.Join(dir, name))
	default:
		return Locator(filepath.Join(filepath.Dir(string(l)), filepath.FromSlash(name)))
	}
}

var (
	bundlesMu sync.RWMutex
	bundles   = map[string]fs.FS{}
)

// RegisterBundle makes fsys addressable through "bundle:<name>/..." locators.
// Registering a nil fsys removes the bundle.
//
// Parameters:
//   - name: the bundle name
//   - fsys: the bundle contents, typically an embed.FS
func RegisterBundle(name string, fsys fs.FS) {
	bundlesMu.Lock()
	defer bundlesMu.Unlock()
	if fsys == nil {
		delete(bundles, name)
		return
	}
	bundles[name] = fsys
}

func openBundle(l Locator) (io.ReadCloser, error) {
	rest := strings.TrimPrefix(string(l), BundleScheme)
	name, file, ok := strings.Cut(rest, "/")
	if !ok || file == "" {
		return nil, fmt.Errorf("%w: malformed bundle locator %q", ErrNotFound, l)
	}

	bundlesMu.RLock()
	fsys, found := bundles[name]
	bundlesMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: bundle %q is not registered", ErrNotFound, name)
	}

	f, err := fsys.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, l)
		}
		return nil, fmt.Errorf("failed to open %s: %w", l, err)
	}
	return f, nil
}

// Open resolves l and opens it for reading.
//
// Parameters:
//   - ctx: bounds remote requests
//   - l: the locator
//
// Returns:
//   - io.ReadCloser: the resource contents; the caller closes it
//   - error: ErrNotFound (wrapped) when nothing exists at l
func Open(ctx context.Context, l Locator) (io.ReadCloser, error) {
	switch {
	case l == "":
		return nil, fmt.Errorf("%w: empty locator", ErrNotFound)
	case l.IsBundle():
		return openBundle(l)
	case l.IsRemote():
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(l), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", l, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", l, err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, l, resp.Status)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch %s: %s", l, resp.Status)
		}
		return resp.Body, nil
	default:
		f, err := os.Open(string(l))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, l)
			}
			return nil, fmt.Errorf("failed to open %s: %w", l, err)
		}
		return f, nil
	}
}

// ReadAll resolves l and reads it fully.
func ReadAll(ctx context.Context, l Locator) ([]byte, error) {
	rc, err := Open(ctx, l)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", l, err)
	}
	return data, nil
}
