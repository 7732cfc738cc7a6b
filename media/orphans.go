package media

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Orphans walks Root and returns the public path of every file whose
// upload is not in referenced. A reference to an original also covers its
// derivatives and its other encoding.
func (p *Pipeline) Orphans(referenced []string) ([]string, error) {
	keep := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		if _, ok := p.LocalPath(ref); !ok {
			continue
		}
		keep[p.stem(ref)] = struct{}{}
	}

	var orphans []string
	err := filepath.WalkDir(p.cfg.Root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		public := p.PublicPath(file)
		if public == "" {
			return nil
		}
		if _, ok := keep[p.stem(public)]; !ok {
			orphans = append(orphans, public)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Remove deletes the file behind a public upload path.
func (p *Pipeline) Remove(public string) error {
	file, ok := p.LocalPath(public)
	if !ok {
		return fs.ErrNotExist
	}
	return os.Remove(file)
}

// Files lists the public path of every file res produced locally.
func (res *Result) Files() []string {
	files := []string{res.Path}
	for _, d := range res.Derivatives {
		files = append(files, d.Path)
		if d.WebPPath != "" {
			files = append(files, d.WebPPath)
		}
	}
	if res.Thumbnail != nil {
		files = append(files, res.Thumbnail.Path)
		if res.Thumbnail.WebPPath != "" {
			files = append(files, res.Thumbnail.WebPPath)
		}
	}
	return files
}

// Discard deletes the local files of an upload that ended up unused.
// Mirrored copies are left to the bucket's lifecycle rules.
func (p *Pipeline) Discard(res *Result) error {
	var errs []error
	for _, f := range res.Files() {
		if err := p.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stem reduces a public path to the upload it belongs to by dropping the
// extension and any _<variant> suffix. Stored base names never contain an
// underscore, so the split is unambiguous.
func (p *Pipeline) stem(public string) string {
	dir, name := path.Split(public)
	name = strings.TrimSuffix(name, path.Ext(name))
	if i := strings.LastIndexByte(name, '_'); i > 0 {
		name = name[:i]
	}
	return dir + name
}
