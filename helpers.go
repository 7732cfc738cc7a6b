package storefront

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/views"
)

var rePageID = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ParsePageID normalizes a page id from a URL and rejects anything that is
// not a lowercase slug. The global sentinel is reserved for style tokens.
func ParsePageID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !rePageID.MatchString(id) {
		return "", apperr.Validation("invalid page id %q", raw)
	}
	if id == GlobalPageID {
		return "", apperr.Validation("page id %q is reserved", GlobalPageID)
	}
	return id, nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s id %q", what, raw)
	}
	return id, nil
}

// PageURL is the public URL of a page. The home page lives at the root.
func (c SiteConfig) PageURL(pageID string) string {
	return views.PageURL(c.viewSite(), pageID)
}

func (c SiteConfig) viewSite() views.Site {
	return views.Site{Name: c.Name, BaseURL: c.URL, HomePage: c.HomePage}
}
