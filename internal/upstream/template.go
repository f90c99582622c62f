package upstream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// alterIDPlaceholder is the literal substring the upstream evaluates as
// an expression; it is not an XML element, so it is substituted against
// the serialized template text after cloning.
const alterIDPlaceholder = "PLACEHOLDER_ALTER_ID"

// ErrTemplateMissing signals a request template could not be found on
// disk. Build returns it before any HTTP attempt, so it is never
// retried. Templates are loaded lazily on first use, so a missing
// template surfaces on the first request for that operation, not at
// process start.
var ErrTemplateMissing = errors.New("template missing")

// TemplateStore loads and caches XML request templates, one per
// operation name. The cached bytes are read-only after first load;
// every call clones before substituting per-request fields.
type TemplateStore struct {
	dir string

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewTemplateStore returns a store rooted at dir. Templates are treated
// as opaque assets — this package never inspects their structure beyond
// anchor substitution.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir, cache: make(map[string][]byte)}
}

// load returns the raw template bytes for name, reading from disk once
// and caching thereafter.
func (s *TemplateStore) load(name string) ([]byte, error) {
	s.mu.RLock()
	if b, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return b, nil
	}
	s.mu.RUnlock()

	path := filepath.Join(s.dir, name+".xml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrTemplateMissing, "template %s at %s", name, path)
		}
		return nil, errors.Wrapf(err, "reading template %s", path)
	}

	s.mu.Lock()
	s.cache[name] = b
	s.mu.Unlock()
	return b, nil
}

// RequestParams carries the per-call substitution values.
type RequestParams struct {
	CompanyName string
	FromDate    string // YYYYMMDD, snapshot only
	ToDate      string // YYYYMMDD, snapshot only
	AlterID     int64  // watermark for CDC, 0 for full
}

// alterIDExpr renders the upstream's `$$Number:$AlterID > N` expression,
// substituted in place of the literal PLACEHOLDER_ALTER_ID substring.
func alterIDExpr(n int64) string {
	return fmt.Sprintf("$$Number:$AlterID > %d", n)
}

// Build clones the named template and substitutes the current-company,
// from/to-date, and alter-id anchors, returning the finished request
// body.
func (s *TemplateStore) Build(name string, params RequestParams) ([]byte, error) {
	raw, err := s.load(name)
	if err != nil {
		return nil, err
	}

	// Clone before mutating: the cached bytes must remain read-only for
	// concurrent callers.
	text := string(append([]byte(nil), raw...))

	text = strings.ReplaceAll(text, "SVCURRENTCOMPANY", params.CompanyName)
	if params.FromDate != "" {
		text = strings.ReplaceAll(text, "SVFROMDATE", params.FromDate)
	}
	if params.ToDate != "" {
		text = strings.ReplaceAll(text, "SVTODATE", params.ToDate)
	}
	text = strings.ReplaceAll(text, alterIDPlaceholder, alterIDExpr(params.AlterID))

	return []byte(text), nil
}
