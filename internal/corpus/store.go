package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qwc999/infpoisk/internal/model"
)

const (
	// StateFileName is the checkpoint file inside the corpus directory.
	StateFileName = ".crawler_state.json"

	docFilePattern  = "doc_%08d.txt"
	metaFilePattern = "doc_%08d.meta.json"

	// separatorWidth is the length of the dashed line between header and body.
	separatorWidth = 80
)

// docFileRegexp matches document file names and captures the numeric ID.
var docFileRegexp = regexp.MustCompile(`^doc_(\d+)\.txt$`)

// Store writes documents and checkpoints into one directory.
// It is safe for concurrent use.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	lastID int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the time source for checkpoint timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open prepares dir for writing, creating it when needed.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}

	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputNotWritable, err)
	}
	_ = check.Close()
	_ = os.Remove(check.Name())

	s := &Store{
		dir:    dir,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Dir returns the corpus directory.
func (s *Store) Dir() string {
	return s.dir
}

// LastID returns the highest document ID in use.
func (s *Store) LastID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// NextID returns the ID the next saved document should use.
// It does not reserve the ID.
func (s *Store) NextID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID + 1
}

// LoadState reads the checkpoint. A missing, corrupt or unreadable file
// yields an empty state. An error means the corpus directory itself could
// not be scanned. The highest doc_*.txt ID on disk is always used as a floor
// for LastDocID, so IDs are never reused.
func (s *Store) LoadState() (*model.CrawlState, error) {
	state := &model.CrawlState{}

	data, err := os.ReadFile(filepath.Join(s.dir, StateFileName))
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, state); jsonErr != nil {
			s.logger.Warn("ignoring corrupt crawl state", "file", StateFileName, "error", jsonErr)
			state = &model.CrawlState{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		s.logger.Warn("ignoring unreadable crawl state", "file", StateFileName, "error", err)
	}

	maxOnDisk, err := s.scanMaxID()
	if err != nil {
		return nil, err
	}
	if maxOnDisk > state.LastDocID {
		state.LastDocID = maxOnDisk
	}

	s.mu.Lock()
	if state.LastDocID > s.lastID {
		s.lastID = state.LastDocID
	}
	state.LastDocID = s.lastID
	s.mu.Unlock()

	return state, nil
}

// scanMaxID returns the largest numeric suffix among doc_*.txt files.
func (s *Store) scanMaxID() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan corpus directory: %w", err)
	}

	maxID := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := docFileRegexp.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// Save writes the text file and the metadata sidecar for doc.
// On failure any partial file is removed and the last ID is unchanged.
func (s *Store) Save(doc *model.Document) error {
	if doc == nil || doc.ID <= 0 || doc.URL == "" {
		return ErrInvalidDocument
	}

	textPath := filepath.Join(s.dir, fmt.Sprintf(docFilePattern, doc.ID))
	metaPath := filepath.Join(s.dir, fmt.Sprintf(metaFilePattern, doc.ID))

	meta, err := encodeMeta(doc)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(textPath, []byte(renderText(doc)), 0o600); err != nil {
		_ = os.Remove(textPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(textPath), err)
	}
	if err := os.WriteFile(metaPath, meta, 0o600); err != nil {
		_ = os.Remove(metaPath)
		_ = os.Remove(textPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(metaPath), err)
	}

	s.mu.Lock()
	if doc.ID > s.lastID {
		s.lastID = doc.ID
	}
	s.mu.Unlock()

	return nil
}

// SaveState writes the checkpoint atomically.
func (s *Store) SaveState(visited []string) error {
	state := model.CrawlState{
		LastDocID:   s.LastID(),
		VisitedURLs: visited,
		LastUpdated: s.now(),
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode crawl state: %w", err)
	}

	return writeFileAtomic(filepath.Join(s.dir, StateFileName), data)
}

// renderText formats a document as its .txt file.
func renderText(doc *model.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TITLE: %s\n", doc.DisplayTitle())
	fmt.Fprintf(&sb, "SOURCE: %s\n", doc.Source)
	fmt.Fprintf(&sb, "URL: %s\n", doc.URL)
	fmt.Fprintf(&sb, "DATE: %s\n", doc.Date)
	sb.WriteString(strings.Repeat("-", separatorWidth))
	sb.WriteString("\nCONTENT:\n")
	sb.WriteString(doc.Text)
	return sb.String()
}

// encodeMeta renders the sidecar with two-space indentation and without
// HTML escaping, so non-ASCII text stays readable.
func encodeMeta(doc *model.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc.Meta()); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
