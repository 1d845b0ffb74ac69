package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/auditship/internal/domain"
	"github.com/bft-labs/auditship/pkg/log"
)

const disasterFileVersion = 1

// CorruptSuffix is appended to a disaster file that could not be decoded
// when it is moved aside.
const CorruptSuffix = ".corrupt"

// errUndecodable marks a disaster file whose contents cannot be read back.
var errUndecodable = errors.New("undecodable disaster file")

// disasterDocument is the on-disk layout of the disaster file.
type disasterDocument struct {
	Version int                           `json:"version"`
	Records map[string]domain.AuditRecord `json:"records"`
}

// DisasterFile implements ports.DisasterStore using a JSON file.
// Paths and the size limit are read from the settings holder on every call so
// a settings swap takes effect on the next operation.
type DisasterFile struct {
	settings *domain.SettingsHolder
	logger   log.Logger
}

// Option configures a DisasterFile.
type Option func(*DisasterFile)

// WithLogger sets the logger used to report files moved aside.
func WithLogger(logger log.Logger) Option {
	return func(f *DisasterFile) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewDisasterFile creates a DisasterFile backed by the given settings.
func NewDisasterFile(settings *domain.SettingsHolder, opts ...Option) *DisasterFile {
	f := &DisasterFile{settings: settings, logger: log.NoopLogger{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Persist merges records into the file and rewrites it atomically.
// When the existing file is larger than MaxFileSize it is deleted and
// domain.ErrDisasterFileTooLarge is returned without writing anything.
// An existing file that cannot be decoded is renamed with CorruptSuffix and
// replaced by a fresh one holding only records.
func (f *DisasterFile) Persist(ctx context.Context, records []domain.AuditRecord) error {
	s := f.settings.Load()
	if err := os.MkdirAll(s.FilePath, 0o700); err != nil {
		return fmt.Errorf("create disaster dir: %w", err)
	}

	if info, err := os.Stat(s.DisasterFile); err == nil && info.Size() > s.MaxFileSize {
		if err := os.Remove(s.DisasterFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove oversized disaster file: %w", err)
		}
		return fmt.Errorf("%w: %d > %d bytes", domain.ErrDisasterFileTooLarge, info.Size(), s.MaxFileSize)
	}

	doc, err := readDocument(s.DisasterFile)
	if errors.Is(err, errUndecodable) {
		aside := s.DisasterFile + CorruptSuffix
		if renameErr := os.Rename(s.DisasterFile, aside); renameErr != nil {
			return fmt.Errorf("move aside corrupt disaster file: %w", renameErr)
		}
		f.logger.Warn("moved aside corrupt disaster file",
			log.String("path", aside),
			log.Err(err),
		)
		doc, err = newDocument(), nil
	}
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc.Records[strconv.FormatUint(r.RequestID, 10)] = r
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode disaster file: %w", err)
	}

	tmp := s.DisasterFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write disaster file: %w", err)
	}
	return os.Rename(tmp, s.DisasterFile)
}

// Load returns every record in the file ordered by request id.
// Returns nil and no error if the file does not exist.
func (f *DisasterFile) Load(ctx context.Context) ([]domain.AuditRecord, error) {
	doc, err := readDocument(f.settings.Load().DisasterFile)
	if err != nil {
		return nil, err
	}
	if len(doc.Records) == 0 {
		return nil, nil
	}
	out := make([]domain.AuditRecord, 0, len(doc.Records))
	for _, r := range doc.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out, ctx.Err()
}

// Remove deletes the file. A missing file is not an error.
func (f *DisasterFile) Remove(ctx context.Context) error {
	err := os.Remove(f.settings.Load().DisasterFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size returns the file size in bytes, 0 if it does not exist.
func (f *DisasterFile) Size() (int64, error) {
	info, err := os.Stat(f.settings.Load().DisasterFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// Path returns the full path to the disaster file.
func (f *DisasterFile) Path() string {
	return f.settings.Load().DisasterFile
}

// ReadRecords decodes the disaster file at path. It is used by tooling that
// inspects a file without a running sender.
func ReadRecords(path string) ([]domain.AuditRecord, error) {
	h := domain.NewSettingsHolder(domain.Settings{DisasterFile: path})
	return NewDisasterFile(h).Load(context.Background())
}

func newDocument() disasterDocument {
	return disasterDocument{Version: disasterFileVersion, Records: map[string]domain.AuditRecord{}}
}

func readDocument(path string) (disasterDocument, error) {
	doc := newDocument()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read disaster file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %w", errUndecodable, err)
	}
	if doc.Version != disasterFileVersion {
		return doc, fmt.Errorf("%w: unsupported version %d", errUndecodable, doc.Version)
	}
	if doc.Records == nil {
		doc.Records = map[string]domain.AuditRecord{}
	}
	return doc, nil
}
