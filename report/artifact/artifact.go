// Package artifact stores the files a report job produces: one directory per
// job under the output root, holding the report texts and result.json.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/pipeline"
)

// Files written into a job directory
const (
	ReportFile  = "report.txt"
	TheoryFile  = "theory.txt"
	ReviewFile  = "review.txt"
	FiguresFile = "figures.txt"
	ResultFile  = "result.json"
)

var safeJobID = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// IsSafeJobID reports whether id can be used as a directory name
func IsSafeJobID(id string) bool {
	return safeJobID.MatchString(id)
}

// Record is the content of result.json
type Record struct {
	JobID                  string           `json:"job_id"`
	Timestamp              time.Time        `json:"timestamp"`
	Template               string           `json:"template"`
	TemplateDisplayName    string           `json:"template_display_name"`
	IncludeReviewRequested bool             `json:"include_review_requested"`
	IncludeReviewEffective bool             `json:"include_review_effective"`
	HasCSV                 bool             `json:"has_csv"`
	ExtraInstructions      string           `json:"extra_instructions,omitempty"`
	PipelineDurationMS     int64            `json:"pipeline_duration_ms"`
	Error                  string           `json:"error,omitempty"`
	Result                 *pipeline.Result `json:"result,omitempty"`
}

// Store resolves job directories under a root
type Store struct {
	root string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the output root
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory of a job, creating it if needed
func (s *Store) Dir(jobID string) (*Dir, error) {
	if !IsSafeJobID(jobID) {
		return nil, errors.NewInvalidRequestError("invalid job id %q", jobID)
	}
	path := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create job directory %s", path)
	}
	return &Dir{JobID: jobID, Path: path}, nil
}

// Dir is one job's artifact directory
type Dir struct {
	JobID string
	Path  string
}

// WriteText writes one text artifact
func (d *Dir) WriteText(name, text string) error {
	if err := os.WriteFile(filepath.Join(d.Path, name), []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s for job %s", name, d.JobID)
	}
	return nil
}

// ReadText reads one text artifact. A missing file reads as "".
func (d *Dir) ReadText(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.Path, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s for job %s", name, d.JobID)
	}
	return string(data), nil
}

// Save writes result.json and the text artifacts of rec.Result
func (d *Dir) Save(rec *Record) error {
	if rec.Result != nil {
		for name, text := range map[string]string{
			TheoryFile:  rec.Result.Theory,
			ReportFile:  rec.Result.Report,
			ReviewFile:  rec.Result.Review,
			FiguresFile: rec.Result.Figures,
		} {
			if err := d.WriteText(name, text); err != nil {
				return err
			}
		}
	}
	return d.SaveRecord(rec)
}

// SaveRecord writes result.json only, stamping the record with the job ID and time
func (d *Dir) SaveRecord(rec *Record) error {
	rec.JobID = d.JobID
	rec.Timestamp = time.Now().UTC()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result record")
	}
	return d.WriteText(ResultFile, string(data))
}

// LoadRecord reads result.json. A job without one returns ErrNotFound.
func (d *Dir) LoadRecord() (*Record, error) {
	data, err := os.ReadFile(filepath.Join(d.Path, ResultFile))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("no result recorded for job %s", d.JobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read result for job %s", d.JobID)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "failed to decode result for job %s", d.JobID)
	}
	return &rec, nil
}

// Report returns the report text, falling back to the recorded result when
// report.txt is missing or blank
func (d *Dir) Report() (string, error) {
	text, err := d.ReadText(ReportFile)
	if err != nil || text != "" {
		return text, err
	}
	rec, err := d.LoadRecord()
	if errors.IsNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if rec.Result == nil {
		return "", nil
	}
	return rec.Result.Report, nil
}
