package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/pipeline"
	"github.com/teranos/reportcopilot/report/quality"
)

const jobID = "3f1c2a9e-0b7d-4e59-9a3c-5d2f8e6b1a04"

func TestIsSafeJobID(t *testing.T) {
	assert.True(t, IsSafeJobID(jobID))
	assert.True(t, IsSafeJobID("abcd1234"))
	assert.False(t, IsSafeJobID("short"))
	assert.False(t, IsSafeJobID("../../etc/passwd"))
	assert.False(t, IsSafeJobID("job id with spaces"))
}

func TestStore_Dir(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	d, err := s.Dir(jobID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, jobID), d.Path)
	assert.DirExists(t, d.Path)

	_, err = s.Dir("../escape")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDir_SaveAndLoad(t *testing.T) {
	d, err := NewStore(t.TempDir()).Dir(jobID)
	require.NoError(t, err)

	rec := &Record{
		Template:               "lab_report",
		IncludeReviewRequested: true,
		PipelineDurationMS:     1200,
		Result: &pipeline.Result{
			Theory:   "theory",
			Report:   "Objective:\nx",
			Review:   "fine",
			Sections: map[string]string{"Objective": "x"},
			Quality:  quality.Report{OK: true, Issues: []quality.Issue{}},
			Status:   map[string]pipeline.StepStatus{"research": {State: pipeline.StateOK, DurationMS: 5}},
		},
	}
	require.NoError(t, d.Save(rec))

	for name, want := range map[string]string{ReportFile: "Objective:\nx", TheoryFile: "theory", ReviewFile: "fine", FiguresFile: ""} {
		got, err := d.ReadText(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	loaded, err := d.LoadRecord()
	require.NoError(t, err)
	assert.Equal(t, jobID, loaded.JobID)
	assert.False(t, loaded.Timestamp.IsZero())
	assert.Equal(t, "lab_report", loaded.Template)
	assert.Equal(t, int64(1200), loaded.PipelineDurationMS)
	assert.Equal(t, "x", loaded.Result.Sections["Objective"])
	assert.Equal(t, pipeline.StateOK, loaded.Result.Status["research"].State)
}

func TestDir_MissingFiles(t *testing.T) {
	d, err := NewStore(t.TempDir()).Dir(jobID)
	require.NoError(t, err)

	text, err := d.ReadText(ReportFile)
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = d.LoadRecord()
	assert.True(t, errors.IsNotFoundError(err))

	report, err := d.Report()
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestDir_ReportFallsBackToRecord(t *testing.T) {
	d, err := NewStore(t.TempDir()).Dir(jobID)
	require.NoError(t, err)
	require.NoError(t, d.SaveRecord(&Record{Result: &pipeline.Result{Report: "from record"}}))

	report, err := d.Report()
	require.NoError(t, err)
	assert.Equal(t, "from record", report)

	require.NoError(t, d.WriteText(ReportFile, "edited"))
	report, err = d.Report()
	require.NoError(t, err)
	assert.Equal(t, "edited", report)
}

func writeAged(t *testing.T, path string, size int, age time.Duration, now time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCleanup(t *testing.T) {
	now := time.Now()
	outputs := filepath.Join(t.TempDir(), "outputs")
	uploads := filepath.Join(t.TempDir(), "uploads")

	oldDir := filepath.Join(outputs, "oldjob01")
	writeAged(t, filepath.Join(oldDir, "report.txt"), 10, 0, now)
	writeAged(t, filepath.Join(oldDir, "theory.txt"), 5, 0, now)
	require.NoError(t, os.Chtimes(oldDir, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))
	writeAged(t, filepath.Join(outputs, "newjob01", "report.txt"), 3, 0, now)
	writeAged(t, filepath.Join(uploads, "old.csv"), 7, 72*time.Hour, now)

	opts := CleanupOptions{
		Roots:  []string{outputs, uploads, filepath.Join(t.TempDir(), "missing")},
		MaxAge: 24 * time.Hour,
		DryRun: true,
		Now:    func() time.Time { return now },
	}

	dry := Cleanup(opts)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 24.0, dry.MaxAgeHours)
	assert.Equal(t, 3, dry.Scanned)
	assert.Equal(t, 2, dry.Deleted)
	assert.Equal(t, int64(22), dry.FreedBytes)
	assert.ElementsMatch(t, []string{oldDir, filepath.Join(uploads, "old.csv")}, dry.DeletedPaths)
	assert.DirExists(t, oldDir)

	opts.DryRun = false
	applied := Cleanup(opts)
	assert.Equal(t, 2, applied.Deleted)
	assert.NoDirExists(t, oldDir)
	assert.NoFileExists(t, filepath.Join(uploads, "old.csv"))
	assert.DirExists(t, filepath.Join(outputs, "newjob01"))
}

func TestCleanup_CapsReportedPaths(t *testing.T) {
	now := time.Now()
	root := t.TempDir()
	for i := 0; i < MaxReportedPaths+5; i++ {
		writeAged(t, filepath.Join(root, fmt.Sprintf("f%03d.txt", i)), 1, time.Hour, now)
	}

	res := Cleanup(CleanupOptions{Roots: []string{root}, MaxAge: time.Minute, DryRun: true, Now: func() time.Time { return now }})
	assert.Equal(t, MaxReportedPaths+5, res.Deleted)
	assert.Len(t, res.DeletedPaths, MaxReportedPaths)
}
