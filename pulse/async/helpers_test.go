package async

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/ai/provider"
	rctest "github.com/teranos/reportcopilot/internal/testing"
	"github.com/teranos/reportcopilot/report/agent"
	"github.com/teranos/reportcopilot/report/artifact"
	"github.com/teranos/reportcopilot/report/template"
)

// testEnv is a store, queue and runner over one in-memory database, backed
// by the offline mock provider
type testEnv struct {
	store     *Store
	queue     *Queue
	runner    *Runner
	artifacts *artifact.Store
	mock      *provider.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewStore(rctest.CreateTestDB(t))
	templates := template.Builtin()
	mock := provider.NewMock()
	artifacts := artifact.NewStore(t.TempDir())
	return &testEnv{
		store:     store,
		queue:     NewQueue(store, templates, nil),
		runner:    NewRunner(store, templates, agent.New(mock, nil), artifacts, nil),
		artifacts: artifacts,
		mock:      mock,
	}
}

// withSteps swaps the runner's steps, keeping the mock agents for section rewrites
func (e *testEnv) withSteps(steps *hookedSteps) *testEnv {
	steps.Agents = agent.New(e.mock, nil)
	e.runner = NewRunnerWithSteps(e.store, template.Builtin(), steps, steps.Agents, e.artifacts, nil)
	return e
}

// claim enqueues req and moves it to running the way a worker would
func (e *testEnv) claim(t *testing.T, req Request) *Job {
	t.Helper()
	queued, err := e.queue.Enqueue(req)
	require.NoError(t, err)
	job, err := e.store.ClaimNext()
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, queued.ID, job.ID)
	return job
}

// runToDone claims and executes a study guide job with the mock agents
func (e *testEnv) runToDone(t *testing.T) *Job {
	t.Helper()
	job := e.claim(t, studyGuideRequest())
	require.NoError(t, e.runner.Execute(t.Context(), job))
	done, err := e.store.GetJob(job.ID)
	require.NoError(t, err)
	require.Equal(t, JobStatusDone, done.Status, done.Error)
	return done
}

func studyGuideRequest() Request {
	return Request{
		Template:   "study_guide",
		ManualText: "Photosynthesis converts light energy into chemical energy stored in glucose.",
		Goal:       "Build an exam-focused study guide.",
	}
}

// labReportRequest returns a lab report submission with a valid CSV in a temp dir
func labReportRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Template:   "lab_report",
		ManualText: "Heat the sample and record temperature every minute.",
		Goal:       "Measure the heating curve of water.",
		CSVPath:    writeCSV(t, "time,temp\n0,20.5\n1,25.1\n2,31.0\n"),
	}
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// insertJob stores a job directly, bypassing validation
func insertJob(t *testing.T, store *Store, tmpl string, created time.Time) *Job {
	t.Helper()
	job, err := NewJob(Request{Template: tmpl, ManualText: "notes"})
	require.NoError(t, err)
	job.CreatedAt = created.UTC()
	job.UpdatedAt = created.UTC()
	require.NoError(t, store.CreateJob(job))
	return job
}
