package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mashup/internal/acquire"
	"mashup/internal/audio"
	"mashup/internal/config"
	"mashup/internal/encoding"
	"mashup/internal/media/ffmpeg"
	"mashup/internal/media/ffprobe"
	"mashup/internal/notifications"
	"mashup/internal/packaging"
	"mashup/internal/queue"
	"mashup/internal/services"
	"mashup/internal/testsupport"
	"mashup/internal/workflow"
)

type recordingStore struct {
	*queue.Store
	mu     sync.Mutex
	phases map[string][]queue.Phase
}

func (s *recordingStore) record(job *queue.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[job.ID] = append(s.phases[job.ID], job.Phase)
}

func (s *recordingStore) Create(ctx context.Context, job *queue.Job) error {
	if err := s.Store.Create(ctx, job); err != nil {
		return err
	}
	s.record(job)
	return nil
}

func (s *recordingStore) Update(ctx context.Context, job *queue.Job) error {
	if err := s.Store.Update(ctx, job); err != nil {
		return err
	}
	s.record(job)
	return nil
}

func (s *recordingStore) history(id string) []queue.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.Phase(nil), s.phases[id]...)
}

type fakeProvider struct {
	ids     []string
	gate    chan struct{}
	started chan string
}

func (p *fakeProvider) Search(ctx context.Context, query string, _ int) ([]acquire.Candidate, error) {
	if p.started != nil {
		p.started <- query
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]acquire.Candidate, 0, len(p.ids))
	for _, id := range p.ids {
		out = append(out, acquire.Candidate{ID: id, Title: "video " + id, URL: "https://www.youtube.com/watch?v=" + id})
	}
	return out, nil
}

func (p *fakeProvider) Fetch(_ context.Context, c acquire.Candidate, dir string) (string, error) {
	path := filepath.Join(dir, c.ID+".m4a")
	return path, os.WriteFile(path, []byte(c.ID), 0o644)
}

type fakeNotifier struct {
	mu         sync.Mutex
	err        error
	deliveries []notifications.Delivery
}

func (n *fakeNotifier) Deliver(_ context.Context, d notifications.Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	return n.err
}

type fakeAlerts struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (a *fakeAlerts) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type harness struct {
	cfg      *config.Config
	store    *recordingStore
	provider *fakeProvider
	notifier *fakeNotifier
	alerts   *fakeAlerts
	stages   workflow.Stages
	ffmpeg   *ffmpegFake
}

type ffmpegFake struct {
	mu    sync.Mutex
	fail  func(args []string) bool
	calls int
}

func (f *ffmpegFake) Run(_ context.Context, _ string, args ...string) (services.CommandResult, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail
	f.mu.Unlock()
	if fail != nil && fail(args) {
		return services.CommandResult{Stderr: "Conversion failed!"}, errors.New("exit status 1")
	}
	return services.CommandResult{}, os.WriteFile(args[len(args)-1], []byte("media"), 0o644)
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("vid%02d", i)
	}
	return out
}

// newHarness wires real pipeline stages around fake external tools. durations
// maps a video id to its probed audio length; ids not listed get 180 seconds
// and a negative value means the source has no audio stream.
func newHarness(t *testing.T, count int, durations map[string]float64) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := &recordingStore{Store: testsupport.MustOpenStore(t, cfg), phases: map[string][]queue.Phase{}}

	t.Cleanup(acquire.SetProbeForTests(func(_ context.Context, _ string, path string) (ffprobe.Result, error) {
		id := strings.TrimSuffix(filepath.Base(path), ".m4a")
		duration, ok := durations[id]
		if !ok {
			duration = 180
		}
		if duration < 0 {
			return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video"}}}, nil
		}
		value := fmt.Sprintf("%g", duration)
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio", Duration: value}}, Format: ffprobe.Format{Duration: value}}, nil
	}))
	t.Cleanup(encoding.SetProbeForTests(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio", Duration: "231"}}}, nil
	}))

	fake := &ffmpegFake{}
	tool := &ffmpeg.Tool{Runner: fake}
	h := &harness{
		cfg:      cfg,
		store:    store,
		provider: &fakeProvider{ids: ids(count)},
		notifier: &fakeNotifier{},
		alerts:   &fakeAlerts{},
		ffmpeg:   fake,
	}
	h.stages = workflow.Stages{
		Acquirer:     acquire.New(h.provider, acquire.Options{Parallelism: 3}),
		Trimmer:      audio.NewTrimmer(tool, 44100, nil),
		Concatenator: audio.NewConcatenator(tool),
		Encoder:      encoding.New(tool, encoding.SettingsFromConfig(cfg), nil),
		Packager:     packaging.New(),
		Notifier:     h.notifier,
		Alerts:       h.alerts,
	}
	return h
}

func (h *harness) runner(ctx context.Context) *workflow.Runner {
	return workflow.NewRunner(ctx, h.cfg, h.store, h.stages, nil)
}

func request() workflow.Request {
	return workflow.Request{
		Query:       "Test Artist",
		Count:       11,
		ClipSeconds: 21,
		Destination: "user@example.com",
		OutputKind:  encoding.KindAudio,
	}
}

func assertWorkspaceGone(t *testing.T, cfg *config.Config, id string) {
	t.Helper()
	testsupport.AssertNotExists(t, filepath.Join(cfg.Paths.WorkDir, id))
}

func TestRunWalksEveryPhaseToDone(t *testing.T) {
	h := newHarness(t, 11, nil)
	output := filepath.Join(t.TempDir(), "out", "mix.mp3")

	job, err := h.runner(context.Background()).Run(context.Background(), request(), output)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []queue.Phase{
		queue.PhaseQueued,
		queue.PhaseAcquiring,
		queue.PhaseTrimming,
		queue.PhaseMerging,
		queue.PhaseEncoding,
		queue.PhasePackaging,
		queue.PhaseNotifying,
		queue.PhaseDone,
	}
	got := h.store.history(job.ID)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}

	stored, err := h.store.Get(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Phase != queue.PhaseDone || stored.Detail != "Mashup ready: 11 clips, 231 seconds" {
		t.Fatalf("unexpected final status %s %q", stored.Phase, stored.Detail)
	}
	if stored.DurationSeconds <= 0 || stored.DurationSeconds > 11*21 {
		t.Fatalf("unexpected duration %v", stored.DurationSeconds)
	}
	if stored.SourceCount != 11 || stored.SegmentCount != 11 {
		t.Fatalf("unexpected counts %d/%d", stored.SourceCount, stored.SegmentCount)
	}
	if filepath.Base(stored.ArtifactPath) != "test-artist-mashup.mp3" {
		t.Fatalf("unexpected artifact %q", stored.ArtifactPath)
	}
	for _, path := range []string{stored.ArtifactPath, stored.BundlePath, output} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}

	if len(h.notifier.deliveries) != 1 {
		t.Fatalf("expected one delivery, got %d", len(h.notifier.deliveries))
	}
	d := h.notifier.deliveries[0]
	if d.To != "user@example.com" || d.Count != 11 || d.ClipSeconds != 21 || d.BundlePath != stored.BundlePath {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if len(h.alerts.events) != 1 || h.alerts.events[0] != notifications.EventJobCompleted {
		t.Fatalf("unexpected alerts %v", h.alerts.events)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestPartialAcquisitionStillCompletes(t *testing.T) {
	h := newHarness(t, 6, nil)

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Phase != queue.PhaseDone {
		t.Fatalf("expected done, got %s", job.Phase)
	}
	if job.SegmentCount != 6 || job.DurationSeconds != 126 {
		t.Fatalf("expected 6 segments / 126s, got %d / %v", job.SegmentCount, job.DurationSeconds)
	}
	if !strings.Contains(job.Detail, "only 6 of 11 requested sources acquired") {
		t.Fatalf("expected partial warning in detail, got %q", job.Detail)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestDeliveryFailureStillCompletes(t *testing.T) {
	h := newHarness(t, 11, nil)
	h.notifier.err = services.Wrap(services.ErrDelivery, "notifying", "smtp send", "email delivery failed", errors.New("dial tcp: refused"))

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if job.Phase != queue.PhaseDone {
		t.Fatalf("expected done, got %s", job.Phase)
	}
	if !strings.Contains(job.Detail, "email to user@example.com not sent: email delivery failed") {
		t.Fatalf("expected delivery note, got %q", job.Detail)
	}
}

func TestTrimmedLengthsFollowAvailableAudio(t *testing.T) {
	h := newHarness(t, 11, map[string]float64{"vid00": 5, "vid01": 7, "vid02": 3})

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := 5 + 7 + 3 + 8*21.0; job.DurationSeconds != want {
		t.Fatalf("duration = %v, want %v", job.DurationSeconds, want)
	}
}

type panicTrimmer struct{}

func (panicTrimmer) TrimAll(context.Context, []acquire.MediaHandle, int) []*audio.Segment {
	panic("decoder exploded")
}

type unreachableEncoder struct{ t *testing.T }

func (u unreachableEncoder) Encode(context.Context, *audio.Track, encoding.OutputKind, string) error {
	u.t.Fatal("encoder must not run after a fatal stage")
	return nil
}

type unreachablePackager struct{ t *testing.T }

func (u unreachablePackager) Package(string, string) (packaging.Bundle, error) {
	u.t.Fatal("packager must not run after a fatal stage")
	return packaging.Bundle{}, nil
}

type unreachableNotifier struct{ t *testing.T }

func (u unreachableNotifier) Deliver(context.Context, notifications.Delivery) error {
	u.t.Fatal("notifier must not run after a fatal stage")
	return nil
}

func (h *harness) forbidDownstream(t *testing.T) {
	h.stages.Encoder = unreachableEncoder{t}
	h.stages.Packager = unreachablePackager{t}
	h.stages.Notifier = unreachableNotifier{t}
}

func TestAcquisitionFailureStopsPipeline(t *testing.T) {
	h := newHarness(t, 0, nil)
	h.forbidDownstream(t)

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition, got %v", err)
	}
	if job.Phase != queue.PhaseFailed || job.ErrorKind != "acquisition" {
		t.Fatalf("unexpected terminal state %s/%s", job.Phase, job.ErrorKind)
	}
	got := h.store.history(job.ID)
	if fmt.Sprint(got) != fmt.Sprint([]queue.Phase{queue.PhaseQueued, queue.PhaseAcquiring, queue.PhaseFailed}) {
		t.Fatalf("unexpected phases %v", got)
	}
	if len(h.alerts.events) != 1 || h.alerts.events[0] != notifications.EventJobFailed {
		t.Fatalf("unexpected alerts %v", h.alerts.events)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestSilentSourcesFailWithEmptyInput(t *testing.T) {
	durations := map[string]float64{}
	for _, id := range ids(11) {
		durations[id] = -1
	}
	h := newHarness(t, 11, durations)
	h.forbidDownstream(t)

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if !errors.Is(err, services.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if job.Phase != queue.PhaseFailed || job.Detail != "no valid audio clips to merge" {
		t.Fatalf("unexpected terminal state %s %q", job.Phase, job.Detail)
	}
	history := h.store.history(job.ID)
	if history[len(history)-2] != queue.PhaseMerging {
		t.Fatalf("expected failure from merging, got %v", history)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestEncodeFailureFailsJob(t *testing.T) {
	h := newHarness(t, 11, nil)
	h.ffmpeg.fail = func(args []string) bool { return strings.HasSuffix(args[len(args)-1], ".mp3") }
	h.stages.Notifier = unreachableNotifier{t}

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if job.Phase != queue.PhaseFailed || job.ErrorKind != "encode" {
		t.Fatalf("unexpected terminal state %s/%s", job.Phase, job.ErrorKind)
	}
	if strings.Contains(job.Detail, "Conversion failed") {
		t.Fatalf("detail leaked tool output: %q", job.Detail)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestPanicFailsJobAndCleansWorkspace(t *testing.T) {
	h := newHarness(t, 11, nil)
	h.stages.Trimmer = panicTrimmer{}

	job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
	if err == nil {
		t.Fatal("expected error from panicking stage")
	}
	if job.Phase != queue.PhaseFailed || job.Detail != "internal error" {
		t.Fatalf("unexpected terminal state %s %q", job.Phase, job.Detail)
	}
	assertWorkspaceGone(t, h.cfg, job.ID)
}

func TestSubmitRejectsInvalidRequestsWithoutCreatingJobs(t *testing.T) {
	h := newHarness(t, 11, nil)
	runner := h.runner(context.Background())

	bad := []workflow.Request{
		{Query: "", Count: 11, ClipSeconds: 21, Destination: "user@example.com"},
		{Query: "Test Artist", Count: 10, ClipSeconds: 21, Destination: "user@example.com"},
		{Query: "Test Artist", Count: 11, ClipSeconds: 20, Destination: "user@example.com"},
		{Query: "Test Artist", Count: 11, ClipSeconds: 21, Destination: "nope"},
		{Query: "Test Artist", Count: 11, ClipSeconds: 21},
	}
	for _, req := range bad {
		if _, err := runner.Submit(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
	runner.Wait()
	jobs, err := h.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestSubmitQueuesBehindBusyWorkers(t *testing.T) {
	h := newHarness(t, 11, nil)
	h.cfg.Workflow.MaxConcurrentJobs = 1
	h.provider.gate = make(chan struct{})
	h.provider.started = make(chan string, 2)
	runner := h.runner(context.Background())

	first, err := runner.Submit(context.Background(), request())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.Phase != queue.PhaseQueued || first.Terminal {
		t.Fatalf("expected queued status, got %+v", first)
	}
	second, err := runner.Submit(context.Background(), request())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-h.provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("no job started acquiring")
	}
	queued := 0
	for _, id := range []string{first.JobID, second.JobID} {
		status, err := h.store.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Phase == queue.PhaseQueued {
			queued++
		}
	}
	if queued != 1 {
		t.Fatalf("expected exactly one job waiting for a worker, got %d", queued)
	}

	close(h.provider.gate)
	runner.Wait()
	for _, id := range []string{first.JobID, second.JobID} {
		status, err := h.store.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Phase != queue.PhaseDone || !status.Terminal {
			t.Fatalf("expected done, got %+v", status)
		}
		assertWorkspaceGone(t, h.cfg, id)
	}
}

func TestShutdownFailsInFlightJobs(t *testing.T) {
	h := newHarness(t, 11, nil)
	h.provider.gate = make(chan struct{})
	h.provider.started = make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	runner := h.runner(ctx)

	status, err := runner.Submit(context.Background(), request())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-h.provider.started
	cancel()
	runner.Wait()

	stored, err := h.store.Get(context.Background(), status.JobID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Phase != queue.PhaseFailed {
		t.Fatalf("expected failed after shutdown, got %s", stored.Phase)
	}
	assertWorkspaceGone(t, h.cfg, status.JobID)
}

func TestRecoverFailsInterruptedJobs(t *testing.T) {
	h := newHarness(t, 11, nil)
	running := testsupport.NewJob(t, h.store.Store, "Running")
	testsupport.Advance(t, h.store.Store, running, queue.PhaseMerging)
	finished := testsupport.NewJob(t, h.store.Store, "Finished")
	testsupport.Advance(t, h.store.Store, finished, queue.PhaseDone)

	count, err := h.runner(context.Background()).Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recovered job, got %d", count)
	}
	status, err := h.store.Status(context.Background(), running.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Phase != queue.PhaseFailed || status.Detail != queue.InterruptedReason {
		t.Fatalf("unexpected status %+v", status)
	}
	done, _ := h.store.Status(context.Background(), finished.ID)
	if done.Phase != queue.PhaseDone {
		t.Fatalf("finished job changed: %+v", done)
	}
}

type runResult struct {
	job *queue.Job
	err error
}

// startGatedRun begins a command-line run that blocks inside the search
// until the returned gate is closed.
func startGatedRun(t *testing.T, h *harness) (chan struct{}, <-chan runResult) {
	t.Helper()
	gate := make(chan struct{})
	h.provider.gate = gate
	h.provider.started = make(chan string, 1)

	results := make(chan runResult, 1)
	go func() {
		job, err := h.runner(context.Background()).Run(context.Background(), request(), "")
		results <- runResult{job: job, err: err}
	}()
	select {
	case <-h.provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not reach the search")
	}
	return gate, results
}

func waitRun(t *testing.T, results <-chan runResult) runResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
	return runResult{}
}

func TestRecoverLeavesLiveCommandLineRunAlone(t *testing.T) {
	h := newHarness(t, 11, nil)
	ctx := context.Background()
	service := testsupport.NewJob(t, h.store.Store, "Service")
	testsupport.Advance(t, h.store.Store, service, queue.PhaseMerging)

	gate, results := startGatedRun(t, h)

	count, err := h.runner(ctx).Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the service job to be recovered, got %d", count)
	}
	live, err := h.store.List(ctx, queue.PhaseAcquiring)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(live) != 1 || live[0].Origin != queue.OriginCLI {
		t.Fatalf("expected the command-line job still acquiring, got %#v", live)
	}

	close(gate)
	res := waitRun(t, results)
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if res.job.Phase != queue.PhaseDone {
		t.Fatalf("expected done, got %s (%s)", res.job.Phase, res.job.Detail)
	}
	testsupport.AssertNotExists(t, h.cfg.RunLockPath(res.job.ID))
}

func TestRecoverFailsAbandonedCommandLineJobs(t *testing.T) {
	h := newHarness(t, 11, nil)
	ctx := context.Background()
	orphan := testsupport.NewJobWithOrigin(t, h.store.Store, "Orphan", queue.OriginCLI)
	testsupport.Advance(t, h.store.Store, orphan, queue.PhaseMerging)

	count, err := h.runner(ctx).Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one abandoned job, got %d", count)
	}
	status, err := h.store.Status(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Phase != queue.PhaseFailed || status.Detail != queue.AbandonedReason {
		t.Fatalf("unexpected status %+v", status)
	}
	testsupport.AssertNotExists(t, h.cfg.RunLockPath(orphan.ID))
}

func TestRunReturnsFailureRecordedElsewhere(t *testing.T) {
	h := newHarness(t, 11, nil)
	ctx := context.Background()

	gate, results := startGatedRun(t, h)

	jobs, err := h.store.List(ctx, queue.PhaseAcquiring)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected one acquiring job, got %d err=%v", len(jobs), err)
	}
	stopped := jobs[0]
	stopped.SetFailed("interrupted", "stopped by operator")
	if err := h.store.Update(ctx, stopped); err != nil {
		t.Fatalf("Update: %v", err)
	}

	close(gate)
	res := waitRun(t, results)
	if res.err == nil {
		t.Fatal("expected Run to report the failure")
	}
	if res.job.Phase != queue.PhaseFailed || res.job.Detail != "stopped by operator" {
		t.Fatalf("returned job diverges from the store: %s %q", res.job.Phase, res.job.Detail)
	}
	stored, err := h.store.Get(ctx, res.job.ID)
	if err != nil || stored == nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Detail != res.job.Detail || stored.ErrorKind != res.job.ErrorKind {
		t.Fatalf("stored %q/%q, returned %q/%q", stored.Detail, stored.ErrorKind, res.job.Detail, res.job.ErrorKind)
	}
	assertWorkspaceGone(t, h.cfg, res.job.ID)
}
