package mockup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"ai-mockup-studio/internal/catalog"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/upload"
)

var (
	// ErrBusy is returned when a generation is already in flight.
	ErrBusy = errors.New("mockup: a generation is already in progress")
	// ErrSuperseded is delivered to a call whose result arrived after the
	// session moved on to another scenario.
	ErrSuperseded = errors.New("mockup: result superseded by a newer selection")
)

// Synthesizer is the provider-facing client. *synthesis.Client implements it.
type Synthesizer interface {
	SynthesizeScenes(ctx context.Context, prompt, aspectRatio string, count int) ([]synthesis.Image, error)
	CompositeDesign(ctx context.Context, scene, asset synthesis.Image, editPrompt string) (synthesis.Image, error)
	ApplyStyle(ctx context.Context, artifact synthesis.Image, stylePrompt string) (synthesis.Image, error)
}

type Options struct {
	ID          string
	Synthesizer Synthesizer
	// ScenarioID is the initial scenario; empty selects the catalog default.
	// It is not validated here, GenerateScenes reports an unknown id.
	ScenarioID string
	Logger     *slog.Logger
	// OnChange receives a snapshot after every committed transition, in
	// Version order; a snapshot older than one already delivered is dropped.
	// It must not mutate the orchestrator.
	OnChange func(Snapshot)
}

// Snapshot is a point-in-time copy of a generation session.
type Snapshot struct {
	ScenarioID     string
	AspectRatio    string
	VariationCount int
	Variations     []synthesis.Image
	SelectedIndex  int
	Asset          *upload.Asset
	Style          string
	BackgroundBlur bool
	HighQuality    bool
	Stage          Stage
	Artifact       *synthesis.Image
	Err            error
	Token          uint64
	// Version increases with every committed transition.
	Version uint64
}

// Scenario resolves the snapshot's scenario in the catalog.
func (s Snapshot) Scenario() (catalog.Scenario, bool) {
	return catalog.LookupScenario(s.ScenarioID)
}

// Selected returns the selected variation, if any.
func (s Snapshot) Selected() (synthesis.Image, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Variations) {
		return synthesis.Image{}, false
	}
	return s.Variations[s.SelectedIndex], true
}

// Orchestrator owns one generation session and drives it through the
// scene, composite and style stages.
type Orchestrator struct {
	id       string
	synth    Synthesizer
	logger   *slog.Logger
	onChange func(Snapshot)

	// flight is held for the whole lifetime of a provider call.
	flight *semaphore.Weighted

	mu     sync.Mutex
	state  Snapshot
	cancel context.CancelFunc

	notifyMu  sync.Mutex
	delivered uint64
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scenarioID := opts.ScenarioID
	if scenarioID == "" {
		scenarioID = catalog.DefaultScenarioID()
	}

	return &Orchestrator{
		id:       opts.ID,
		synth:    opts.Synthesizer,
		logger:   logger.With("session", opts.ID),
		onChange: opts.OnChange,
		flight:   semaphore.NewWeighted(1),
		state: Snapshot{
			ScenarioID:     scenarioID,
			AspectRatio:    catalog.DefaultAspectRatio,
			VariationCount: catalog.DefaultVariationCount,
			SelectedIndex:  -1,
			Style:          catalog.StyleNone,
			Stage:          StageIdle,
		},
	}
}

func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// StartScenes begins scene synthesis for the active scenario and returns a
// channel that yields the outcome once. Use a context that outlives the
// caller's request; cancelling it aborts the call.
func (o *Orchestrator) StartScenes(ctx context.Context) (<-chan error, error) {
	if !o.flight.TryAcquire(1) {
		return nil, ErrBusy
	}

	o.mu.Lock()
	st := o.state
	if _, ok := catalog.LookupScenario(st.ScenarioID); !ok {
		o.mu.Unlock()
		o.flight.Release(1)
		return nil, synthesis.Validationf("generate_scenes", "unknown scenario %q", st.ScenarioID)
	}
	prompt := catalog.ResolveBasePrompt(st.ScenarioID, st.AspectRatio, st.HighQuality)

	o.state.Variations = nil
	o.state.SelectedIndex = -1
	o.state.Artifact = nil
	o.state.Err = nil
	o.state.Stage = StageScenesPending
	callCtx, token := o.beginLocked(ctx)
	snap := o.changedLocked()
	o.mu.Unlock()

	o.logger.Info("scenes started", "scenario", st.ScenarioID, "aspect_ratio", st.AspectRatio, "count", st.VariationCount, "token", token)
	o.notify(snap)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		images, err := o.synth.SynthesizeScenes(callCtx, prompt, st.AspectRatio, st.VariationCount)
		err = o.commitScenes(token, images, err)
		// Free the slot before reporting so the receiver can start the next call.
		o.flight.Release(1)
		done <- err
	}()
	return done, nil
}

// GenerateScenes is the blocking form of StartScenes.
func (o *Orchestrator) GenerateScenes(ctx context.Context) error {
	done, err := o.StartScenes(ctx)
	if err != nil {
		return err
	}
	return <-done
}

func (o *Orchestrator) commitScenes(token uint64, images []synthesis.Image, err error) error {
	o.mu.Lock()
	if token != o.state.Token {
		o.mu.Unlock()
		o.logger.Info("scenes result discarded", "token", token)
		return ErrSuperseded
	}
	o.endLocked()
	if err != nil {
		o.state.Variations = nil
		o.state.Stage = StageError
		o.state.Err = err
	} else {
		o.state.Variations = images
		o.state.SelectedIndex = 0
		o.state.Stage = StageScenesReady
	}
	snap := o.changedLocked()
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("scenes failed", "kind", synthesis.KindOf(err).String(), "error", err)
	} else {
		o.logger.Info("scenes ready", "count", len(images))
	}
	o.notify(snap)
	return err
}

// SelectScene picks the variation the mockup is built on.
func (o *Orchestrator) SelectScene(index int) error {
	o.mu.Lock()
	if o.state.Stage.Pending() {
		o.mu.Unlock()
		return ErrBusy
	}
	if len(o.state.Variations) == 0 {
		o.mu.Unlock()
		return synthesis.Validationf("select_scene", "no scene variations to choose from")
	}
	if index < 0 || index >= len(o.state.Variations) {
		n := len(o.state.Variations)
		o.mu.Unlock()
		return synthesis.Validationf("select_scene", "index %d out of range [0, %d)", index, n)
	}
	o.state.SelectedIndex = index
	o.state.Artifact = nil
	o.state.Err = nil
	o.state.Stage = StageScenesReady
	snap := o.changedLocked()
	o.mu.Unlock()

	o.notify(snap)
	return nil
}

// StartMockup composites the attached design into the selected scene and
// applies at most one enhancement pass.
func (o *Orchestrator) StartMockup(ctx context.Context) (<-chan error, error) {
	if !o.flight.TryAcquire(1) {
		return nil, ErrBusy
	}

	o.mu.Lock()
	plan, err := o.planMockupLocked()
	if err != nil {
		o.mu.Unlock()
		o.flight.Release(1)
		return nil, err
	}

	o.state.Artifact = nil
	o.state.Err = nil

	// Scene-only scenario with nothing to apply: the scene is the result.
	if !plan.composite && !plan.enhance {
		o.state.Token++
		o.state.Artifact = &plan.scene
		o.state.Stage = StageDone
		snap := o.changedLocked()
		o.mu.Unlock()
		o.flight.Release(1)

		o.logger.Info("mockup done", "passthrough", true)
		o.notify(snap)
		done := make(chan error, 1)
		close(done)
		return done, nil
	}

	if plan.composite {
		o.state.Stage = StageCompositePending
	} else {
		o.state.Stage = StageStylePending
	}
	callCtx, token := o.beginLocked(ctx)
	snap := o.changedLocked()
	o.mu.Unlock()

	o.logger.Info("mockup started", "scenario", snap.ScenarioID, "composite", plan.composite, "enhancement", plan.enhancement, "token", token)
	o.notify(snap)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := o.runMockup(callCtx, token, plan)
		o.flight.Release(1)
		done <- err
	}()
	return done, nil
}

// GenerateMockup is the blocking form of StartMockup.
func (o *Orchestrator) GenerateMockup(ctx context.Context) error {
	done, err := o.StartMockup(ctx)
	if err != nil {
		return err
	}
	return <-done
}

type mockupPlan struct {
	scene synthesis.Image
	asset synthesis.Image

	composite  bool
	editPrompt string

	enhance     bool
	enhancement string
	stylePrompt string
}

func (o *Orchestrator) planMockupLocked() (mockupPlan, error) {
	const op = "generate_mockup"
	st := o.state

	scene, ok := st.Selected()
	if !ok {
		return mockupPlan{}, synthesis.Validationf(op, "select a scene variation first")
	}
	sc, ok := catalog.LookupScenario(st.ScenarioID)
	if !ok {
		return mockupPlan{}, synthesis.Validationf(op, "unknown scenario %q", st.ScenarioID)
	}

	plan := mockupPlan{scene: scene}
	plan.editPrompt, plan.composite = catalog.ResolveEditPrompt(sc.Design)
	if plan.composite {
		if st.Asset == nil {
			return mockupPlan{}, synthesis.Validationf(op, "upload a %s design first", sc.Design)
		}
		plan.asset = st.Asset.Image()
	}

	plan.enhancement = enhancementFor(st)
	if plan.enhancement != "" {
		plan.stylePrompt, plan.enhance = catalog.ResolveStylePrompt(plan.enhancement)
	}
	return plan, nil
}

// enhancementFor picks the single post-processing pass: background blur,
// then a named style, then generic quality enhancement.
func enhancementFor(st Snapshot) string {
	switch {
	case st.BackgroundBlur:
		return catalog.StyleBackgroundBlur
	case st.Style != "" && st.Style != catalog.StyleNone:
		return st.Style
	case st.HighQuality:
		return catalog.StyleQualityEnhance
	default:
		return ""
	}
}

func (o *Orchestrator) runMockup(ctx context.Context, token uint64, plan mockupPlan) error {
	result := plan.scene

	if plan.composite {
		img, err := o.synth.CompositeDesign(ctx, plan.scene, plan.asset, plan.editPrompt)
		if err != nil {
			return o.commitMockup(token, synthesis.Image{}, err)
		}
		result = img

		if plan.enhance {
			if !o.advance(token, StageCompositeReady) || !o.advance(token, StageStylePending) {
				return ErrSuperseded
			}
		}
	}

	if plan.enhance {
		img, err := o.synth.ApplyStyle(ctx, result, plan.stylePrompt)
		if err != nil {
			return o.commitMockup(token, synthesis.Image{}, err)
		}
		result = img
	}

	return o.commitMockup(token, result, nil)
}

func (o *Orchestrator) advance(token uint64, stage Stage) bool {
	o.mu.Lock()
	if token != o.state.Token {
		o.mu.Unlock()
		return false
	}
	o.state.Stage = stage
	snap := o.changedLocked()
	o.mu.Unlock()

	o.notify(snap)
	return true
}

func (o *Orchestrator) commitMockup(token uint64, artifact synthesis.Image, err error) error {
	o.mu.Lock()
	if token != o.state.Token {
		o.mu.Unlock()
		o.logger.Info("mockup result discarded", "token", token)
		return ErrSuperseded
	}
	o.endLocked()
	if err != nil {
		o.state.Artifact = nil
		o.state.Stage = StageError
		o.state.Err = err
	} else {
		o.state.Artifact = &artifact
		o.state.Stage = StageDone
	}
	snap := o.changedLocked()
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("mockup failed", "kind", synthesis.KindOf(err).String(), "error", err)
	} else {
		o.logger.Info("mockup done", "bytes", len(artifact.Data))
	}
	o.notify(snap)
	return err
}

// SelectScenario switches to another scenario and discards everything
// generated so far, including any call still in flight.
func (o *Orchestrator) SelectScenario(id string) error {
	sc, ok := catalog.LookupScenario(id)
	if !ok {
		return synthesis.Validationf("select_scenario", "unknown scenario %q", id)
	}
	o.reset(sc.ID)
	return nil
}

// SelectCategory switches to the first scenario of a design category.
func (o *Orchestrator) SelectCategory(design catalog.DesignType) error {
	cat, ok := catalog.LookupCategory(design)
	if !ok {
		return synthesis.Validationf("select_category", "unknown category %q", design)
	}
	o.reset(cat.Scenarios[0].ID)
	return nil
}

func (o *Orchestrator) reset(scenarioID string) {
	o.mu.Lock()
	o.state.Token++
	o.endLocked()
	o.state.ScenarioID = scenarioID
	o.state.Variations = nil
	o.state.SelectedIndex = -1
	o.state.Asset = nil
	o.state.Artifact = nil
	o.state.Err = nil
	o.state.Stage = StageIdle
	snap := o.changedLocked()
	o.mu.Unlock()

	o.logger.Info("session reset", "scenario", scenarioID, "token", snap.Token)
	o.notify(snap)
}

func (o *Orchestrator) SetAspectRatio(value string) error {
	ar, ok := catalog.NormalizeAspectRatio(value)
	if !ok {
		return synthesis.Validationf("set_aspect_ratio", "unsupported aspect ratio %q", value)
	}
	o.update(func(st *Snapshot) { st.AspectRatio = ar })
	return nil
}

func (o *Orchestrator) SetVariationCount(n int) error {
	if n < 1 || n > catalog.MaxVariationCount {
		return synthesis.Validationf("set_variation_count", "count must be between 1 and %d, got %d", catalog.MaxVariationCount, n)
	}
	o.update(func(st *Snapshot) { st.VariationCount = n })
	return nil
}

func (o *Orchestrator) SetStyle(id string) error {
	if !catalog.HasStyle(id) {
		return synthesis.Validationf("set_style", "unknown style %q", id)
	}
	o.update(func(st *Snapshot) { st.Style = id })
	return nil
}

func (o *Orchestrator) SetBackgroundBlur(on bool) {
	o.update(func(st *Snapshot) { st.BackgroundBlur = on })
}

func (o *Orchestrator) SetHighQuality(on bool) {
	o.update(func(st *Snapshot) { st.HighQuality = on })
}

// ToggleBackgroundBlur flips the blur flag atomically and returns the new value.
func (o *Orchestrator) ToggleBackgroundBlur() bool {
	var on bool
	o.update(func(st *Snapshot) {
		st.BackgroundBlur = !st.BackgroundBlur
		on = st.BackgroundBlur
	})
	return on
}

func (o *Orchestrator) ToggleHighQuality() bool {
	var on bool
	o.update(func(st *Snapshot) {
		st.HighQuality = !st.HighQuality
		on = st.HighQuality
	})
	return on
}

// AttachAsset sets the design used by the next mockup. A call already in
// flight keeps the asset it started with.
func (o *Orchestrator) AttachAsset(asset upload.Asset) {
	o.update(func(st *Snapshot) { st.Asset = &asset })
}

func (o *Orchestrator) ClearAsset() {
	o.update(func(st *Snapshot) { st.Asset = nil })
}

func (o *Orchestrator) update(fn func(*Snapshot)) {
	o.mu.Lock()
	fn(&o.state)
	snap := o.changedLocked()
	o.mu.Unlock()

	o.notify(snap)
}

func (o *Orchestrator) beginLocked(parent context.Context) (context.Context, uint64) {
	o.endLocked()
	ctx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	o.state.Token++
	return ctx, o.state.Token
}

func (o *Orchestrator) endLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := o.state
	if o.state.Variations != nil {
		snap.Variations = append([]synthesis.Image(nil), o.state.Variations...)
	}
	if o.state.Asset != nil {
		asset := *o.state.Asset
		snap.Asset = &asset
	}
	if o.state.Artifact != nil {
		artifact := *o.state.Artifact
		snap.Artifact = &artifact
	}
	return snap
}

func (o *Orchestrator) changedLocked() Snapshot {
	o.state.Version++
	return o.snapshotLocked()
}

func (o *Orchestrator) notify(snap Snapshot) {
	if o.onChange == nil {
		return
	}
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	if snap.Version <= o.delivered {
		return
	}
	o.delivered = snap.Version
	o.onChange(snap)
}
