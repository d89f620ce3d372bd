package webengine

import (
	"context"
	"testing"
	"time"

	"github.com/brennhill/oi-web-bridge/internal/learning"
	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/brennhill/oi-web-bridge/internal/step"
	"github.com/stretchr/testify/require"
)

// fakePage is a minimal in-memory Page for unit-testing the loop and
// engine without a real browser.
type fakePage struct {
	screenshots   []string
	navigated     []string
	clicked       []string
	failSelectors map[string]int // remaining failures before success
	mainFrame     bool
	url, title    string
}

func newFakePage() *fakePage {
	return &fakePage{failSelectors: map[string]int{}, mainFrame: true}
}

func (p *fakePage) Navigate(url string, deadline time.Time) (string, error) {
	p.navigated = append(p.navigated, url)
	p.url = url
	return "cmd: playwright open " + url, nil
}

func (p *fakePage) ClickText(text string, deadline time.Time) (string, error) {
	if err := p.clickLike(text); err != nil {
		return "", err
	}
	return "cmd: playwright click text:" + text, nil
}

func (p *fakePage) ClickSelector(selector string, deadline time.Time) (string, error) {
	if err := p.clickLike(selector); err != nil {
		return "", err
	}
	return "cmd: playwright click selector:" + selector, nil
}

func (p *fakePage) clickLike(target string) error {
	if n := p.failSelectors[target]; n > 0 {
		p.failSelectors[target] = n - 1
		return &ErrTargetNotFound{Target: target}
	}
	p.clicked = append(p.clicked, target)
	return nil
}

func (p *fakePage) Fill(selector, value string, deadline time.Time) (string, error) {
	return "cmd: playwright fill selector:" + selector + " value:" + value, nil
}

func (p *fakePage) Select(selector, value string, deadline time.Time) (string, error) {
	return "cmd: playwright select selector:" + selector + " value:" + value, nil
}

func (p *fakePage) WaitSelector(selector string, deadline time.Time) (string, error) {
	return "cmd: playwright wait selector:" + selector, nil
}

func (p *fakePage) WaitText(text string, deadline time.Time) (string, error) {
	return "cmd: playwright wait text:" + text, nil
}

func (p *fakePage) VerifyVisible(target string, deadline time.Time) (bool, error) {
	return true, nil
}

func (p *fakePage) Screenshot(path string) error {
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *fakePage) CurrentURL() string   { return p.url }
func (p *fakePage) CurrentTitle() string { return p.title }

func (p *fakePage) FrameFocusInMainDocument() bool { return p.mainFrame }
func (p *fakePage) ForceMainFrameFocus() error {
	p.mainFrame = true
	return nil
}

func TestLoop_RunsStepsInOrderAndCapturesEvidence(t *testing.T) {
	layout := &state.RunLayout{RunDir: t.TempDir(), EvidenceDir: t.TempDir()}
	page := newFakePage()
	watchdog := NewWatchdog(state.NoiseMinimal, 20*time.Second)
	loop := NewLoop(page, state.ModeWeb, state.Flags{}, layout, nil, watchdog, nil)

	plan := step.Plan{Steps: []step.Step{
		{Index: 0, Kind: step.KindOpenURL, Target: "https://example.com"},
		{Index: 1, Kind: step.KindClickText, Target: "Entrar demo"},
	}}
	deadlines := state.Deadlines{Step: state.NewDeadline(5 * time.Second), Run: state.NewDeadline(30 * time.Second)}

	result := loop.Run(plan, deadlines, 2*time.Second, 5*time.Second)

	require.Len(t, result.Outcomes, 2)
	require.Equal(t, []string{"https://example.com"}, page.navigated)
	require.Equal(t, []string{"Entrar demo"}, page.clicked)
	require.NotEmpty(t, result.EvidencePaths)
}

func TestLoop_RetriesOnTargetNotFoundThenSucceeds(t *testing.T) {
	layout := &state.RunLayout{RunDir: t.TempDir(), EvidenceDir: t.TempDir()}
	page := newFakePage()
	page.failSelectors["#submit"] = 1
	watchdog := NewWatchdog(state.NoiseMinimal, 20*time.Second)
	store := learning.NewStore()
	loop := NewLoop(page, state.ModeWeb, state.Flags{Teaching: true}, layout, store, watchdog, nil)

	plan := step.Plan{Steps: []step.Step{
		{Index: 0, Kind: step.KindClickSelector, Selector: "#submit"},
	}}
	deadlines := state.Deadlines{Step: state.NewDeadline(5 * time.Second), Run: state.NewDeadline(30 * time.Second)}

	result := loop.Run(plan, deadlines, 2*time.Second, 5*time.Second)

	require.Len(t, result.Outcomes, 1)
	require.Equal(t, 1, result.Outcomes[0].Retries)
	require.Contains(t, page.clicked, "#submit")
}

func TestEngine_BootstrapWritesBaselineScreenshot(t *testing.T) {
	layout := &state.RunLayout{RunDir: t.TempDir(), EvidenceDir: t.TempDir()}
	page := newFakePage()
	engine := &Engine{
		Page:   page,
		Layout: layout,
		Config: EngineConfig{Mode: state.ModeWeb, StepHardTimeout: 5 * time.Second, RunHardTimeout: 30 * time.Second},
	}

	require.NoError(t, engine.Bootstrap())
	require.Len(t, page.screenshots, 1)
}

func TestEngine_RunWithoutTeachingStopsOnStuckStep(t *testing.T) {
	layout := &state.RunLayout{RunDir: t.TempDir(), EvidenceDir: t.TempDir()}
	page := newFakePage()
	page.failSelectors["#missing"] = 99 // always fails, never resolves
	engine := &Engine{
		Page:   page,
		Layout: layout,
		Config: EngineConfig{
			Mode:               state.ModeWeb,
			InteractiveTimeout: 50 * time.Millisecond,
			StepHardTimeout:    100 * time.Millisecond,
			RunHardTimeout:     5 * time.Second,
		},
	}

	plan := step.Plan{Steps: []step.Step{
		{Index: 0, Kind: step.KindClickSelector, Selector: "#missing"},
		{Index: 1, Kind: step.KindOpenURL, Target: "https://example.com"},
	}}

	result := engine.Run(context.Background(), plan)

	require.Len(t, result.Outcomes, 1)
	require.Empty(t, page.navigated)
}
