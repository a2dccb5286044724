package presence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/visor/internal/catalog"
	"github.com/ayusman/visor/internal/detector"
)

type frame struct {
	t    int64
	face bool
}

func newController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(DefaultConfig(), Selection{
		Model:       catalog.DefaultModel,
		Environment: catalog.DefaultEnvironment,
	})
	require.NoError(t, err)
	return c
}

// feed runs frames through c and returns the timestamps at which the switch fired.
func feed(c *Controller, frames []frame) []int64 {
	face := detector.FrontalFace()
	var fired []int64
	for _, f := range frames {
		var tr *detector.Transform
		if f.face {
			tr = &face
		}
		if c.Observe(f.t, tr) {
			fired = append(fired, f.t)
		}
	}
	return fired
}

func TestController_ScenarioA_SwitchAfterThreshold(t *testing.T) {
	c := newController(t)

	fired := feed(c, []frame{{0, true}, {50, false}, {100, false}, {260, false}})

	assert.Equal(t, []int64{260}, fired)
	assert.Equal(t, AbsentHandled, c.Phase())
	assert.Equal(t, Selection{Model: "guy.glb", Environment: "night"}, c.Selection())
	assert.Nil(t, c.Transform())
}

func TestController_ScenarioB_FaceReturns(t *testing.T) {
	c := newController(t)

	fired := feed(c, []frame{{0, true}, {150, false}, {190, true}})

	assert.Empty(t, fired)
	assert.Equal(t, Present, c.Phase())
	assert.NotNil(t, c.Transform())
	assert.Equal(t, catalog.DefaultModel, c.Selection().Model)
}

func TestController_ScenarioD_NeverSeen(t *testing.T) {
	c := newController(t)

	var frames []frame
	for i := int64(0); i < 100; i++ {
		frames = append(frames, frame{i * 100, false})
	}

	assert.Empty(t, feed(c, frames))
	assert.Equal(t, NeverSeen, c.Phase())
	assert.Equal(t, 0, c.Switches())
}

func TestController_ThresholdIsStrict(t *testing.T) {
	c := newController(t)

	fired := feed(c, []frame{{0, true}, {100, false}, {200, false}})
	assert.Empty(t, fired, "exactly 200ms must not fire")

	fired = feed(c, []frame{{201, false}})
	assert.Equal(t, []int64{201}, fired)
}

func TestController_FirstAbsentFrameOnlyClears(t *testing.T) {
	c := newController(t)

	// The frame leaving Present only clears the transform; the threshold is
	// checked from the next absent frame on.
	fired := feed(c, []frame{{0, true}, {500, false}})
	assert.Empty(t, fired)
	assert.Equal(t, AbsentPending, c.Phase())

	fired = feed(c, []frame{{516, false}})
	assert.Equal(t, []int64{516}, fired)
}

func TestController_IdempotentAfterHandled(t *testing.T) {
	c := newController(t)
	feed(c, []frame{{0, true}, {10, false}, {300, false}})
	require.Equal(t, AbsentHandled, c.Phase())
	sel := c.Selection()

	var changes int
	c.OnChange(func(Snapshot) { changes++ })

	fired := feed(c, []frame{{400, false}, {900, false}, {5000, false}})

	assert.Empty(t, fired)
	assert.Equal(t, sel, c.Selection())
	assert.Equal(t, 0, changes)
	assert.Equal(t, 1, c.Switches())
}

func TestController_RecoversAfterHandled(t *testing.T) {
	c := newController(t)

	fired := feed(c, []frame{
		{0, true}, {10, false}, {300, false},
		{400, true},
		{450, false}, {700, false},
	})

	assert.Equal(t, []int64{300, 700}, fired)
	// Two toggles return to the starting pair values.
	assert.Equal(t, Selection{Model: catalog.DefaultModel, Environment: catalog.DefaultEnvironment}, c.Selection())
}

func TestController_TransformMirrorsLatestFrame(t *testing.T) {
	c := newController(t)
	a := detector.Translation(1, 2, -30)
	b := detector.Translation(3, 4, -40)

	c.Observe(0, &a)
	require.NotNil(t, c.Transform())
	assert.Equal(t, a, *c.Transform())

	c.Observe(16, &b)
	assert.Equal(t, b, *c.Transform())

	b[12] = 99
	assert.Equal(t, 3.0, c.Transform()[12], "controller must keep its own copy")

	c.Observe(33, nil)
	assert.Nil(t, c.Transform())
}

func TestController_AutoSwitchOutsidePair(t *testing.T) {
	c, err := NewController(DefaultConfig(), Selection{Model: "visor.glb", Environment: "city"})
	require.NoError(t, err)

	feed(c, []frame{{0, true}, {10, false}, {300, false}})

	assert.Equal(t, Selection{Model: catalog.ModelPair().A, Environment: catalog.EnvironmentPair().A}, c.Selection())
}

func TestController_ManualCycling(t *testing.T) {
	c := newController(t)
	envs := catalog.Environments()
	models := catalog.Models()

	c.NextEnvironment()
	assert.Equal(t, envs.Next(catalog.DefaultEnvironment), c.Selection().Environment)
	c.PreviousEnvironment()
	assert.Equal(t, catalog.DefaultEnvironment, c.Selection().Environment)

	c.PreviousModel()
	assert.Equal(t, models.Last(), c.Selection().Model)
	c.NextModel()
	assert.Equal(t, models.First(), c.Selection().Model)

	assert.Equal(t, NeverSeen, c.Phase(), "cycling must not touch presence")
}

func TestController_CyclingDoesNotDisturbPresence(t *testing.T) {
	c := newController(t)
	feed(c, []frame{{0, true}, {50, false}})

	c.NextModel()
	c.NextEnvironment()
	assert.Equal(t, AbsentPending, c.Phase())

	fired := feed(c, []frame{{260, false}})
	assert.Equal(t, []int64{260}, fired)
}

func TestController_Notifications(t *testing.T) {
	c := newController(t)
	var got []Snapshot
	c.OnChange(func(s Snapshot) { got = append(got, s) })

	feed(c, []frame{{0, true}, {50, false}, {100, false}, {260, false}})
	c.NextEnvironment()

	require.Len(t, got, 4)
	assert.Equal(t, Present, got[0].Phase)
	assert.NotNil(t, got[0].Transform)
	assert.Equal(t, AbsentPending, got[1].Phase)
	assert.Nil(t, got[1].Transform)
	assert.Equal(t, AbsentHandled, got[2].Phase)
	assert.Equal(t, "night", got[2].Selection.Environment)
	assert.Equal(t, catalog.Environments().Next("night"), got[3].Selection.Environment)
}

func TestController_SingleItemCatalogDoesNotNotify(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models = catalog.New("only.glb")
	c, err := NewController(cfg, Selection{Model: "only.glb", Environment: catalog.DefaultEnvironment})
	require.NoError(t, err)

	var changes int
	c.OnChange(func(Snapshot) { changes++ })
	c.NextModel()

	assert.Equal(t, 0, changes)
}

func TestNewController_RejectsUnknownSelection(t *testing.T) {
	_, err := NewController(DefaultConfig(), Selection{Model: "nope.glb", Environment: catalog.DefaultEnvironment})
	assert.ErrorIs(t, err, ErrNotInCatalog)

	_, err = NewController(DefaultConfig(), Selection{Model: catalog.DefaultModel, Environment: "mars"})
	assert.ErrorIs(t, err, ErrNotInCatalog)
}

func TestNewController_DefaultThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThresholdMs = 0
	c, err := NewController(cfg, Selection{Model: catalog.DefaultModel, Environment: catalog.DefaultEnvironment})
	require.NoError(t, err)

	assert.Empty(t, feed(c, []frame{{0, true}, {10, false}, {200, false}}))
	assert.Len(t, feed(c, []frame{{201, false}}), 1)
}

// expectedSwitches counts qualifying absence runs: a run that follows a
// present frame fires once if any absent frame after the first one in the run
// is more than the threshold past the last present frame.
func expectedSwitches(frames []frame) int {
	count := 0
	seen := false
	var lastSeen int64
	runLen := 0
	fired := false
	for _, f := range frames {
		if f.face {
			seen = true
			lastSeen = f.t
			runLen = 0
			fired = false
			continue
		}
		if !seen {
			continue
		}
		runLen++
		if runLen >= 2 && !fired && f.t-lastSeen > AbsenceThresholdMs {
			fired = true
			count++
		}
	}
	return count
}

func TestController_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		var frames []frame
		ts := int64(0)
		for j := 0; j < 80; j++ {
			ts += int64(1 + rng.Intn(90))
			frames = append(frames, frame{ts, rng.Intn(3) == 0})
		}

		c := newController(t)
		fired := feed(c, frames)

		assert.Len(t, fired, expectedSwitches(frames), "sequence %d", i)
		assert.True(t, catalog.Models().Contains(c.Selection().Model))
		assert.True(t, catalog.Environments().Contains(c.Selection().Environment))
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "never_seen", NeverSeen.String())
	assert.Equal(t, "present", Present.String())
	assert.Equal(t, "absent_pending", AbsentPending.String())
	assert.Equal(t, "absent_handled", AbsentHandled.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}
