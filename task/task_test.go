package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/field"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

type fakeDispatcher struct {
	actions   []string
	pursues   []string
	drops     []identity.Handle
	slept     []time.Duration
	logged    []string
	nextSubID identity.UniqueId
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{nextSubID: identity.New()}
}

func (d *fakeDispatcher) DispatchAction(taskID int, actionName string, request *message.Message, resourceLocks []string) {
	d.actions = append(d.actions, actionName)
}

func (d *fakeDispatcher) PursueSub(goalName string, params *message.Message, parentIntentionID identity.UniqueId, persistent bool) identity.UniqueId {
	d.pursues = append(d.pursues, goalName)
	return d.nextSubID
}

func (d *fakeDispatcher) EmitDrop(handle identity.Handle, mode string, reason string) {
	d.drops = append(d.drops, handle)
}

func (d *fakeDispatcher) Sleep(taskID int, dur time.Duration) {
	d.slept = append(d.slept, dur)
}

func (d *fakeDispatcher) Log(text string) {
	d.logged = append(d.logged, text)
}

func newExecContext(d Dispatcher) *ExecContext {
	return &ExecContext{
		Belief:      belief.New(),
		Dispatcher:  d,
		SearchOrder: belief.DefaultSearchOrder,
		IntentionID: identity.New(),
	}
}

func TestBuilderChainsDefaultSuccessors(t *testing.T) {
	b := NewBuilder()
	b.Add(NewPrintTask("a")).Add(NewPrintTask("b")).Add(NewPrintTask("c"))
	co := b.Build()

	assert.Equal(t, 0, co.Tasks[0].Base().ID)
	// each task's successTarget defaults to the next task's id
	assert.Equal(t, 1, co.Tasks[0].Base().SuccessTarget)
	assert.Equal(t, 2, co.Tasks[1].Base().SuccessTarget)
	assert.Equal(t, Terminal, co.Tasks[2].Base().SuccessTarget)
}

func TestPrintTaskCoroutineRunsToCompletion(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	b := NewBuilder()
	b.Add(NewPrintTask("hello")).Add(NewPrintTask("world"))
	co := b.Build()

	co.Tick(ec)
	assert.False(t, co.Finished())
	co.Tick(ec)
	assert.True(t, co.Finished())
	assert.True(t, co.Succeeded())
	assert.Equal(t, []string{"hello", "world"}, d.logged)
}

func TestConditionalTaskBranchesOnPredicate(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	b := NewBuilder()
	cond := NewConditionalTask(func(*belief.Context) bool { return false })
	onFail := NewPrintTask("failed")
	onSuccess := NewPrintTask("succeeded")
	b.Add(cond)
	b.Add(onSuccess)
	b.Add(onFail)
	cond.Base().SuccessTarget = 1
	cond.Base().FailTarget = 2
	onSuccess.Base().SuccessTarget = Terminal
	onFail.Base().SuccessTarget = Terminal
	co := NewCoroutine([]Task{cond, onSuccess, onFail})

	co.Tick(ec) // evaluates conditional, moves to failTarget
	assert.Equal(t, 2, co.Current)
	co.Tick(ec) // runs onFail
	assert.True(t, co.Finished())
	assert.Equal(t, []string{"failed"}, d.logged)
}

func TestYieldUntilTaskStaysYieldUntilTrue(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)
	ec.Belief.SetBelief(func() *message.Message {
		s := message.Schema{Name: "Flag", Fields: []field.FieldSpec{{Name: "ready", Type: string(field.Bool)}}}
		m := message.New(s)
		m.Set("ready", field.NewBool(false))
		return m
	}())

	yt := NewYieldUntilTask(func(ctx *belief.Context) bool {
		v, ok := ctx.Get("ready", belief.DefaultSearchOrder)
		if !ok {
			return false
		}
		b, _ := v.AsBool()
		return b
	})
	co := NewCoroutine([]Task{yt})

	co.Tick(ec)
	assert.False(t, co.Finished())
	assert.Equal(t, Yield, co.State)

	m, _ := ec.Belief.Belief("Flag")
	m.Set("ready", field.NewBool(true))

	co.Tick(ec)
	assert.True(t, co.Finished())
	assert.True(t, co.Succeeded())
}

func TestActionTaskWaitBlocksUntilComplete(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	at := NewActionTask("DoCount", message.Schema{}, []string{"Battery"})
	at.Base().WaitFlag = true
	co := NewCoroutine([]Task{at})

	co.Tick(ec)
	assert.Equal(t, Wait, co.State)
	assert.False(t, co.Finished())
	assert.Equal(t, []string{"DoCount"}, d.actions)

	co.Complete(at.Base().ID, Succeeded)
	assert.True(t, co.Finished())
}

func TestActionTaskAsyncDoesNotBlockButTracksOutstanding(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	at := NewActionTask("FireAndForget", message.Schema{}, nil)
	co := NewCoroutine([]Task{at})

	co.Tick(ec)
	assert.True(t, co.Current == Terminal, "async task advances the coroutine immediately")
	assert.False(t, co.Finished(), "but Finished must wait for the async counter")

	co.Complete(at.Base().ID, Succeeded)
	assert.True(t, co.Finished())
}

func TestPursueTaskNoWaitProceedsImmediately(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	pt := NewPursueTask("AchieveMission", message.Schema{}, false, true)
	co := NewCoroutine([]Task{pt})

	co.Tick(ec)
	assert.True(t, co.Finished())
	assert.Equal(t, []string{"AchieveMission"}, d.pursues)
}

func TestPursueTaskWaitSuspendsUntilPromiseResolves(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	pt := NewPursueTask("AchieveMission", message.Schema{}, false, false)
	co := NewCoroutine([]Task{pt})

	co.Tick(ec)
	assert.Equal(t, Wait, co.State)
	assert.False(t, co.Finished())

	co.Complete(pt.Base().ID, Succeeded)
	assert.True(t, co.Finished())
	assert.True(t, co.Succeeded())
}

func TestSleepTaskResumesOnTimerComplete(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	st := NewSleepTask(1500 * time.Millisecond)
	co := NewCoroutine([]Task{st})

	co.Tick(ec)
	require.Len(t, d.slept, 1)
	assert.Equal(t, 1500*time.Millisecond, d.slept[0])
	assert.False(t, co.Finished())

	co.Complete(st.Base().ID, Succeeded)
	assert.True(t, co.Finished())
}

func TestDropTaskEmitsDropAndCompletes(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	handle := identity.NewHandle("AchieveMission")
	dt := NewDropTask(handle, "NORMAL", "superseded")
	co := NewCoroutine([]Task{dt})

	co.Tick(ec)
	assert.True(t, co.Finished())
	require.Len(t, d.drops, 1)
	assert.True(t, d.drops[0].Equal(handle))
}

func TestBindParametersSeedsMapsAndOverwritesLiterals(t *testing.T) {
	d := newFakeDispatcher()
	ec := newExecContext(d)

	schema := message.Schema{Name: "MissionParams", Fields: []field.FieldSpec{
		{Name: "mission_id", Type: string(field.I32)},
		{Name: "label", Type: string(field.String)},
	}}
	ec.Belief.SetBelief(func() *message.Message {
		s := message.Schema{Name: "CurrentId", Fields: []field.FieldSpec{{Name: "current_id", Type: string(field.I32)}}}
		m := message.New(s)
		m.Set("current_id", field.NewI32(20))
		return m
	}())

	mapped := map[string]string{"mission_id": "current_id"}
	literal := map[string]field.Value{"label": field.NewString("forced")}

	msg := BindParameters(schema, ec, mapped, literal)
	require.NotNil(t, msg)

	v, _ := msg.Get("mission_id")
	got, _ := v.AsI64()
	assert.Equal(t, int64(20), got)

	lv, _ := msg.Get("label")
	lgot, _ := lv.AsString()
	assert.Equal(t, "forced", lgot)
}
