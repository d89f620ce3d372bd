package step

import (
	"testing"

	"github.com/brennhill/oi-web-bridge/internal/state"
	"github.com/stretchr/testify/require"
)

func TestParseTask_LiteralMarkers(t *testing.T) {
	task := `open https://example.com/app
click selector:"#submit"
fill selector:"#email" value:"a@b.com"
wait text:"Welcome"
verify visible selector:"#dashboard"`

	plan, err := ParseTask(task, state.ModeWeb, state.Flags{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 5)
	require.Equal(t, KindOpenURL, plan.Steps[0].Kind)
	require.Equal(t, "https://example.com/app", plan.Steps[0].Target)
	require.Equal(t, KindClickSelector, plan.Steps[1].Kind)
	require.Equal(t, "#submit", plan.Steps[1].Selector)
	require.Equal(t, KindFill, plan.Steps[2].Kind)
	require.Equal(t, "a@b.com", plan.Steps[2].Value)
	require.Equal(t, KindWaitText, plan.Steps[3].Kind)
	require.Equal(t, KindVerifyVisible, plan.Steps[4].Kind)

	for i, s := range plan.Steps {
		require.Equal(t, i, s.Index)
		require.Equal(t, OriginTask, s.Origin)
	}
}

func TestParseTask_NaturalLanguageFallback(t *testing.T) {
	task := `abre example.com.
haz click en boton "Aceptar"`

	plan, err := ParseTask(task, state.ModeWeb, state.Flags{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, "example.com", plan.Steps[0].Target, "trailing period must be stripped")
	require.Equal(t, KindClickText, plan.Steps[1].Kind)
	require.Equal(t, "Aceptar", plan.Steps[1].Target)
}

func TestParseTask_CommaJoinedSingleLine(t *testing.T) {
	task := `abre http://localhost:5173, haz click en botón "Entrar demo"`

	plan, err := ParseTask(task, state.ModeWeb, state.Flags{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2, "a comma-joined single line must still split into one step per clause")
	require.Equal(t, KindOpenURL, plan.Steps[0].Kind)
	require.Equal(t, "http://localhost:5173", plan.Steps[0].Target)
	require.Equal(t, KindClickText, plan.Steps[1].Kind)
	require.Equal(t, "Entrar demo", plan.Steps[1].Target)
}

func TestParseTask_DemoLoginAutoInsertWithDedup(t *testing.T) {
	plan, err := ParseTask(`click "Entrar demo"`, state.ModeWeb, state.Flags{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1, "explicit demo-login click must not be duplicated")

	plan2, err := ParseTask(`click "Sign in"`, state.ModeWeb, state.Flags{})
	require.NoError(t, err)
	require.Len(t, plan2.Steps, 2, "missing demo login still gets auto-inserted")
	require.Equal(t, OriginAuto, plan2.Steps[0].Origin)
	require.Equal(t, "Entrar demo", plan2.Steps[0].Target)
}

func TestParseTask_EmptyPlan(t *testing.T) {
	_, err := ParseTask("   \n  ", state.ModeWeb, state.Flags{})
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, "empty-plan", pe.Kind)
}

func TestParseTask_Unparseable(t *testing.T) {
	_, err := ParseTask("do something vague with no marker", state.ModeWeb, state.Flags{})
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, "unparseable-task", pe.Kind)
}

func TestSerializeParseRoundTrip(t *testing.T) {
	plan, err := ParseTask(`open https://example.com`, state.ModeWeb, state.Flags{})
	require.NoError(t, err)

	data, err := Serialize(plan)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, plan, got)
}
