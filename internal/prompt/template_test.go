package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderScalar(t *testing.T) {
	vars := Vars{
		"goal":    String("Ship the MVP"),
		"context": String("Earlier discussion"),
	}

	rendered := Render("Goal: {{ goal }}\nContext: {{ context }}", vars)
	assert.Equal(t, "Goal: Ship the MVP\nContext: Earlier discussion", rendered)
}

func TestRenderWhitespaceTolerance(t *testing.T) {
	vars := Vars{"goal": String("Ship it")}

	assert.Equal(t, "Ship it", Render("{{goal}}", vars))
	assert.Equal(t, "Ship it", Render("{{  goal  }}", vars))
	assert.Equal(t, "Ship it", Render("{{ goal}}", vars))
}

func TestRenderNestedAccess(t *testing.T) {
	vars := Vars{
		"role": Map(map[string]string{"name": "John Doe", "title": "Senior Developer"}),
	}

	rendered := Render("You are advising {{ role['name'] }}, the {{ role['title'] }}.", vars)
	assert.Equal(t, "You are advising John Doe, the Senior Developer.", rendered)
}

func TestRenderLeavesUnresolvedPlaceholders(t *testing.T) {
	vars := Vars{"goal": String("Ship it")}

	rendered := Render("{{ goal }} / {{ unknown }} / {{ role['name'] }}", vars)
	assert.Equal(t, "Ship it / {{ unknown }} / {{ role['name'] }}", rendered)
}

func TestRenderRepeatedPlaceholder(t *testing.T) {
	vars := Vars{"goal": String("X")}

	rendered := Render("{{ goal }} and {{ goal }} again", vars)
	assert.Equal(t, "X and X again", rendered)
}

func TestValidateMissingTopLevel(t *testing.T) {
	missing := Validate("{{ goal }} {{ history }}", []string{"goal", "history"}, Vars{
		"goal": String("Ship it"),
	})
	assert.Equal(t, []string{"history"}, missing)
}

func TestValidateMissingNestedKeys(t *testing.T) {
	template := "Advise {{ role['name'] }} ({{ role['title'] }}) on {{ role['focus'] }}"
	provided := Vars{
		"role": Map(map[string]string{"name": "John"}),
	}

	missing := Validate(template, []string{"role"}, provided)
	assert.ElementsMatch(t, []string{"role['title']", "role['focus']"}, missing)
}

func TestValidateComplete(t *testing.T) {
	template := "Advise {{ role['name'] }} on {{ goal }}"
	provided := Vars{
		"goal": String("Ship it"),
		"role": Map(map[string]string{"name": "John"}),
	}

	assert.Empty(t, Validate(template, []string{"goal", "role"}, provided))
}

func TestValidateIgnoresUndeclaredTemplateVars(t *testing.T) {
	// Only declared expected vars are checked, even if the template
	// references more
	missing := Validate("{{ goal }} {{ extra }}", []string{"goal"}, Vars{
		"goal": String("Ship it"),
	})
	assert.Empty(t, missing)
}

func TestValueUnmarshalJSON(t *testing.T) {
	var vars Vars
	raw := `{
		"goal": "Ship it",
		"role": {"name": "John", "level": 3, "active": true},
		"count": 7,
		"ratio": 0.5
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &vars))

	assert.Equal(t, "Ship it", vars["goal"].String())
	assert.True(t, vars["role"].IsMap())
	assert.Equal(t, "7", vars["count"].String())
	assert.Equal(t, "0.5", vars["ratio"].String())

	rendered := Render("{{ role['name'] }} level {{ role['level'] }} active {{ role['active'] }}", vars)
	assert.Equal(t, "John level 3 active true", rendered)
}

func TestSampleVariables(t *testing.T) {
	samples := SampleVariables([]string{"goal", "role", "custom_thing"})

	assert.Equal(t, "Build a mobile app for task management", samples["goal"])
	assert.Contains(t, samples["role"], "John Doe")
	assert.Equal(t, "Sample value for custom_thing", samples["custom_thing"])
}
