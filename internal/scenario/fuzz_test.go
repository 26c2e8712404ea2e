package scenario

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// FuzzParse feeds arbitrary bytes to both decoders.
func FuzzParse(f *testing.F) {
	f.Add([]byte(loginYAML))
	f.Add([]byte(`{"name":"x","steps":[{"click":{"locator":"#a"}}]}`))
	f.Add([]byte("name: x\nsteps:\n  - assert_visible: {text: /a|b/i}\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, format := range []Format{FormatYAML, FormatJSON} {
			sc, err := Parse(data, format)
			if err != nil {
				assert.Nil(t, sc)
				continue
			}
			assertWellFormed(t, sc)
		}
	})
}

// FuzzParse_Structured builds raw scenario documents from fuzzed data so the
// validation paths are reached more often than with arbitrary bytes.
func FuzzParse_Structured(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		raw := &rawScenario{}
		if err := fuzz.NewConsumer(data).GenerateStruct(raw); err != nil {
			return
		}

		doc, err := yaml.Marshal(raw)
		require.NoError(t, err)

		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Parse panicked: %v\n%s", r, doc)
			}
		}()

		sc, err := Parse(doc, FormatYAML)
		if err != nil {
			return
		}
		assertWellFormed(t, sc)
	})
}

func assertWellFormed(t *testing.T, sc *Scenario) {
	t.Helper()
	require.NotNil(t, sc)
	assert.NotEmpty(t, sc.Name)
	assert.NotEmpty(t, sc.Steps)
	assert.GreaterOrEqual(t, int64(sc.StepTimeout), int64(0))
	for i, step := range sc.Steps {
		assert.NotEmpty(t, step.Action(), "step %d has no action", i+1)
		assert.GreaterOrEqual(t, int64(step.Timeout), int64(0))
		if step.AssertVisible != nil {
			assert.NotEmpty(t, step.AssertVisible.Expectation)
			assert.False(t, step.AssertVisible.Locator.IsZero())
		}
		if step.AssertURL != nil {
			assert.NotEmpty(t, step.AssertURL.Expectation)
		}
	}
}
