package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/barq/internal/domain"
)

func TestSplitEntrypoint(t *testing.T) {
	module, symbol := splitEntrypoint("handler.main")
	assert.Equal(t, "handler", module)
	assert.Equal(t, "main", symbol)

	module, symbol = splitEntrypoint("main")
	assert.Equal(t, "handler", module)
	assert.Equal(t, "main", symbol)

	module, symbol = splitEntrypoint("pkg.sub.run")
	assert.Equal(t, "pkg.sub", module)
	assert.Equal(t, "run", symbol)
}

func TestJSONToPyLiteral(t *testing.T) {
	literal, err := jsonToPyLiteral(json.RawMessage(`{"x":41,"ok":true,"name":"barq","tags":[1,null]}`))
	require.NoError(t, err)
	assert.Contains(t, literal, `"x": 41`)
	assert.Contains(t, literal, "True")
	assert.Contains(t, literal, `"barq"`)
	assert.Contains(t, literal, "None")
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry("barq-runtime")

	a, err := reg.Resolve(domain.RuntimePython311)
	require.NoError(t, err)
	assert.True(t, a.SupportsWarm())

	a, err = reg.Resolve(domain.RuntimeNode20)
	require.NoError(t, err)
	assert.False(t, a.SupportsWarm())

	a, err = reg.Resolve(domain.RuntimeGo1x)
	require.NoError(t, err)
	assert.False(t, a.SupportsWarm())

	_, err = reg.Resolve(domain.Runtime("ruby3.2"))
	assert.ErrorIs(t, err, ErrUnsupportedRuntime)
}
