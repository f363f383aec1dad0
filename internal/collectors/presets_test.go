package collectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets_Sorted(t *testing.T) {
	assert.Equal(t, []string{"all", "footprint", "investigate", "passive"}, Presets())
}

func TestGetPreset_Unknown(t *testing.T) {
	_, err := GetPreset("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestGetPreset_AllResolvable(t *testing.T) {
	// Every collector a preset names must exist in the registry.
	for _, name := range Presets() {
		p, err := GetPreset(name)
		require.NoError(t, err)
		cols, err := CreateSet(p.Collectors)
		require.NoError(t, err, "preset %s", name)
		assert.NotEmpty(t, cols)
	}
}

func TestGetPreset_AllMeansEveryCollector(t *testing.T) {
	p, err := GetPreset("all")
	require.NoError(t, err)
	assert.Empty(t, p.Collectors)

	cols, err := CreateSet(p.Collectors)
	require.NoError(t, err)
	assert.Len(t, cols, len(IDs()))
}

func TestGetPreset_ReturnsCopy(t *testing.T) {
	p1, err := GetPreset("passive")
	require.NoError(t, err)
	p1.Collectors[0] = "tampered"

	p2, err := GetPreset("passive")
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", p2.Collectors[0])
}

func TestPassivePresetAvoidsTargetContact(t *testing.T) {
	p, err := GetPreset("passive")
	require.NoError(t, err)
	for _, id := range p.Collectors {
		assert.NotContains(t, []string{"portscan", "webfetch", "dnsresolve", "dnsraw", "sslcert", "cohost"}, id)
	}
}
