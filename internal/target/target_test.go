package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		typ     string
		wantErr bool
		want    string
	}{
		{"valid domain", "Example.COM", "INTERNET_NAME", false, "example.com"},
		{"idn domain", "bücher.example", "INTERNET_NAME", false, "xn--bcher-kva.example"},
		{"valid ipv4", "192.0.2.1", "IP_ADDRESS", false, "192.0.2.1"},
		{"valid ipv6", "2001:DB8::1", "IPV6_ADDRESS", false, "2001:db8::1"},
		{"valid netblock", "192.0.2.0/24", "NETBLOCK_OWNER", false, "192.0.2.0/24"},
		{"email lowercased", "Admin@Example.com", "EMAILADDR", false, "admin@example.com"},
		{"empty value", "", "INTERNET_NAME", true, ""},
		{"bad type", "example.com", "WIDGET", true, ""},
		{"bad address", "not-an-ip", "IP_ADDRESS", true, ""},
		{"bad netblock", "192.0.2.1", "NETBLOCK_OWNER", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt, err := New(tt.value, tt.typ)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tgt.Value())
			assert.Equal(t, tt.typ, tgt.Type())
		})
	}
}

func TestGuessType(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"example.com", "INTERNET_NAME"},
		{"www.example.co.uk", "INTERNET_NAME"},
		{"192.0.2.1", "IP_ADDRESS"},
		{"2001:db8::1", "IPV6_ADDRESS"},
		{"192.0.2.0/24", "NETBLOCK_OWNER"},
		{"2001:db8::/64", "NETBLOCKV6_OWNER"},
		{"admin@example.com", "EMAILADDR"},
		{"+12025551234", "PHONE_NUMBER"},
		{`"John Smith"`, "HUMAN_NAME"},
		{`"jsmith"`, "USERNAME"},
		{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "BITCOIN_ADDRESS"},
		{"%%%", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessType(tt.value))
		})
	}
}

func TestSetAlias_Idempotent(t *testing.T) {
	tgt, err := New("example.com", "INTERNET_NAME")
	require.NoError(t, err)

	tgt.SetAlias("192.0.2.1", "IP_ADDRESS")
	tgt.SetAlias("192.0.2.1", "IP_ADDRESS")
	tgt.SetAlias("WWW.Example.com", "INTERNET_NAME")
	tgt.SetAlias("", "IP_ADDRESS")

	aliases := tgt.Aliases()
	require.Len(t, aliases, 2)
	assert.Contains(t, aliases, Alias{Value: "192.0.2.1", Type: "IP_ADDRESS"})
	assert.Contains(t, aliases, Alias{Value: "www.example.com", Type: "INTERNET_NAME"})
}

func TestNamesAndAddresses(t *testing.T) {
	tgt, err := New("example.com", "INTERNET_NAME")
	require.NoError(t, err)
	tgt.SetAlias("www.example.com", "INTERNET_NAME")
	tgt.SetAlias("192.0.2.1", "IP_ADDRESS")
	tgt.SetAlias("2001:db8::1", "IPV6_ADDRESS")

	assert.ElementsMatch(t, []string{"example.com", "www.example.com"}, tgt.Names())
	assert.ElementsMatch(t, []string{"192.0.2.1", "2001:db8::1"}, tgt.Addresses())
}

func TestNames_EmailTarget(t *testing.T) {
	tgt, err := New("admin@example.com", "EMAILADDR")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, tgt.Names())
}

func TestMatches_Names(t *testing.T) {
	tgt, err := New("example.com", "INTERNET_NAME")
	require.NoError(t, err)
	tgt.SetAlias("192.0.2.1", "IP_ADDRESS")

	tests := []struct {
		name            string
		value           string
		includeChildren bool
		includeParents  bool
		want            bool
	}{
		{"exact", "example.com", false, false, true},
		{"case folded", "EXAMPLE.com", false, false, true},
		{"child excluded", "www.example.com", false, false, false},
		{"child included", "www.example.com", true, false, true},
		{"parent excluded", "com", false, false, false},
		{"parent included", "com", false, true, true},
		{"unrelated", "other.org", true, true, false},
		{"aliased address", "192.0.2.1", false, false, true},
		{"unknown address", "198.51.100.1", true, true, false},
		{"empty", "", true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tgt.Matches(tt.value, tt.includeChildren, tt.includeParents))
		})
	}
}

func TestMatches_NetblockContainment(t *testing.T) {
	tgt, err := New("192.0.2.0/24", "NETBLOCK_OWNER")
	require.NoError(t, err)

	assert.True(t, tgt.Matches("192.0.2.77", false, false))
	assert.False(t, tgt.Matches("198.51.100.1", false, false))
}

func TestMatches_UnstructuredTargetsAcceptEverything(t *testing.T) {
	for _, typ := range []string{"HUMAN_NAME", "PHONE_NUMBER", "USERNAME", "COMPANY_NAME"} {
		tgt, err := New("anything", typ)
		require.NoError(t, err)
		assert.True(t, tgt.Matches("whatever", false, false), typ)
	}
}
