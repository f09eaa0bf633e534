package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadata(t *testing.T) {
	meta := map[string]string{"inputs": "96", "model": "N-VST", "bad": "x"}

	v, ok := MetadataString(meta, "missing", "model")
	assert.True(t, ok)
	assert.Equal(t, "N-VST", v)
	_, ok = MetadataString(nil, "model")
	assert.False(t, ok)

	n, ok := MetadataInt(meta, "bad", "inputs")
	assert.True(t, ok, "non numeric keys are skipped")
	assert.Equal(t, 96, n)

	assert.Equal(t, 16, MetadataIntOr(meta, 16, "outputs"))
	assert.Equal(t, 96, MetadataIntOr(meta, 16, "outputs", "inputs"))
	assert.Equal(t, "public", MetadataStringOr(nil, "public", "snmp_community"))
}

func TestSNMPResult(t *testing.T) {
	results := map[string]interface{}{
		".1.3.6.1.2.1.1.5.0": []byte("oxc-1"),
		"1.3.6.1.2.1.1.3.0":  uint32(100),
	}

	tests := []struct {
		oid string
		ok  bool
	}{
		{"1.3.6.1.2.1.1.5.0", true},
		{".1.3.6.1.2.1.1.5.0", true},
		{".1.3.6.1.2.1.1.3.0", true},
		{"1.3.6.1.2.1.1.1.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.oid, func(t *testing.T) {
			_, ok := SNMPResult(results, tt.oid)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSNMPValues(t *testing.T) {
	s, ok := SNMPString([]byte("Polatis"))
	assert.True(t, ok)
	assert.Equal(t, "Polatis", s)
	_, ok = SNMPString(42)
	assert.False(t, ok)

	for _, v := range []interface{}{uint(7), uint32(7), uint64(7), 7, int64(7)} {
		n, ok := SNMPUint(v)
		assert.True(t, ok, "%T", v)
		assert.EqualValues(t, 7, n)
	}
	_, ok = SNMPUint(-1)
	assert.False(t, ok)
	_, ok = SNMPUint("7")
	assert.False(t, ok)
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "(@1,2),(@97,98)", "(@1,2),(@97,98)"},
		{"colored", "\x1b[32mPolatis\x1b[0m,N-VST", "Polatis,N-VST"},
		{"cursor and padding", "\x1b[2K  (-3.5,-99.99)\r\n", "(-3.5,-99.99)"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanResponse(tt.input))
		})
	}
}
