package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "national", raw: "98765 43210", want: "+919876543210"},
		{name: "leading zero", raw: "09876543210", want: "+919876543210"},
		{name: "international", raw: "+91 98765-43210", want: "+919876543210"},
		{name: "other country", raw: "+44 20 7946 0958", want: "+442079460958"},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "garbage", raw: "abc", wantErr: true},
		{name: "too short", raw: "12345", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, "IN")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSame(t *testing.T) {
	assert.True(t, Same("9876543210", "+919876543210", "IN"))
	assert.False(t, Same("9876543210", "9876543211", "IN"))
	assert.False(t, Same("", "", "IN"))
}

func TestWhatsAppParts(t *testing.T) {
	cc, n, err := WhatsAppParts("+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "+91", cc)
	assert.Equal(t, "9876543210", n)
}
