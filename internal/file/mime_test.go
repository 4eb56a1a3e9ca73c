package file_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropserve/service/internal/file"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		extension string
		want      string
	}{
		// Hardcoded overrides: generic tables misclassify .ts as an MPEG
		// transport stream, and .mp4 is missing on some platforms.
		{"ts", "text/typescript"},
		{"mp4", "video/mp4"},
		{"json", "application/json"},
		{"", "application/octet-stream"},
		{"nosuchext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run("."+tt.extension, func(t *testing.T) {
			require.Equal(t, tt.want, file.ContentType(tt.extension))
		})
	}

	// Lookup-table results may carry a charset parameter.
	require.True(t, strings.HasPrefix(file.ContentType("txt"), "text/plain"))
}
