package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1 MiB"},
		{1024*1024 - 1, "1 MiB"},
		{1048473, "1023.9 KiB"},
		{1<<30 - 1, "1 GiB"},
		{5*1024*1024 + 512*1024, "5.5 MiB"},
		{3 * 1024 * 1024 * 1024, "3 GiB"},
		{1 << 40, "1 TiB"},
		{1 << 50, "1 PiB"},
		{1 << 60, "1 EiB"},
		{-5, "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.n))
		})
	}
}

func TestItemsLabel(t *testing.T) {
	assert.Equal(t, "0 items", itemsLabel(0))
	assert.Equal(t, "1 item", itemsLabel(1))
	assert.Equal(t, "12,345 items", itemsLabel(12345))
}

func TestIconFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"text/plain; charset=utf-8", "text-x-generic"},
		{"image/png", "image-x-generic"},
		{"audio/mpeg", "audio-x-generic"},
		{"video/mp4", "video-x-generic"},
		{"font/woff2", "font-x-generic"},
		{"application/zip", "package-x-generic"},
		{"application/x-elf", "application-x-executable"},
		{"application/pdf", "x-office-document"},
		{"application/octet-stream", "text-x-generic"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, iconFor(tt.contentType))
		})
	}
}
