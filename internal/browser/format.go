package browser

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// Icon names follow freedesktop icon theme naming.
const (
	IconFolder  = "folder"
	IconGeneric = "text-x-generic"
)

var sizeSuffixes = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}

// FormatSize renders a byte count with binary magnitude suffixes. Whole
// values have no decimals, anything else gets exactly one.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeSuffixes)-1 {
		v /= 1024
		i++
	}
	// 1023.95 and up would print as "1024.0".
	if v != math.Trunc(v) && math.Round(v*10) >= 10240 && i < len(sizeSuffixes)-1 {
		v = 1
		i++
	}

	if v == math.Trunc(v) {
		return humanize.Ftoa(v) + " " + sizeSuffixes[i]
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + sizeSuffixes[i]
}

func itemsLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return humanize.Comma(int64(n)) + " items"
}

func modifiedLabel(mod, now time.Time) string {
	return humanize.RelTime(mod, now, "ago", "from now")
}

func detectContentType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}

// iconFor picks a generic icon for a MIME type.
func iconFor(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")

	switch base {
	case "application/zip", "application/gzip", "application/x-tar", "application/x-xz",
		"application/x-bzip2", "application/x-7z-compressed", "application/zstd":
		return "package-x-generic"
	case "application/x-executable", "application/x-elf", "application/x-sharedlib",
		"application/vnd.microsoft.portable-executable", "application/x-mach-binary":
		return "application-x-executable"
	case "application/pdf":
		return "x-office-document"
	}

	top, _, _ := strings.Cut(base, "/")
	switch top {
	case "image":
		return "image-x-generic"
	case "audio":
		return "audio-x-generic"
	case "video":
		return "video-x-generic"
	case "font":
		return "font-x-generic"
	default:
		return IconGeneric
	}
}
