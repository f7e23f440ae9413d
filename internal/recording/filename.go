// Package recording builds on-disk recording filenames for the live stream
// core's recording tee.
package recording

import (
	"fmt"
	"strings"
	"time"
)

// unsafeToFullWidth maps each path-unsafe character to its full-width
// Unicode equivalent: / \ : * ? " < > |
var unsafeToFullWidth = map[rune]rune{
	'/':  '／',
	'\\': '＼',
	':':  '：',
	'*':  '＊',
	'?':  '？',
	'"':  '”',
	'<':  '＜',
	'>':  '＞',
	'|':  '｜',
}

// noProgramTitle is used when the channel has no current program.
const noProgramTitle = "番組情報なし"

// SanitizeFilename replaces every path-unsafe character in s with its
// full-width Unicode equivalent so the result is always safe to use as a
// single path segment.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if replacement, ok := unsafeToFullWidth[r]; ok {
			b.WriteRune(replacement)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildFilename builds "{channel}_{title}_{YYYYMMDD_HHMMSS}.ts".
// programTitle may be empty, in which case the no-program-info
// placeholder is used.
func BuildFilename(channelName, programTitle string, start time.Time) string {
	if programTitle == "" {
		programTitle = noProgramTitle
	}
	return fmt.Sprintf("%s_%s_%s.ts",
		SanitizeFilename(channelName),
		SanitizeFilename(programTitle),
		start.Format("20060102_150405"),
	)
}

// PSCSibling returns the .psc path sharing tsPath's stem.
func PSCSibling(tsPath string) string {
	if strings.HasSuffix(tsPath, ".ts") {
		return strings.TrimSuffix(tsPath, ".ts") + ".psc"
	}
	return tsPath + ".psc"
}
