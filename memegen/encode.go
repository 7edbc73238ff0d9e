package memegen

import "strings"

// encodePasses are applied in order; later rules must not re-match the output
// of earlier ones, so the table order is load-bearing.
var encodePasses = [...][2]string{
	{"-", "--"},
	{"_", "__"},
	{" ", "_"},
	{"?", "~q"},
	{"&", "~a"},
	{"%", "~p"},
	{"#", "~h"},
	{"/", "~s"},
	{"\\", "~b"},
	{`"`, "''"},
}

// Blank is the provider's marker for an empty caption half.
const Blank = "_"

// Encode maps arbitrary text to memegen's URL-path encoding. Leading and
// trailing whitespace is trimmed first; empty input encodes to Blank.
func Encode(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return Blank
	}
	for _, p := range encodePasses {
		text = strings.ReplaceAll(text, p[0], p[1])
	}
	return text
}
