// Package filename turns untrusted client file names into names that are safe
// to use as a single path segment inside a user partition.
package filename

import (
	"errors"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrBadFilename    = errors.New("invalid filename")
	ErrDisallowedType = errors.New("file type not allowed")
)

// AllowedExtensions are the accepted document extensions, lowercase without the dot.
var AllowedExtensions = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"doc":  true,
	"docx": true,
}

// TimestampLayout is the sortable prefix prepended to every stored name.
const TimestampLayout = "20060102_150405_"

const maxNameLen = 200

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeName is a sanitized single-segment file name with an allowed extension.
type SafeName string

// Ext returns the lowercase extension without the dot.
func (n SafeName) Ext() string {
	return extOf(string(n))
}

// Sanitize normalizes rawName. It drops NUL bytes and any directory
// components, folds unicode to ASCII, replaces whitespace runs with "_",
// removes every character outside [A-Za-z0-9_.-] and trims leading and
// trailing dots and underscores. Empty results fail with ErrBadFilename and
// names without an allowed extension fail with ErrDisallowedType.
func Sanitize(rawName string) (SafeName, error) {
	name := strings.ReplaceAll(rawName, "\x00", "")
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "/" || name == "." || name == ".." {
		return "", ErrBadFilename
	}

	name = foldASCII(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "", ErrBadFilename
	}

	ext := extOf(name)
	if !AllowedExtensions[ext] {
		return "", ErrDisallowedType
	}

	if len(name) > maxNameLen {
		suffix := "." + name[len(name)-len(ext):]
		name = strings.TrimRight(name[:maxNameLen-len(suffix)], "._") + suffix
	}
	return SafeName(name), nil
}

// StoredName prefixes a safe name with the UTC timestamp of now, producing
// the collision-resistant on-disk identifier "YYYYMMDD_HHMMSS_<name>".
func StoredName(now time.Time, name SafeName) string {
	return now.UTC().Format(TimestampLayout) + string(name)
}

func extOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// foldASCII decomposes accented characters and drops everything non-ASCII.
func foldASCII(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}
