// Package parse extracts candidate titles, episode markers, and size hints
// from arbitrary video filenames. Everything here is a pure function over
// the filename string; ambiguous names yield a not-ok result instead of an
// error.
package parse
