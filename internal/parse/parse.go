package parse

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ParsedName is the outcome of filename parsing: a clean candidate title
// and, for episodic content, the season and episode numbers. It is derived
// purely from the filename string and never persisted.
type ParsedName struct {
	Title   string
	Season  int
	Episode int
}

// bracketedRx matches release-group tags such as "[YTS.MX]".
var bracketedRx = regexp.MustCompile(`\[[^\]]*\]`)

// episodeMarkerRx matches markers of the shape S?season[xXeE]episode with
// one- or two-digit season and episode numbers.
var episodeMarkerRx = regexp.MustCompile(`(?i)(?:^|[^0-9])(?:s)?(\d{1,2})[xe](\d{1,2})(?:[^0-9]|$)`)

// releaseMarkerRx matches the first token that signals release metadata
// rather than title text: quality tags, rip sources, codecs, audio and
// language tags. Tokens must be delimiter-bounded so title words survive.
var releaseMarkerRx = regexp.MustCompile(`(?i)(?:^|[\s._\-(])(` +
	`\d{3,4}[pi]|4k|uhd|` +
	`blu-?ray|bd-?rip|br-?rip|remux|web-?dl|web-?rip|hdtv|dvd-?rip|dvdscr|hd-?rip|cam-?rip|telesync|telecine|` +
	`x26[45]|h\.?26[45]|hevc|avc|xvid|divx|av1|10bit|` +
	`aac|ac-?3|eac3|dts|truehd|atmos|ddp?[257]\.[01]|` +
	`multi|dual[\s._-]?audio|vostfr|subbed|dubbed|proper|repack|extended|unrated|remastered|internal|limited` +
	`)(?:[\s._\-)]|$)`)

// yearMarkerRx matches a bare delimiter-bounded 4-digit year.
var yearMarkerRx = regexp.MustCompile(`(?:^|[\s._\-(])((?:19|20)\d{2})(?:[\s._\-)]|$)`)

// ParseMovie extracts a clean title from a movie filename. It strips
// bracketed release-group tags, cuts everything from the first
// release-metadata marker onward (quality tag, rip source, codec, language
// tag, bare year, or an episode marker), and normalizes separators. The
// boolean is false when the filename does not resemble a movie, for example
// when it begins with a bare episode marker.
func ParseMovie(fileName string) (ParsedName, bool) {
	name := stripExtension(fileName)
	name = bracketedRx.ReplaceAllString(name, " ")

	if idx, found := firstMarkerIndex(name); found {
		if idx == 0 {
			return ParsedName{}, false
		}
		name = name[:idx]
	}

	title := cleanTitle(name)
	if title == "" {
		return ParsedName{}, false
	}
	return ParsedName{Title: title}, true
}

// ParseEpisode detects a season/episode marker anywhere in the filename and
// derives the series title from everything before it, cleaned the same way
// as movie titles. The boolean is false when no marker is present; such
// files are not episodic content.
func ParseEpisode(fileName string) (ParsedName, bool) {
	name := stripExtension(fileName)
	name = bracketedRx.ReplaceAllString(name, " ")

	m := episodeMarkerRx.FindStringSubmatchIndex(name)
	if m == nil {
		return ParsedName{}, false
	}

	season, err := strconv.Atoi(name[m[2]:m[3]])
	if err != nil {
		return ParsedName{}, false
	}
	episode, err := strconv.Atoi(name[m[4]:m[5]])
	if err != nil {
		return ParsedName{}, false
	}

	return ParsedName{
		Title:   cleanTitle(name[:m[0]]),
		Season:  season,
		Episode: episode,
	}, true
}

// firstMarkerIndex returns the earliest cut point among all release-marker
// categories, or found=false when the name carries no marker at all.
func firstMarkerIndex(name string) (int, bool) {
	idx := -1
	for _, rx := range []*regexp.Regexp{releaseMarkerRx, yearMarkerRx, episodeMarkerRx} {
		m := rx.FindStringIndex(name)
		if m == nil {
			continue
		}
		if idx < 0 || m[0] < idx {
			idx = m[0]
		}
	}
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

func stripExtension(fileName string) string {
	base := filepath.Base(fileName)
	if ext := filepath.Ext(base); len(ext) > 1 && len(ext) <= 5 {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func cleanTitle(name string) string {
	name = strings.ReplaceAll(name, ".", " ")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " -")
}
