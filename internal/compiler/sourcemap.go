package compiler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	inlineSourceMap = regexp.MustCompile(`(?m)^//[#@] sourceMappingURL=data:application/json(?:;charset=[\w-]+)?;base64,([A-Za-z0-9+/=]+)[ \t]*$`)
	drivePrefix     = regexp.MustCompile(`^([A-Z]):/`)
)

const sourceMapComment = "//# sourceMappingURL=data:application/json;charset=utf-8;base64,"

var errNoSourceMap = errors.New("no inline source map")

// mapSources rewrites every entry of the inline source map's "sources" list
// with fn and replaces the comment. Other source map fields are preserved.
func mapSources(src string, fn func(string) string) (string, error) {
	loc := lastMatch(src)
	if loc == nil {
		return src, errNoSourceMap
	}

	raw, err := base64.StdEncoding.DecodeString(src[loc[2]:loc[3]])
	if err != nil {
		return src, fmt.Errorf("failed to decode source map: %w", err)
	}

	var sm map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sm); err != nil {
		return src, fmt.Errorf("failed to parse source map: %w", err)
	}

	var sources []string
	if data, ok := sm["sources"]; ok {
		if err := json.Unmarshal(data, &sources); err != nil {
			return src, fmt.Errorf("failed to parse source map sources: %w", err)
		}
	}

	for i, file := range sources {
		sources[i] = fn(file)
	}

	data, err := json.Marshal(sources)
	if err != nil {
		return src, err
	}
	sm["sources"] = data

	out, err := json.Marshal(sm)
	if err != nil {
		return src, err
	}

	comment := sourceMapComment + base64.StdEncoding.EncodeToString(out)
	return src[:loc[0]] + comment + src[loc[1]:], nil
}

func lastMatch(src string) []int {
	matches := inlineSourceMap.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1]
}

// relativeSources makes source paths relative to basedir with a leading
// slash, since browser devtools drop the first character of a source path.
func relativeSources(src, basedir string) (string, error) {
	return mapSources(src, func(file string) string {
		abs := file
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(basedir, abs)
		}

		rel, err := filepath.Rel(basedir, abs)
		if err != nil {
			rel = file
		}
		return "/" + strings.ReplaceAll(rel, `\`, "/")
	})
}

// unixifySources converts source paths to forward slashes and rewrites a
// leading drive letter "C:/" to "/C/".
func unixifySources(src string) (string, error) {
	return mapSources(src, unixifyPath)
}

func unixifyPath(file string) string {
	file = strings.ReplaceAll(file, `\`, "/")
	return drivePrefix.ReplaceAllString(file, "/$1/")
}
