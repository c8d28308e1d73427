package sites

import (
	"regexp"
	"sync"
)

// regexCache memoizes compiled patterns across rule evaluations.
type regexCache struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{cache: make(map[string]*regexp.Regexp)}
}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.cache[pattern] = re
	return re, nil
}

// evalRegex applies a compiled regex rule against the raw body. Named
// capture groups yield every named value; a single unnamed group yields
// its first capture; no groups yields the full match text.
func evalRegex(re *regexp.Regexp, body string) []string {
	var values []string

	names := re.SubexpNames()
	hasNamed := false
	for _, n := range names {
		if n != "" {
			hasNamed = true
			break
		}
	}

	switch {
	case hasNamed:
		for _, match := range re.FindAllStringSubmatch(body, -1) {
			for i, name := range names {
				if name != "" && i < len(match) && match[i] != "" {
					values = append(values, match[i])
				}
			}
		}
	case re.NumSubexp() > 0:
		for _, match := range re.FindAllStringSubmatch(body, -1) {
			if len(match) > 1 {
				values = append(values, match[1])
			}
		}
	default:
		values = re.FindAllString(body, -1)
	}

	return values
}
