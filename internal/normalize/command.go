package normalize

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Command is a tool-supplied command line broken into its parts.
type Command struct {
	Raw        string
	Executable string
	Args       []string
	Domains    []string
}

var domainRegex = regexp.MustCompile(`https?://([^/\s'"]+)`)

// ParseArgv normalizes one argv (already split by a shell parser).
func ParseArgv(args []string) Command {
	if len(args) == 0 {
		return Command{}
	}

	c := Command{
		Raw:        strings.Join(args, " "),
		Executable: filepath.Base(args[0]),
		Args:       args,
		Domains:    []string{},
	}

	for _, arg := range args[1:] {
		c.Domains = append(c.Domains, extractDomains(arg)...)
	}

	// SSH clone URLs carry no scheme.
	if c.Executable == "git" && len(args) > 2 && args[1] == "clone" {
		if domain := extractGitDomain(args[2]); domain != "" {
			c.Domains = append(c.Domains, domain)
		}
	}

	c.Domains = uniqueStrings(c.Domains)
	return c
}

// HasFlag reports whether any argument is a short flag cluster containing
// every rune in flags (so "-rf", "-fr" and "-r -f" all match "rf"), or the
// long form given in long.
func (c Command) HasFlag(flags string, long ...string) bool {
	seen := map[rune]bool{}
	for _, a := range c.Args[min(1, len(c.Args)):] {
		for _, l := range long {
			if a == l {
				return true
			}
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") {
			for _, r := range a[1:] {
				seen[r] = true
			}
		}
	}
	if flags == "" {
		return false
	}
	for _, r := range flags {
		if !seen[r] {
			return false
		}
	}
	return true
}

func extractDomains(s string) []string {
	matches := domainRegex.FindAllStringSubmatch(s, -1)
	domains := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 {
			domains = append(domains, match[1])
		}
	}
	return domains
}

func extractGitDomain(repoURL string) string {
	if strings.HasPrefix(repoURL, "git@") {
		host, _, _ := strings.Cut(strings.TrimPrefix(repoURL, "git@"), ":")
		return host
	}
	if strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://") {
		if u, err := url.Parse(repoURL); err == nil {
			return u.Host
		}
	}
	return ""
}

func uniqueStrings(input []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(input))
	for _, s := range input {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
