package buildinfo

import (
	"strings"
	"testing"
)

func TestBinaryVersionDefault(t *testing.T) {
	if BinaryVersion != "dev" {
		t.Errorf("Expected BinaryVersion to be 'dev', got '%s'", BinaryVersion)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "codescore/dev (") {
		t.Errorf("unexpected user agent %q", ua)
	}
}
