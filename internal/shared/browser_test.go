package shared

import (
	"errors"
	"slices"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	t.Run("rejects non-web URLs", func(t *testing.T) {
		for _, target := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "https://"} {
			if err := OpenBrowser(target); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("%q: expected ErrInvalidArgument, got %v", target, err)
			}
		}
	})

	t.Run("unsupported platform", func(t *testing.T) {
		original := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = original }()

		err := OpenBrowser("https://www.themoviedb.org/movie/603")
		if err == nil || err.Error() != "unsupported platform: plan9" {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})

	t.Run("platform commands", func(t *testing.T) {
		target := "https://www.themoviedb.org/movie/603"
		tests := map[string][]string{
			"darwin":  {"open", target},
			"linux":   {"xdg-open", target},
			"windows": {"rundll32", "url.dll,FileProtocolHandler", target},
		}
		for platform, want := range tests {
			cmd, err := browserCommand(platform, target)
			if err != nil {
				t.Fatalf("%s: unexpected error %v", platform, err)
			}
			if !slices.Equal(cmd.Args, want) {
				t.Errorf("%s: expected %v, got %v", platform, want, cmd.Args)
			}
		}
	})
}
