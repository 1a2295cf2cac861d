//go:build linux

package sandbox

import "testing"

func TestParseCgroupV2Path(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"root", "0::/\n", "/", false},
		{"nested", "0::/user.slice/user-1000.slice\n", "/user.slice/user-1000.slice", false},
		{"trailing-noise", "1:name=systemd:/init.scope\n0::/docker/abc123\n", "/docker/abc123", false},
		{"no-v2-entry", "1:name=systemd:/init.scope\n", "", true},
		{"empty", "", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := parseCgroupV2Path(c.content)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCgroupV2Path: %v", err)
			}
			if got != c.want {
				t.Errorf("parseCgroupV2Path() = %q, want %q", got, c.want)
			}
		})
	}
}
