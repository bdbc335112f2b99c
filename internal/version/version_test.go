package version

import "testing"

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	tests := []struct {
		name                       string
		version, commit, buildTime string
		want                       string
	}{
		{"defaults", "dev", "unknown", "unknown", "dev (unknown) built unknown"},
		{"release", "1.2.3", "abc1234", "2026-01-15T10:00:00Z", "1.2.3 (abc1234) built 2026-01-15T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			info := Get()
			if info.Version != tt.version || info.Commit != tt.commit || info.BuildTime != tt.buildTime {
				t.Errorf("Get() = %+v, want %s/%s/%s", info, tt.version, tt.commit, tt.buildTime)
			}
		})
	}
}
