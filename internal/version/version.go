// Package version holds build metadata stamped in with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/nft-market/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/nft-market/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/nft-market/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build metadata as reported by /health and marketctl.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

func (i Info) String() string {
	return i.Version + " (" + i.Commit + ") built " + i.BuildTime
}

// String returns the formatted build metadata.
func String() string {
	return Get().String()
}
