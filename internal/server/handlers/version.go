package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is injected from main via SetVersionInfo.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	buildMu   sync.RWMutex
	buildInfo = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	identity  *appidentity.Identity
)

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	buildInfo = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// SetAppIdentity sets the identity reported by /version.
func SetAppIdentity(id *appidentity.Identity) {
	buildMu.Lock()
	defer buildMu.Unlock()
	identity = id
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Vendor    string `json:"vendor,omitempty"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

func buildVersionResponse() VersionResponse {
	buildMu.RLock()
	info := buildInfo
	id := identity
	buildMu.RUnlock()

	name := "unknown"
	vendor := ""
	if id != nil && id.BinaryName != "" {
		name = id.BinaryName
		vendor = id.Vendor
	} else if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}

	deps := crucible.GetVersion()

	return VersionResponse{
		App: AppInfo{
			Name:      name,
			Vendor:    vendor,
			Version:   info.Version,
			Commit:    info.Commit,
			BuildDate: info.BuildDate,
			GoVersion: runtime.Version(),
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
}

// VersionHandler handles version information requests
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildVersionResponse())
}
