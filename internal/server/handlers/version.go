package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is injected from main through ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Bot          *BotInfo    `json:"bot,omitempty"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Vendor    string `json:"vendor,omitempty"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// BotInfo describes the Telegram account the process polls for.
type BotInfo struct {
	Username string `json:"username,omitempty"`
	ID       int64  `json:"id,omitempty"`
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

// VersionHandler returns a handler serving build, identity and bot details.
func VersionHandler(build BuildInfo, identity *appidentity.Identity, botInfo *BotInfo) http.HandlerFunc {
	app := AppInfo{
		Name:      "wgbot",
		Version:   build.Version,
		Commit:    build.Commit,
		BuildDate: build.BuildDate,
		GoVersion: runtime.Version(),
	}
	if identity != nil {
		app.Name = identity.BinaryName
		app.Vendor = identity.Vendor
	}

	return func(w http.ResponseWriter, r *http.Request) {
		deps := crucible.GetVersion()
		response := VersionResponse{
			App: app,
			Bot: botInfo,
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
