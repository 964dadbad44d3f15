package broker

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/credbroker/internal/api"
	"github.com/dmitrijs2005/credbroker/internal/versionx"
)

// UpdateStatus reports whether a strictly newer client build is available.
// Failures never propagate as errors: the caller sees no update plus the
// failure text, and keeps running on the current build.
type UpdateStatus struct {
	HasUpdate   bool
	Version     string
	Changelog   string
	Size        int64
	ForceUpdate bool
	DownloadURL string
	Err         string
}

// CheckUpdate asks the server for the latest build and gates it against the
// running version.
func (b *Broker) CheckUpdate(ctx context.Context) UpdateStatus {
	info, err := b.client.CheckUpdate(ctx)
	if err != nil {
		b.log.Warn(ctx, "update check failed", "error", err)
		return UpdateStatus{Err: err.Error()}
	}

	if !info.HasUpdate || info.Version == "" {
		return UpdateStatus{}
	}
	if !versionx.IsNewer(info.Version, b.version) {
		return UpdateStatus{}
	}

	return UpdateStatus{
		HasUpdate:   true,
		Version:     info.Version,
		Changelog:   info.Changelog,
		Size:        info.Size,
		ForceUpdate: info.ForceUpdate,
		DownloadURL: info.DownloadURL,
	}
}

// DownloadUpdate streams an update into dest. Relative download URLs are
// resolved against the API base, matching how the server advertises them.
func (b *Broker) DownloadUpdate(ctx context.Context, url, dest string, progress api.ProgressFunc) error {
	if !strings.HasPrefix(url, "http") {
		url = strings.TrimRight(b.apiBaseURL, "/") + url
	}
	return b.client.Download(ctx, url, dest, progress)
}
