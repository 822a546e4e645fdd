package version

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/internal/httpclient"
)

// unknownVersion is assumed when no local version can be determined
const unknownVersion = "0.0.0"

const maxManifestBytes = 64 << 10

// Manifest is the content of version.json
type Manifest struct {
	Version        string `json:"version"`
	CriticalUpdate bool   `json:"critical_update"`
	Notes          string `json:"notes,omitempty"`
}

// CheckResult compares the local and published versions
type CheckResult struct {
	Local           string `json:"local"`
	Remote          string `json:"remote"`
	UpdateAvailable bool   `json:"update_available"`
	Critical        bool   `json:"critical"`
	Notes           string `json:"notes,omitempty"`
}

// Checker fetches the published manifest
type Checker struct {
	url    string
	client *httpclient.SaferClient
}

// CheckerOption configures a Checker
type CheckerOption func(*Checker)

// WithHTTPClient replaces the default SaferClient
func WithHTTPClient(c *httpclient.SaferClient) CheckerOption {
	return func(ch *Checker) { ch.client = c }
}

// NewChecker creates a checker for the manifest at url
func NewChecker(url string, opts ...CheckerOption) *Checker {
	ch := &Checker{url: url, client: httpclient.New(5 * time.Second)}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// LocalManifest reads version.json. When the file is missing the build
// version is used, or 0.0.0 for development builds.
func LocalManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if _, perr := semver.NewVersion(Version); perr == nil {
			return Manifest{Version: Version}, nil
		}
		return Manifest{Version: unknownVersion}, nil
	}
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to read %s", path)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to parse %s", path)
	}
	if m.Version == "" {
		m.Version = unknownVersion
	}
	return m, nil
}

// Remote fetches the published manifest
func (ch *Checker) Remote(ctx context.Context) (Manifest, error) {
	header := http.Header{}
	header.Set("User-Agent", Get().UserAgent())
	resp, err := ch.client.Get(ctx, ch.url, header)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to fetch %s", ch.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Manifest{}, errors.Newf("fetch %s: HTTP %d", ch.url, resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxManifestBytes)).Decode(&m); err != nil {
		return Manifest{}, errors.Wrapf(err, "failed to parse %s", ch.url)
	}
	return m, nil
}

// Check compares the local manifest at localPath with the published one
func (ch *Checker) Check(ctx context.Context, localPath string) (*CheckResult, error) {
	local, err := LocalManifest(localPath)
	if err != nil {
		return nil, err
	}
	remote, err := ch.Remote(ctx)
	if err != nil {
		return nil, err
	}
	return Compare(local, remote)
}

// Compare reports whether remote is newer than local
func Compare(local, remote Manifest) (*CheckResult, error) {
	localVer, err := semver.NewVersion(local.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid local version %q", local.Version)
	}
	remoteVer, err := semver.NewVersion(remote.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid published version %q", remote.Version)
	}

	newer := remoteVer.GreaterThan(localVer)
	return &CheckResult{
		Local:           localVer.String(),
		Remote:          remoteVer.String(),
		UpdateAvailable: newer,
		Critical:        newer && remote.CriticalUpdate,
		Notes:           remote.Notes,
	}, nil
}
