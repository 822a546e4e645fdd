package prompt

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/internal/httpclient"
	"github.com/teranos/xalq/version"
)

// maxPromptBytes caps remote prompt bodies
const maxPromptBytes = 1 << 20

// RemoteStore fetches prompts from a raw-file HTTP endpoint such as
// raw.githubusercontent.com/<org>/<repo>/<branch>/prompts
type RemoteStore struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *httpclient.SaferClient
}

// RemoteOption customizes a RemoteStore
type RemoteOption func(*RemoteStore)

// WithToken sends "Authorization: token <pat>" on every fetch
func WithToken(token string) RemoteOption {
	return func(r *RemoteStore) { r.token = token }
}

// WithHTTPClient replaces the default SSRF-guarded client
func WithHTTPClient(client *httpclient.SaferClient) RemoteOption {
	return func(r *RemoteStore) { r.client = client }
}

// NewRemoteStore creates a remote prompt source
func NewRemoteStore(baseURL string, timeout time.Duration, opts ...RemoteOption) *RemoteStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = httpclient.New(timeout)
	}
	return r
}

// Fetch downloads name. Any failure is returned as an error; callers treat
// it as a soft miss.
func (r *RemoteStore) Fetch(ctx context.Context, name string) (string, error) {
	if r.baseURL == "" {
		return "", errors.New("no remote prompt source configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("User-Agent", version.Get().UserAgent())
	if r.token != "" {
		header.Set("Authorization", "token "+r.token)
	}

	target := r.baseURL + "/" + url.PathEscape(name)
	resp, err := r.client.Get(ctx, target, header)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("fetch %s: HTTP %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPromptBytes))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", target)
	}
	return string(body), nil
}
