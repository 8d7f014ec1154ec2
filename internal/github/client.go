// Package github fetches seqc compiler builds from GitHub releases.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	gh "github.com/google/go-github/v60/github"
)

// CompilerName is the base name of the downloaded binary and its symlink.
const CompilerName = "seqc"

// Client wraps the GitHub API for compiler release operations.
type Client struct {
	gh         *gh.Client
	httpClient *http.Client
	owner      string
	repo       string
	binDir     string
	assetTmpl  *template.Template
	goos       string
	goarch     string
}

// New creates a GitHub client for the owner/repo that publishes compiler
// releases. Downloads land in binDir. An empty token means anonymous access.
func New(token, owner, repo, assetPattern, binDir string) (*Client, error) {
	httpClient := &http.Client{}
	ghClient := gh.NewClient(httpClient)
	if token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}
	return newWithClients(ghClient, httpClient, owner, repo, assetPattern, binDir)
}

// newWithClients creates a Client with injected HTTP and GitHub clients (for testing).
func newWithClients(ghClient *gh.Client, httpClient *http.Client, owner, repo, assetPattern, binDir string) (*Client, error) {
	tmpl, err := template.New("asset").Parse(assetPattern)
	if err != nil {
		return nil, fmt.Errorf("parsing asset pattern %q: %w", assetPattern, err)
	}
	return &Client{
		gh:         ghClient,
		httpClient: httpClient,
		owner:      owner,
		repo:       repo,
		binDir:     binDir,
		assetTmpl:  tmpl,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}, nil
}

// ResolveVersion resolves "latest" (or empty) to the newest release tag and
// returns any other version as-is.
func (c *Client) ResolveVersion(ctx context.Context, version string) (string, error) {
	if version != "latest" && version != "" {
		return version, nil
	}
	release, _, err := c.gh.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		return "", fmt.Errorf("getting latest release for %s/%s: %w", c.owner, c.repo, err)
	}
	return release.GetTagName(), nil
}

// DownloadCompiler downloads the release asset for this platform to
// <binDir>/seqc-<version>, makes it executable, and points <binDir>/seqc
// at it. It returns the path of the versioned binary.
func (c *Client) DownloadCompiler(ctx context.Context, version string) (string, error) {
	release, _, err := c.gh.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, version)
	if err != nil {
		return "", fmt.Errorf("getting release %s for %s/%s: %w", version, c.owner, c.repo, err)
	}

	expected, err := ResolveAssetName(c.assetTmpl, AssetData{
		Name:    CompilerName,
		Version: version,
		OS:      c.goos,
		Arch:    c.goarch,
	})
	if err != nil {
		return "", err
	}

	var assetNames []string
	var matched *gh.ReleaseAsset
	for _, a := range release.Assets {
		name := a.GetName()
		assetNames = append(assetNames, name)
		if name == expected {
			matched = a
		}
	}
	if matched == nil {
		_, findErr := FindAsset(assetNames, expected)
		return "", findErr
	}

	rc, _, err := c.gh.Repositories.DownloadReleaseAsset(ctx, c.owner, c.repo, matched.GetID(), c.httpClient)
	if err != nil {
		return "", fmt.Errorf("downloading asset %s: %w", expected, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(c.binDir, 0755); err != nil {
		return "", fmt.Errorf("creating bin dir %s: %w", c.binDir, err)
	}

	filename := fmt.Sprintf("%s-%s", CompilerName, version)
	destPath := filepath.Join(c.binDir, filename)

	// Write next to the destination and rename so a failed download never
	// leaves a truncated binary behind.
	tmp, err := os.CreateTemp(c.binDir, filename+".*.part")
	if err != nil {
		return "", fmt.Errorf("creating temp file in %s: %w", c.binDir, err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing asset to %s: %w", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0755); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("moving asset to %s: %w", destPath, err)
	}

	symlinkPath := filepath.Join(c.binDir, CompilerName)
	os.Remove(symlinkPath) // remove existing symlink if any
	if err := os.Symlink(filename, symlinkPath); err != nil {
		return "", fmt.Errorf("creating symlink %s -> %s: %w", symlinkPath, filename, err)
	}

	return destPath, nil
}
