// Package index looks up the latest release of a package on a PyPI-style
// JSON index.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/quantmind-br/upip/internal/core"
	"github.com/quantmind-br/upip/internal/security"
	"github.com/quantmind-br/upip/internal/transport"
	"github.com/rs/zerolog"
)

// DefaultURL is the public index
const DefaultURL = "https://pypi.org/pypi"

const packageTypeSdist = "sdist"

var (
	// ErrNoArtifact is returned when the latest version publishes nothing
	ErrNoArtifact = errors.New("no downloadable artifact for latest version")

	// ErrAmbiguousArtifact is returned when several artifacts are published and
	// none is a unique source distribution
	ErrAmbiguousArtifact = errors.New("multiple artifacts and no unique sdist")
)

// Opener opens a URL and returns its body
type Opener interface {
	Open(ctx context.Context, url string) (*transport.Response, error)
}

// Client resolves package names to downloadable releases
type Client struct {
	opener  Opener
	baseURL string
	log     *zerolog.Logger
}

// NewClient creates an index client. An empty baseURL selects DefaultURL.
func NewClient(opener Opener, baseURL string, log *zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Client{
		opener:  opener,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Lookup fetches <base>/<name>/json and returns the artifact of the latest
// version. A missing package is core.KindNotFound; an unparsable document is
// core.KindFormatCorruption.
func (c *Client) Lookup(ctx context.Context, name string) (*core.Release, error) {
	if err := security.ValidatePackageName(name); err != nil {
		return nil, core.NewError(core.KindNotFound, "lookup "+name, err)
	}

	url := fmt.Sprintf("%s/%s/json", c.baseURL, name)
	c.log.Debug().Str("package", name).Str("url", url).Msg("fetching package metadata")

	resp, err := c.opener.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, core.NewError(core.KindTransportFailure, "read "+url, err)
	}

	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, core.NewError(core.KindFormatCorruption, "decode metadata for "+name, err)
	}

	version := data.Info.Version
	if err := security.ValidateVersion(version); err != nil {
		return nil, core.NewError(core.KindFormatCorruption, "decode metadata for "+name, err)
	}

	artifact, err := selectArtifact(data.Releases[version])
	if err != nil {
		return nil, core.NewError(core.KindNotFound, fmt.Sprintf("select %s %s", name, version), err)
	}

	filename := artifact.Filename
	if filename == "" {
		filename = path.Base(artifact.URL)
	}

	return &core.Release{
		Name:     name,
		Version:  version,
		URL:      artifact.URL,
		Filename: filename,
	}, nil
}

// selectArtifact picks the only artifact, or the only sdist among several
func selectArtifact(artifacts []apiArtifact) (*apiArtifact, error) {
	switch len(artifacts) {
	case 0:
		return nil, ErrNoArtifact
	case 1:
		if artifacts[0].URL == "" {
			return nil, ErrNoArtifact
		}
		return &artifacts[0], nil
	}

	var found *apiArtifact
	for i := range artifacts {
		if artifacts[i].PackageType != packageTypeSdist {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguousArtifact
		}
		found = &artifacts[i]
	}
	if found == nil || found.URL == "" {
		return nil, ErrAmbiguousArtifact
	}
	return found, nil
}

type apiResponse struct {
	Info     apiInfo                  `json:"info"`
	Releases map[string][]apiArtifact `json:"releases"`
}

type apiInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type apiArtifact struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	PackageType string `json:"packagetype"`
}
