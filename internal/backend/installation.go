package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/vitaliydpua/appgw/internal/apierror"
)

// unsupportedVersionCode is the error code the installation backend
// returns for installations below the minimum supported app version.
const unsupportedVersionCode = "UNSUPPORTED_VERSION"

// InstallationClient implements Installations over the installation
// backend's HTTP API.
type InstallationClient struct {
	client *Client
}

// NewInstallationClient creates a new installation backend client.
func NewInstallationClient(cfg ClientConfig, opts ...ClientOption) *InstallationClient {
	if cfg.Name == "" {
		cfg.Name = "installation"
	}
	return &InstallationClient{client: NewClient(cfg, opts...)}
}

// CheckVersion verifies the installation's app version is supported.
func (c *InstallationClient) CheckVersion(ctx context.Context, installationID string) error {
	err := c.client.do(ctx, http.MethodGet,
		"/installations/"+installationID+"/version-check", nil, nil)
	if err == nil {
		return nil
	}

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.Code == unsupportedVersionCode {
		requirement := VersionRequirement{}
		if details, ok := apiErr.Details.(map[string]any); ok {
			if v, ok := details["minVersion"].(string); ok {
				requirement.MinVersion = v
			}
			if v, ok := details["storeLink"].(string); ok {
				requirement.StoreLink = v
			}
		}
		return &UnsupportedVersionError{
			InstallationID: installationID,
			Requirement:    requirement,
		}
	}
	return err
}

// Ensure InstallationClient implements Installations.
var _ Installations = (*InstallationClient)(nil)
