package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
)

// SAML identity auditing shipped with GHES 3.11.
var ghesAuditFloor = version.Must(version.NewVersion("3.11"))

// IsEnterprise reports whether identity auditing features are available:
// either the organization is on an Enterprise cloud plan, or the server is a
// GHES instance recent enough.
func IsEnterprise(ctx context.Context, orgname string, client Client) bool {
	if installed, err := ghesVersion(ctx, client); err == nil {
		logrus.Debugf("GHES version: %s", installed)
		return installed.GreaterThanOrEqual(ghesAuditFloor)
	}

	plan, err := organizationPlan(ctx, orgname, client)
	if err != nil {
		return false
	}
	logrus.Debugf("organization plan: %s", plan)
	return plan == "enterprise"
}

// ghesVersion probes /api/v3, which only exists on GitHub Enterprise Server.
func ghesVersion(ctx context.Context, client Client) (*version.Version, error) {
	body, err := client.CallRestAPI(ctx, "/api/v3", "", "GET", nil, nil)
	if err != nil {
		return nil, err
	}

	var info struct {
		InstalledVersion string `json:"installed_version"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("not able to decode the server version: %w", err)
	}
	return version.NewVersion(info.InstalledVersion)
}

func organizationPlan(ctx context.Context, orgname string, client Client) (string, error) {
	body, err := client.CallRestAPI(ctx, "/orgs/"+orgname, "", "GET", nil, nil)
	if err != nil {
		return "", err
	}

	var info struct {
		Plan struct {
			Name string `json:"name"`
		} `json:"plan"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("not able to decode the organization plan: %w", err)
	}
	return info.Plan.Name, nil
}
