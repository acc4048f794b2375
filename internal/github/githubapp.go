package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

type installation struct {
	ID      int64  `json:"id"`
	AppID   int64  `json:"app_id"`
	AppSlug string `json:"app_slug"`
	Account struct {
		Login string `json:"login"`
	} `json:"account"`
}

// resolveInstallation finds where the app is installed and remembers the
// installation id and slug for the organization we manage.
func (c *AppClient) resolveInstallation(organizationName string) error {
	signedJWT, err := c.CreateJWT()
	if err != nil {
		return err
	}

	installations, err := c.listInstallations(signedJWT)
	if err != nil {
		return err
	}

	for _, inst := range installations {
		logrus.Debugf("app %s installed with id %d on %s", inst.AppSlug, inst.ID, inst.Account.Login)
		if inst.AppID == c.appID && strings.EqualFold(inst.Account.Login, organizationName) {
			c.installationID = inst.ID
			c.appSlug = inst.AppSlug
			return nil
		}
	}

	return fmt.Errorf("not able to find an installation of app %d on organization %s", c.appID, organizationName)
}

func (c *AppClient) listInstallations(signedJWT string) ([]installation, error) {
	req, err := http.NewRequest(http.MethodGet, c.server+"/app/installations", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+signedJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("not able to read the installations response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, "/app/installations", body)
	}

	var installations []installation
	if err := json.Unmarshal(body, &installations); err != nil {
		return nil, fmt.Errorf("not able to decode the installations response: %w", err)
	}
	return installations, nil
}
