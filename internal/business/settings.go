package business

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpecialTeams lists the GitHub team IDs organization configuration grants
// organization-wide repository access or sudo rights. Membership in these
// sets, not any GitHub-side team property, is what makes a team special.
type SpecialTeams struct {
	Admin      []int64 `yaml:"admin"`
	Write      []int64 `yaml:"write"`
	Read       []int64 `yaml:"read"`
	Sudo       []int64 `yaml:"sudo"`
	Invitation []int64 `yaml:"invitation"`
}

func (s SpecialTeams) All() []int64 {
	all := []int64{}
	all = append(all, s.Admin...)
	all = append(all, s.Write...)
	all = append(all, s.Read...)
	all = append(all, s.Sudo...)
	all = append(all, s.Invitation...)
	return all
}

// OrganizationSettings is the immutable configuration of a managed
// organization, loaded once at startup.
type OrganizationSettings struct {
	Name          string       `yaml:"name"`
	ID            int64        `yaml:"id"`
	Priority      string       `yaml:"priority"`    // primary, secondary
	TypePolicy    string       `yaml:"type_policy"` // public, private, hybrid
	SpecialTeams  SpecialTeams `yaml:"special_teams"`
	Templates     []string     `yaml:"templates"`
	LegalEntities []string     `yaml:"legal_entities"`
	WebhookSecret string       `yaml:"webhook_secret"`
}

type organizationsFile struct {
	Organizations []*OrganizationSettings `yaml:"organizations"`
}

// LoadOrganizationSettings reads the organizations YAML file.
func LoadOrganizationSettings(path string) ([]*OrganizationSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("not able to read organizations file %s: %w", path, err)
	}

	var parsed organizationsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("not able to parse organizations file %s: %w", path, err)
	}

	for _, settings := range parsed.Organizations {
		if settings.Name == "" {
			return nil, &InvalidStateError{Reason: "organization settings entry without a name"}
		}
	}

	return parsed.Organizations, nil
}
