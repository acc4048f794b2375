package querycache

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBClientInterface defines the DynamoDB operations the provider
// needs. Tests inject a fake.
type DynamoDBClientInterface interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoDBProvider keeps one item per organization, keyed by org_name, with
// the whole snapshot as a nested attribute. The shared table lets several
// portal instances serve reads from the same refreshed rows.
type DynamoDBProvider struct {
	TableName string
	client    DynamoDBClientInterface
}

type dynamoSnapshotItem struct {
	OrgName  string               `dynamodbav:"org_name"`
	Snapshot OrganizationSnapshot `dynamodbav:"snapshot"`
}

func NewDynamoDBProvider(tableName string) *DynamoDBProvider {
	return &DynamoDBProvider{TableName: tableName}
}

// NewDynamoDBProviderWithClient creates a provider with a custom client.
// This is used for testing.
func NewDynamoDBProviderWithClient(tableName string, client DynamoDBClientInterface) *DynamoDBProvider {
	return &DynamoDBProvider{TableName: tableName, client: client}
}

func (p *DynamoDBProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("unable to load AWS SDK config: %v", err)
	}
	p.client = dynamodb.NewFromConfig(cfg)
	return nil
}

func (p *DynamoDBProvider) Capabilities() Capabilities {
	return Capabilities{
		OrganizationMembership:  true,
		TeamMembership:          true,
		TeamPermissions:         true,
		RepositoryCollaborators: true,
	}
}

func (p *DynamoDBProvider) ReplaceOrganizationRows(ctx context.Context, orgName string, snapshot OrganizationSnapshot) error {
	if err := p.ensureClient(ctx); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(dynamoSnapshotItem{
		OrgName:  orgName,
		Snapshot: snapshot,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot of organization %s: %v", orgName, err)
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.TableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot in DynamoDB table %s: %v", p.TableName, err)
	}
	return nil
}

// forEachSnapshot scans the table, following pagination, and hands every
// stored snapshot to fn.
func (p *DynamoDBProvider) forEachSnapshot(ctx context.Context, fn func(orgName string, snapshot OrganizationSnapshot)) error {
	if err := p.ensureClient(ctx); err != nil {
		return err
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(p.TableName),
	}
	for {
		output, err := p.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %v", p.TableName, err)
		}
		for _, raw := range output.Items {
			var item dynamoSnapshotItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot item: %v", err)
			}
			fn(item.OrgName, item.Snapshot)
		}
		if output.LastEvaluatedKey == nil {
			return nil
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

func (p *DynamoDBProvider) UserOrganizations(ctx context.Context, userID int64) ([]OrganizationMembershipRow, error) {
	rows := []OrganizationMembershipRow{}
	err := p.forEachSnapshot(ctx, func(orgName string, snapshot OrganizationSnapshot) {
		for _, row := range snapshot.Memberships {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	})
	return rows, err
}

func (p *DynamoDBProvider) UserTeams(ctx context.Context, userID int64) ([]TeamMembershipRow, error) {
	rows := []TeamMembershipRow{}
	err := p.forEachSnapshot(ctx, func(orgName string, snapshot OrganizationSnapshot) {
		for _, row := range snapshot.TeamMembers {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	})
	return rows, err
}

func (p *DynamoDBProvider) TeamsPermissions(ctx context.Context, teamIDs []int64) ([]TeamPermissionRow, error) {
	wanted := make(map[int64]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}

	rows := []TeamPermissionRow{}
	err := p.forEachSnapshot(ctx, func(orgName string, snapshot OrganizationSnapshot) {
		for _, row := range snapshot.TeamGrants {
			if _, ok := wanted[row.TeamID]; ok {
				rows = append(rows, row)
			}
		}
	})
	return rows, err
}

func (p *DynamoDBProvider) UserCollaboratorRepositories(ctx context.Context, userID int64) ([]RepositoryCollaboratorRow, error) {
	rows := []RepositoryCollaboratorRow{}
	err := p.forEachSnapshot(ctx, func(orgName string, snapshot OrganizationSnapshot) {
		for _, row := range snapshot.Collaborators {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	})
	return rows, err
}
