package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/descriptor"
	"github.com/berthelol/reference-images/internal/taxonomy"
)

// DynamoDB key constants for the single-table design.
const (
	pkTemplate = "TEMPLATE#"
	pkTaxonomy = "TAXONOMY"
	skMeta     = "META"
	skTag      = "TAG#"
	skProposed = "PROPOSED#"
	skCategory = "CATEGORY#"

	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore keeps template metadata, descriptors and tags in one table.
// Image bytes live elsewhere (see S3Images and Composite).
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// Compile-time interface checks.
var (
	_ MetadataStore = (*DynamoStore)(nil)
	_ TagStore      = (*DynamoStore)(nil)
)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

// templateItem is the META record of a template.
type templateItem struct {
	ID          string `dynamodbav:"id"`
	Source      string `dynamodbav:"source,omitempty"`
	Width       int    `dynamodbav:"width"`
	Height      int    `dynamodbav:"height"`
	AspectRatio string `dynamodbav:"aspectRatio"`
	Description string `dynamodbav:"description,omitempty"`
	MIMEType    string `dynamodbav:"mimeType,omitempty"`
	Descriptor  []byte `dynamodbav:"descriptorZstd,omitempty"`
	CreatedAt   int64  `dynamodbav:"createdAt"`
}

type tagItem struct {
	TagID      string  `dynamodbav:"tagId"`
	Confidence float64 `dynamodbav:"confidence"`
}

type proposedItem struct {
	Name        string `dynamodbav:"name"`
	ParentTagID string `dynamodbav:"parentTagId"`
	Reasoning   string `dynamodbav:"reasoning,omitempty"`
	Validated   bool   `dynamodbav:"validated"`
	CreatedAt   int64  `dynamodbav:"createdAt"`
}

type categoryItem struct {
	ID        string         `dynamodbav:"id"`
	Title     string         `dynamodbav:"title"`
	Mandatory bool           `dynamodbav:"isMandatory"`
	Tags      []taxonomy.Tag `dynamodbav:"tags"`
}

func templatePK(id string) string { return pkTemplate + id }

// --- Internal helpers ---

// putItem marshals a domain object and writes it with PK and SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// queryBySKPrefix returns every item under pk whose SK begins with skPrefix.
func (s *DynamoStore) queryBySKPrefix(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue
	// DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err)
		}
		allItems = append(allItems, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

// batchWrite sends write requests in chunks of maxBatchWrite.
func (s *DynamoStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for i := 0; i < len(requests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: requests[i:end],
			},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem (%d items): %w", end-i, err)
		}
	}
	return nil
}

func (s *DynamoStore) putRequest(pk, sk string, data interface{}) (types.WriteRequest, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return types.WriteRequest{}, fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
}

// --- Template operations ---

// PutTemplateMeta writes the META record. Image bytes are not stored here.
func (s *DynamoStore) PutTemplateMeta(ctx context.Context, t *Template) error {
	item := templateItem{
		ID:          t.ID,
		Source:      t.Source,
		Width:       t.Width,
		Height:      t.Height,
		AspectRatio: t.AspectRatio,
		Description: t.Description,
		MIMEType:    t.Image.MIMEType,
		CreatedAt:   t.CreatedAt.Unix(),
	}
	if t.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().Unix()
	}
	if t.Descriptor != nil {
		blob, err := encodeDescriptor(t.Descriptor)
		if err != nil {
			return err
		}
		item.Descriptor = blob
	}
	if err := s.putItem(ctx, templatePK(t.ID), skMeta, item); err != nil {
		return err
	}
	log.Debug().Str("templateId", t.ID).Int("descriptorBytes", len(item.Descriptor)).Msg("Template metadata stored")
	return nil
}

// GetTemplateMeta returns the template record without image bytes.
func (s *DynamoStore) GetTemplateMeta(ctx context.Context, id string) (*Template, error) {
	var item templateItem
	found, err := s.getItem(ctx, templatePK(id), skMeta, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	t := &Template{
		ID:          item.ID,
		Source:      item.Source,
		Width:       item.Width,
		Height:      item.Height,
		AspectRatio: item.AspectRatio,
		Description: item.Description,
		CreatedAt:   time.Unix(item.CreatedAt, 0),
	}
	t.Image.MIMEType = item.MIMEType
	if len(item.Descriptor) > 0 {
		d, err := decodeDescriptor(item.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", id, err)
		}
		t.Descriptor = d
	}
	return t, nil
}

func (s *DynamoStore) GetReferenceDescriptor(ctx context.Context, id string) (*descriptor.Descriptor, error) {
	t, err := s.GetTemplateMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Descriptor == nil {
		return nil, fmt.Errorf("descriptor of template %s: %w", id, ErrNotFound)
	}
	return t.Descriptor, nil
}

// --- Tag operations ---

// PutCategory creates or replaces a taxonomy category with its tags.
func (s *DynamoStore) PutCategory(ctx context.Context, c taxonomy.Category) error {
	return s.putItem(ctx, pkTaxonomy, skCategory+c.ID, categoryItem{
		ID: c.ID, Title: c.Title, Mandatory: c.Mandatory, Tags: c.Tags,
	})
}

func (s *DynamoStore) ListTags(ctx context.Context) (taxonomy.Taxonomy, error) {
	items, err := s.queryBySKPrefix(ctx, pkTaxonomy, skCategory)
	if err != nil {
		return taxonomy.Taxonomy{}, err
	}
	categories := make([]taxonomy.Category, 0, len(items))
	for _, raw := range items {
		var c categoryItem
		if err := attributevalue.UnmarshalMap(raw, &c); err != nil {
			return taxonomy.Taxonomy{}, fmt.Errorf("unmarshal category: %w", err)
		}
		categories = append(categories, taxonomy.Category{ID: c.ID, Title: c.Title, Mandatory: c.Mandatory, Tags: c.Tags})
	}
	return taxonomy.New(categories), nil
}

// PutImageTags replaces the tag assignments of a template.
func (s *DynamoStore) PutImageTags(ctx context.Context, templateID string, tags []ImageTag) error {
	pk := templatePK(templateID)
	existing, err := s.queryBySKPrefix(ctx, pk, skTag)
	if err != nil {
		return err
	}
	var requests []types.WriteRequest
	for _, item := range existing {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]},
		}})
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return err
	}

	requests = requests[:0]
	for _, tag := range tags {
		req, err := s.putRequest(pk, skTag+tag.TagID, tagItem(tag))
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}
	return s.batchWrite(ctx, requests)
}

// PutProposedTags records unvalidated tag proposals for review.
func (s *DynamoStore) PutProposedTags(ctx context.Context, templateID string, tags []ProposedTag) error {
	pk := templatePK(templateID)
	now := time.Now().Unix()
	var requests []types.WriteRequest
	for _, p := range tags {
		req, err := s.putRequest(pk, skProposed+p.Name, proposedItem{
			Name: p.Name, ParentTagID: p.ParentTagID, Reasoning: p.Reasoning, CreatedAt: now,
		})
		if err != nil {
			return err
		}
		requests = append(requests, req)
	}
	return s.batchWrite(ctx, requests)
}

// GetImageTags returns the tag assignments of a template.
func (s *DynamoStore) GetImageTags(ctx context.Context, templateID string) ([]ImageTag, error) {
	items, err := s.queryBySKPrefix(ctx, templatePK(templateID), skTag)
	if err != nil {
		return nil, err
	}
	out := make([]ImageTag, 0, len(items))
	for _, raw := range items {
		var t tagItem
		if err := attributevalue.UnmarshalMap(raw, &t); err != nil {
			return nil, fmt.Errorf("unmarshal tag: %w", err)
		}
		out = append(out, ImageTag(t))
	}
	return out, nil
}
