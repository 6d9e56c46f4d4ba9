package setup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// EntryStore persists config entries. Get returns nil, nil for an unknown ID.
type EntryStore interface {
	Save(ctx context.Context, entry *models.ConfigEntry) error
	Get(ctx context.Context, id string) (*models.ConfigEntry, error)
	List(ctx context.Context) ([]*models.ConfigEntry, error)
	Delete(ctx context.Context, id string) error
}

// MemoryEntryStore keeps entries in process memory.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.ConfigEntry
}

func NewMemoryEntryStore(entries ...*models.ConfigEntry) *MemoryEntryStore {
	s := &MemoryEntryStore{entries: make(map[string]*models.ConfigEntry, len(entries))}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s
}

func (s *MemoryEntryStore) Save(_ context.Context, entry *models.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid config entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

func (s *MemoryEntryStore) Get(_ context.Context, id string) (*models.ConfigEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id], nil
}

func (s *MemoryEntryStore) List(_ context.Context) ([]*models.ConfigEntry, error) {
	s.mu.RLock()
	out := make([]*models.ConfigEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sortEntries(out)
	return out, nil
}

func (s *MemoryEntryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// DynamoDBClient is the subset of the DynamoDB API the entry store uses.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoEntryStore keeps entries in a DynamoDB table keyed by "id".
type DynamoEntryStore struct {
	client    DynamoDBClient
	tableName string
}

func NewDynamoEntryStore(client DynamoDBClient, tableName string) *DynamoEntryStore {
	return &DynamoEntryStore{client: client, tableName: tableName}
}

func (s *DynamoEntryStore) Save(ctx context.Context, entry *models.ConfigEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid config entry: %w", err)
	}

	item, err := attributevalue.MarshalMap(entry.ToRecord())
	if err != nil {
		return fmt.Errorf("marshaling config entry: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting config entry in DynamoDB: %w", err)
	}

	log.Debug().
		Str("entry_id", entry.ID).
		Str("table", s.tableName).
		Msg("Saved config entry")
	return nil
}

func (s *DynamoEntryStore) Get(ctx context.Context, id string) (*models.ConfigEntry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting config entry from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return unmarshalEntry(result.Item)
}

func (s *DynamoEntryStore) List(ctx context.Context) ([]*models.ConfigEntry, error) {
	var out []*models.ConfigEntry
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning config entries: %w", err)
		}
		for _, item := range result.Items {
			entry, err := unmarshalEntry(item)
			if err != nil {
				log.Warn().Err(err).Msg("Skipping unreadable config entry")
				continue
			}
			out = append(out, entry)
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	sortEntries(out)
	return out, nil
}

func (s *DynamoEntryStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting config entry from DynamoDB: %w", err)
	}
	return nil
}

func unmarshalEntry(item map[string]types.AttributeValue) (*models.ConfigEntry, error) {
	var record models.ConfigEntryRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling config entry: %w", err)
	}
	return record.ToEntry()
}

func sortEntries(entries []*models.ConfigEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
