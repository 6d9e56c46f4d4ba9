package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/models"
)

// S3Client defines the interface for S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const stationKeyPrefix = "stations/"

// S3StationCache stores registry metadata as one JSON object per station
type S3StationCache struct {
	client     S3Client
	bucketName string
	ttl        time.Duration
	clock      clock
}

// StationCacheRecord represents a cached station with metadata
type StationCacheRecord struct {
	Station     models.Station `json:"station"`
	LastUpdated int64          `json:"lastUpdated"`
	TTL         int64          `json:"ttl"`
}

var _ StationStore = (*S3StationCache)(nil)

func NewS3StationCache(client S3Client, bucketName string, ttl time.Duration) *S3StationCache {
	return &S3StationCache{
		client:     client,
		bucketName: bucketName,
		ttl:        ttl,
		clock:      systemClock{},
	}
}

func stationObjectKey(stationID string) string {
	return stationKeyPrefix + stationID + ".json"
}

// GetStation retrieves a station from S3 if present and not expired
func (c *S3StationCache) GetStation(ctx context.Context, stationID string) (*models.Station, error) {
	if c.bucketName == "" {
		return nil, fmt.Errorf("empty bucket name")
	}

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(stationObjectKey(stationID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting station %s from S3: %w", stationID, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	var record StationCacheRecord
	if err := json.NewDecoder(result.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding cache record: %w", err)
	}

	if c.clock.Now().Unix() > record.TTL {
		log.Debug().Str("station_id", stationID).Msg("Station cache entry expired")
		return nil, nil
	}

	return &record.Station, nil
}

// SaveStation saves a station to S3
func (c *S3StationCache) SaveStation(ctx context.Context, station *models.Station) error {
	if c.bucketName == "" {
		return fmt.Errorf("empty bucket name")
	}
	if station == nil || station.ID == "" {
		return fmt.Errorf("station ID is required")
	}

	now := c.clock.Now().Unix()
	record := StationCacheRecord{
		Station:     *station,
		LastUpdated: now,
		TTL:         now + int64(c.ttl.Seconds()),
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(record); err != nil {
		return fmt.Errorf("encoding cache record: %w", err)
	}

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(stationObjectKey(station.ID)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("saving to S3: %w", err)
	}

	log.Debug().Str("station_id", station.ID).Msg("Saved station to S3 cache")
	return nil
}
