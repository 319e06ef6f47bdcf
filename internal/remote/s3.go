package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hearthside/gallery/internal/config"
	"github.com/hearthside/gallery/internal/models"
)

// libraryIndex is the JSON document object that describes the whole library in
// an S3-compatible bucket. It is replaced wholesale on every metadata write;
// the single-owner model makes lost-update races a non-concern.
type libraryIndex struct {
	Images []models.MediaRecord   `json:"images"`
	Videos []models.MediaRecord   `json:"videos"`
	Events []models.TimelineEvent `json:"events"`
}

// S3Library stores the media index as a JSON object and blobs as sibling
// objects in one bucket. It implements both Library and BlobFetcher; thumbnail
// locators are object keys.
type S3Library struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	indexKey string
}

// NewS3Library configures a client targeting the provided object store.
func NewS3Library(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Library, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 library: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	indexKey := strings.TrimLeft(cfg.IndexKey, "/")
	if indexKey == "" {
		indexKey = "index/library.json"
	}

	return &S3Library{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		indexKey: indexKey,
	}, nil
}

// ListImages returns the image records from the index document.
func (l *S3Library) ListImages(ctx context.Context) ([]models.MediaRecord, error) {
	idx, err := l.readIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return idx.Images, nil
}

// ListVideos returns the video records from the index document.
func (l *S3Library) ListVideos(ctx context.Context) ([]models.MediaRecord, error) {
	idx, err := l.readIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return idx.Videos, nil
}

// ListEvents returns the timeline events from the index document.
func (l *S3Library) ListEvents(ctx context.Context) ([]models.TimelineEvent, error) {
	idx, err := l.readIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return idx.Events, nil
}

// AddMedia uploads the media bytes under both locators the record advertises
// and appends the record to the index. There is no server-side scaler in this
// backend mode, so the thumbnail object is the unscaled original.
func (l *S3Library) AddMedia(ctx context.Context, record models.MediaRecord, data io.Reader) error {
	thumbKey := strings.TrimLeft(record.ThumbURL, "/")
	if thumbKey == "" {
		return fmt.Errorf("s3 library: record %s has no object key", record.ID)
	}

	mediaKey := strings.TrimLeft(record.DownloadURL, "/")
	if record.Kind == models.KindVideo {
		mediaKey = strings.TrimLeft(record.VideoPath, "/")
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("s3 library: read media payload: %w", err)
	}

	keys := []string{thumbKey}
	if mediaKey != "" && mediaKey != thumbKey {
		keys = append(keys, mediaKey)
	}
	for _, key := range keys {
		_, err := l.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(payload),
		})
		if err != nil {
			return fmt.Errorf("s3 library upload %s: %w", key, err)
		}
	}

	return l.updateIndex(ctx, func(idx *libraryIndex) {
		if record.Kind == models.KindVideo {
			idx.Videos = append(idx.Videos, record)
			return
		}
		idx.Images = append(idx.Images, record)
	})
}

// SetMediaEvent rewrites the event label on the matching index record.
func (l *S3Library) SetMediaEvent(ctx context.Context, mediaID, event string) error {
	found := false
	err := l.updateIndex(ctx, func(idx *libraryIndex) {
		for i := range idx.Images {
			if idx.Images[i].ID == mediaID {
				idx.Images[i].Event = event
				found = true
			}
		}
		for i := range idx.Videos {
			if idx.Videos[i].ID == mediaID {
				idx.Videos[i].Event = event
				found = true
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("set media event %s: %w", mediaID, ErrNotFound)
	}
	return nil
}

// DeleteEvent drops the event from the index.
func (l *S3Library) DeleteEvent(ctx context.Context, eventID string) error {
	found := false
	err := l.updateIndex(ctx, func(idx *libraryIndex) {
		kept := idx.Events[:0]
		for _, ev := range idx.Events {
			if ev.ID == eventID {
				found = true
				continue
			}
			kept = append(kept, ev)
		}
		idx.Events = kept
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("delete event %s: %w", eventID, ErrNotFound)
	}
	return nil
}

// FetchThumb downloads the object named by the locator.
func (l *S3Library) FetchThumb(ctx context.Context, thumbURL string) ([]byte, error) {
	key := strings.TrimLeft(thumbURL, "/")
	if key == "" {
		return nil, fmt.Errorf("s3 library: empty thumb key")
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 library fetch %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 library fetch %s: read body: %w", key, err)
	}
	return data, nil
}

func (l *S3Library) readIndex(ctx context.Context) (libraryIndex, error) {
	var idx libraryIndex

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.indexKey),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			// A bucket without an index is an empty library.
			return libraryIndex{}, nil
		}
		return idx, fmt.Errorf("read index %s: %w", l.indexKey, err)
	}
	defer out.Body.Close()

	if err := json.NewDecoder(out.Body).Decode(&idx); err != nil {
		return idx, fmt.Errorf("decode index %s: %w", l.indexKey, err)
	}
	return idx, nil
}

func (l *S3Library) updateIndex(ctx context.Context, mutate func(*libraryIndex)) error {
	idx, err := l.readIndex(ctx)
	if err != nil {
		return err
	}

	mutate(&idx)

	payload, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	_, err = l.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(l.indexKey),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("write index %s: %w", l.indexKey, err)
	}
	return nil
}
