package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/greenmart/api/internal/domain"
)

const defaultWriteTimeout = 30 * time.Second

var objectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._/-]*$`)

// MediaClient stores catalog media in a Cloud Storage bucket and returns
// publicly addressable URLs.
type MediaClient struct {
	bucket        string
	publicBaseURL string
	client        *storage.Client
	clientOpts    []option.ClientOption
	ownsClient    bool
	idGen         func() string
	clock         func() time.Time
}

// MediaOption customises MediaClient construction.
type MediaOption func(*MediaClient)

// WithGCSClient injects a preconfigured storage client (primarily for tests).
func WithGCSClient(client *storage.Client) MediaOption {
	return func(c *MediaClient) {
		c.client = client
	}
}

// WithClientOptions forwards Cloud client options when constructing the storage client.
func WithClientOptions(opts ...option.ClientOption) MediaOption {
	return func(c *MediaClient) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// WithIDGenerator overrides object identifier generation.
func WithIDGenerator(idGen func() string) MediaOption {
	return func(c *MediaClient) {
		if idGen != nil {
			c.idGen = idGen
		}
	}
}

// WithClock overrides the time source used for object naming.
func WithClock(clock func() time.Time) MediaOption {
	return func(c *MediaClient) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewMediaClient builds a MediaClient for the configured bucket.
func NewMediaClient(ctx context.Context, bucket, publicBaseURL string, opts ...MediaOption) (*MediaClient, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: media bucket is required")
	}

	c := &MediaClient{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		client, err := storage.NewClient(ctx, c.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("storage: create client: %w", err)
		}
		c.client = client
		c.ownsClient = true
	}
	return c, nil
}

// Close releases the underlying client when this instance owns it.
func (c *MediaClient) Close() error {
	if c.ownsClient && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Upload writes the payload under the given folder and returns its reference.
func (c *MediaClient) Upload(ctx context.Context, data []byte, folder, contentType string) (domain.MediaObject, error) {
	if len(data) == 0 {
		return domain.MediaObject{}, errors.New("storage: empty payload")
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "misc"
	}

	name := c.objectName(folder)
	if !objectIDPattern.MatchString(name) {
		return domain.MediaObject{}, fmt.Errorf("storage: invalid object name %q", name)
	}

	writeCtx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(name).NewWriter(writeCtx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return domain.MediaObject{}, fmt.Errorf("storage: write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return domain.MediaObject{}, fmt.Errorf("storage: finalise object %s: %w", name, err)
	}

	return domain.MediaObject{ID: name, URL: c.publicURL(name)}, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (c *MediaClient) Delete(ctx context.Context, objectID string) error {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return errors.New("storage: object id is required")
	}
	err := c.client.Bucket(c.bucket).Object(objectID).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: delete object %s: %w", objectID, err)
	}
	return nil
}

func (c *MediaClient) objectName(folder string) string {
	id := ""
	if c.idGen != nil {
		id = strings.TrimSpace(c.idGen())
	}
	if id == "" {
		id = fmt.Sprintf("%d", c.clock().UTC().UnixNano())
	}
	return fmt.Sprintf("%s/%s", folder, strings.ToLower(id))
}

func (c *MediaClient) publicURL(name string) string {
	if c.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", c.publicBaseURL, name)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucket, name)
}
