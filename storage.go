package spaceport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// File represents a file stored in a Spaceport bucket.
type File struct {
	// ID is the unique file identifier
	ID string `json:"id"`
	// BucketID is the bucket this file belongs to
	BucketID string `json:"bucket_id"`
	// Name is the original filename
	Name string `json:"name"`
	// SizeBytes is the file size in bytes
	SizeBytes int64 `json:"size_bytes"`
	// MimeType is the detected content type
	MimeType string `json:"mime_type"`
	// CreatedAt is when the file was uploaded
	CreatedAt time.Time `json:"created_at"`
}

// StorageService provides file storage operations.
//
// Example:
//
//	f, err := os.Open("launch.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	file, err := client.Storage().Upload(ctx, "images", "", "launch.jpg", f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(client.Storage().FileDownloadURL("images", file.ID))
type StorageService struct {
	client *client
}

func newStorageService(c *client) *StorageService {
	return &StorageService{client: c}
}

// Upload stores a file in the given bucket as multipart/form-data.
// An empty fileID is replaced by a generated UniqueID. The reader is
// consumed fully before the request is sent.
func (s *StorageService) Upload(ctx context.Context, bucketID, fileID, filename string, r io.Reader) (*File, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if bucketID == "" {
		return nil, fmt.Errorf("bucket id cannot be empty")
	}
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if r == nil {
		return nil, fmt.Errorf("file reader cannot be nil")
	}

	if fileID == "" {
		fileID = UniqueID()
	}

	path := buildPath("/v1/storage/buckets/{0}/files", bucketID)
	fields := map[string]string{"fileId": fileID}

	var file File
	if err := s.client.transport.postMultipart(ctx, path, fields, "file", filename, r, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

// GetFile retrieves file metadata by id.
func (s *StorageService) GetFile(ctx context.Context, bucketID, fileID string) (*File, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateFileRef(bucketID, fileID); err != nil {
		return nil, err
	}

	path := buildPath("/v1/storage/buckets/{0}/files/{1}", bucketID, fileID)

	var file File
	if err := s.client.transport.get(ctx, path, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

// DeleteFile removes a file from its bucket.
func (s *StorageService) DeleteFile(ctx context.Context, bucketID, fileID string) error {
	if err := s.client.checkClosed(); err != nil {
		return err
	}

	if err := validateFileRef(bucketID, fileID); err != nil {
		return err
	}

	path := buildPath("/v1/storage/buckets/{0}/files/{1}", bucketID, fileID)
	return s.client.transport.delete(ctx, path)
}

// FileDownloadURL returns the absolute download URL for a file.
// No request is made; the URL can be embedded directly in web pages
// or handed to a download manager.
func (s *StorageService) FileDownloadURL(bucketID, fileID string) string {
	path := buildPath("/v1/storage/buckets/{0}/files/{1}/download", bucketID, fileID)
	return strings.TrimSuffix(s.client.config.Endpoint, "/") + path
}

func validateFileRef(bucketID, fileID string) error {
	if bucketID == "" {
		return fmt.Errorf("bucket id cannot be empty")
	}
	if fileID == "" {
		return fmt.Errorf("file id cannot be empty")
	}
	return nil
}
