package spaceport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// UniqueID generates a unique identifier suitable for documents, files and
// idempotency keys. The SDK calls it automatically when an operation is given
// an empty id.
func UniqueID() string {
	return uuid.NewString()
}

// Document represents a document stored in a Spaceport database.
// The document payload lives in Data as raw JSON; use Decode to unmarshal
// it into a Go type, or the generic Collection API in typed.go.
//
// Relation fields resolved by the server (see DocumentOptions.Resolve)
// appear inside Data as nested documents.
type Document struct {
	// ID is the unique document identifier
	ID string `json:"id"`
	// CollectionID is the collection this document belongs to
	CollectionID string `json:"collection_id"`
	// DatabaseID is the database this document belongs to
	DatabaseID string `json:"database_id"`
	// CreatedAt is when the document was created
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the document was last updated
	UpdatedAt time.Time `json:"updated_at"`
	// Data is the JSON-encoded document payload
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document payload into dest.
// The destination must be a pointer to the expected type.
//
// Example:
//
//	var article Article
//	if err := doc.Decode(&article); err != nil {
//	    log.Fatal(err)
//	}
func (d *Document) Decode(dest interface{}) error {
	return deserialize(d.Data, dest)
}

// DocumentList is a page of documents returned by ListDocuments.
type DocumentList struct {
	// Total is the number of documents matching the query, across all pages
	Total int `json:"total"`
	// Documents holds the documents in this page
	Documents []Document `json:"documents"`
}

// DocumentOptions controls how a single document is fetched.
type DocumentOptions struct {
	// Resolve names relation fields to expand into nested documents.
	// Each name becomes a repeated "resolve" query parameter. Relation
	// resolution happens server-side at request time; unresolved relations
	// stay as plain ids inside Data.
	Resolve []string

	// ResolveDepth limits how many relation levels are expanded.
	// Zero means the server default.
	ResolveDepth int
}

// ListOptions controls pagination and ordering for list operations.
// All fields are optional.
type ListOptions struct {
	// Limit is the maximum number of results per page
	Limit int
	// Offset skips that many results
	Offset int
	// Cursor resumes listing after the given resource id
	Cursor string
	// OrderBy names the field to sort by, prefix with "-" for descending
	OrderBy string
	// Resolve names relation fields to expand, as in DocumentOptions
	Resolve []string
	// ResolveDepth limits relation expansion depth
	ResolveDepth int
}

// documentRequest is the write payload for create and update operations
type documentRequest struct {
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// DatabasesService provides document database operations.
//
// Example:
//
//	doc, err := client.Databases().CreateDocument(ctx, "main", "articles", "", Article{
//	    Title: "First flight",
//	    Views: 0,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.ID)
type DatabasesService struct {
	client *client
}

func newDatabasesService(c *client) *DatabasesService {
	return &DatabasesService{client: c}
}

// CreateDocument creates a document in the given collection.
// An empty documentID is replaced by a generated UniqueID.
// The data value can be any JSON-serializable type, a JSON string, or
// json.RawMessage.
func (s *DatabasesService) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data interface{}) (*Document, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateCollectionRef(databaseID, collectionID); err != nil {
		return nil, err
	}

	if documentID == "" {
		documentID = UniqueID()
	}

	payload, err := serialize(data)
	if err != nil {
		return nil, err
	}

	path := buildPath("/v1/databases/{0}/collections/{1}/documents", databaseID, collectionID)

	var doc Document
	if err := s.client.transport.post(ctx, path, &documentRequest{ID: documentID, Data: payload}, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// GetDocument retrieves a document by id. Pass opts to resolve relation
// fields into nested documents.
//
// Example:
//
//	doc, err := client.Databases().GetDocument(ctx, "main", "articles", "42", &spaceport.DocumentOptions{
//	    Resolve:      []string{"author", "comments"},
//	    ResolveDepth: 2,
//	})
func (s *DatabasesService) GetDocument(ctx context.Context, databaseID, collectionID, documentID string, opts *DocumentOptions) (*Document, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateDocumentRef(databaseID, collectionID, documentID); err != nil {
		return nil, err
	}

	path := buildPath("/v1/databases/{0}/collections/{1}/documents/{2}", databaseID, collectionID, documentID)

	if opts != nil {
		values := url.Values{}
		for _, field := range opts.Resolve {
			values.Add("resolve", field)
		}
		if opts.ResolveDepth > 0 {
			values.Set("depth", strconv.Itoa(opts.ResolveDepth))
		}
		if encoded := values.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}

	var doc Document
	if err := s.client.transport.get(ctx, path, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// ListDocuments lists documents in a collection with optional pagination,
// ordering and relation resolution.
func (s *DatabasesService) ListDocuments(ctx context.Context, databaseID, collectionID string, opts *ListOptions) (*DocumentList, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateCollectionRef(databaseID, collectionID); err != nil {
		return nil, err
	}

	path := buildPath("/v1/databases/{0}/collections/{1}/documents", databaseID, collectionID)
	if query := encodeListOptions(opts); query != "" {
		path += "?" + query
	}

	var list DocumentList
	if err := s.client.transport.get(ctx, path, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

// UpdateDocument applies a partial update to a document. Only the fields
// present in data are changed.
func (s *DatabasesService) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data interface{}) (*Document, error) {
	if err := s.client.checkClosed(); err != nil {
		return nil, err
	}

	if err := validateDocumentRef(databaseID, collectionID, documentID); err != nil {
		return nil, err
	}

	payload, err := serialize(data)
	if err != nil {
		return nil, err
	}

	path := buildPath("/v1/databases/{0}/collections/{1}/documents/{2}", databaseID, collectionID, documentID)

	var doc Document
	if err := s.client.transport.patch(ctx, path, &documentRequest{Data: payload}, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// DeleteDocument removes a document.
func (s *DatabasesService) DeleteDocument(ctx context.Context, databaseID, collectionID, documentID string) error {
	if err := s.client.checkClosed(); err != nil {
		return err
	}

	if err := validateDocumentRef(databaseID, collectionID, documentID); err != nil {
		return err
	}

	path := buildPath("/v1/databases/{0}/collections/{1}/documents/{2}", databaseID, collectionID, documentID)
	return s.client.transport.delete(ctx, path)
}

func validateCollectionRef(databaseID, collectionID string) error {
	if databaseID == "" {
		return fmt.Errorf("database id cannot be empty")
	}
	if collectionID == "" {
		return fmt.Errorf("collection id cannot be empty")
	}
	return nil
}

func validateDocumentRef(databaseID, collectionID, documentID string) error {
	if err := validateCollectionRef(databaseID, collectionID); err != nil {
		return err
	}
	if documentID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	return nil
}

// encodeListOptions converts ListOptions into a URL query string
func encodeListOptions(opts *ListOptions) string {
	if opts == nil {
		return ""
	}

	values := url.Values{}
	if opts.Limit > 0 {
		values.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		values.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Cursor != "" {
		values.Set("cursor", opts.Cursor)
	}
	if opts.OrderBy != "" {
		values.Set("orderBy", opts.OrderBy)
	}
	for _, field := range opts.Resolve {
		values.Add("resolve", field)
	}
	if opts.ResolveDepth > 0 {
		values.Set("depth", strconv.Itoa(opts.ResolveDepth))
	}

	return values.Encode()
}
