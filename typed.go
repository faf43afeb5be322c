package spaceport

import (
	"context"
)

// TypedDocument pairs a Document with its payload decoded into type T.
// The embedded Document carries the server metadata (ids, timestamps and
// the raw payload); Value holds the decoded form.
//
// Example:
//
//	doc, err := articles.Get(ctx, "42", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(doc.ID, doc.Value.Title)
type TypedDocument[T any] struct {
	Document

	// Value is the document payload decoded into T
	Value T
}

// Collection provides type-safe document operations for a single collection.
// It uses Go generics to eliminate manual Decode calls and type assertions:
// every operation returns the payload already decoded into T.
//
// Relation typing stays runtime-only. Resolved relations arrive inside the
// payload, so model them as nested structs or json.RawMessage fields on T
// depending on whether you request resolution.
//
// Example:
//
//	type Article struct {
//	    Title string `json:"title"`
//	    Views int    `json:"views"`
//	}
//
//	articles := spaceport.NewCollection[Article](client, "main", "articles")
//
//	created, err := articles.Create(ctx, "", Article{Title: "First flight"})
//	if err != nil {
//	    return err
//	}
//
//	fetched, err := articles.Get(ctx, created.ID, nil)
//	fmt.Println(fetched.Value.Title) // already an Article
type Collection[T any] struct {
	databases    *DatabasesService
	databaseID   string
	collectionID string
}

// NewCollection creates a typed view over one collection of a database.
//
// Example:
//
//	articles := spaceport.NewCollection[Article](client, "main", "articles")
//	crew := spaceport.NewCollection[CrewMember](client, "main", "crew")
func NewCollection[T any](client Client, databaseID, collectionID string) *Collection[T] {
	return &Collection[T]{
		databases:    client.Databases(),
		databaseID:   databaseID,
		collectionID: collectionID,
	}
}

// Create stores a typed document. An empty documentID is replaced by a
// generated UniqueID.
func (c *Collection[T]) Create(ctx context.Context, documentID string, value T) (*TypedDocument[T], error) {
	doc, err := c.databases.CreateDocument(ctx, c.databaseID, c.collectionID, documentID, value)
	if err != nil {
		return nil, err
	}
	return decodeTypedDocument[T](doc)
}

// Get retrieves a typed document by id. Pass opts to resolve relation
// fields before decoding.
func (c *Collection[T]) Get(ctx context.Context, documentID string, opts *DocumentOptions) (*TypedDocument[T], error) {
	doc, err := c.databases.GetDocument(ctx, c.databaseID, c.collectionID, documentID, opts)
	if err != nil {
		return nil, err
	}
	return decodeTypedDocument[T](doc)
}

// List retrieves a page of typed documents.
//
// Example:
//
//	page, err := articles.List(ctx, &spaceport.ListOptions{
//	    Limit:   20,
//	    OrderBy: "-created_at",
//	})
//	for _, doc := range page {
//	    fmt.Println(doc.Value.Title)
//	}
func (c *Collection[T]) List(ctx context.Context, opts *ListOptions) ([]TypedDocument[T], error) {
	list, err := c.databases.ListDocuments(ctx, c.databaseID, c.collectionID, opts)
	if err != nil {
		return nil, err
	}

	docs := make([]TypedDocument[T], 0, len(list.Documents))
	for i := range list.Documents {
		typed, err := decodeTypedDocument[T](&list.Documents[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, *typed)
	}

	return docs, nil
}

// Update applies a typed partial update to a document.
func (c *Collection[T]) Update(ctx context.Context, documentID string, value T) (*TypedDocument[T], error) {
	doc, err := c.databases.UpdateDocument(ctx, c.databaseID, c.collectionID, documentID, value)
	if err != nil {
		return nil, err
	}
	return decodeTypedDocument[T](doc)
}

// Delete removes a document from the collection.
func (c *Collection[T]) Delete(ctx context.Context, documentID string) error {
	return c.databases.DeleteDocument(ctx, c.databaseID, c.collectionID, documentID)
}

// decodeTypedDocument decodes a document payload into T. A document with an
// empty payload decodes to the zero value of T.
func decodeTypedDocument[T any](doc *Document) (*TypedDocument[T], error) {
	typed := &TypedDocument[T]{Document: *doc}
	if len(doc.Data) == 0 {
		return typed, nil
	}
	if err := deserialize(doc.Data, &typed.Value); err != nil {
		return nil, err
	}
	return typed, nil
}

// Standalone generic functions for convenience
//
// These functions provide type-safe operations without creating a Collection.
// They're useful for one-off operations or when you don't want to hold
// a dedicated collection handle.

// GetTyped retrieves a single typed document using the provided client.
//
// Example:
//
//	article, err := spaceport.GetTyped[Article](ctx, client, "main", "articles", "42", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(article.Value.Title)
func GetTyped[T any](ctx context.Context, client Client, databaseID, collectionID, documentID string, opts *DocumentOptions) (*TypedDocument[T], error) {
	doc, err := client.Databases().GetDocument(ctx, databaseID, collectionID, documentID, opts)
	if err != nil {
		return nil, err
	}
	return decodeTypedDocument[T](doc)
}

// CreateTyped stores a single typed document using the provided client.
//
// Example:
//
//	created, err := spaceport.CreateTyped(ctx, client, "main", "articles", "", Article{
//	    Title: "First flight",
//	})
func CreateTyped[T any](ctx context.Context, client Client, databaseID, collectionID, documentID string, value T) (*TypedDocument[T], error) {
	doc, err := client.Databases().CreateDocument(ctx, databaseID, collectionID, documentID, value)
	if err != nil {
		return nil, err
	}
	return decodeTypedDocument[T](doc)
}
