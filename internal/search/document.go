// Package search derives relation documents from registered entries and defines the
// index they are stored in.
package search

import "context"

// Document is one subject/predicate/object relation published by a registered API.
// Keyword fields are case-folded for exact matching; Display keeps the original case.
type Document struct {
	ID         string   `json:"id"`
	EntryID    string   `json:"entry_id"`
	Subject    string   `json:"subject"`
	Object     string   `json:"object"`
	Predicate  string   `json:"predicate"`
	Node       []string `json:"node"`
	ProvidedBy string   `json:"provided_by,omitempty"`
	Display    Display  `json:"display"`
	API        APIRef   `json:"api"`
}

type Display struct {
	Subject   string `json:"subject"`
	Object    string `json:"object"`
	Predicate string `json:"predicate"`
}

// APIRef is a denormalized back-reference to the entry that supplied a relation.
type APIRef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Owner       string         `json:"owner"`
	SmartAPI    SmartAPIRef    `json:"smartapi"`
	Tags        []string       `json:"tags,omitempty"`
	XTranslator map[string]any `json:"x-translator,omitempty"`
}

type SmartAPIRef struct {
	ID       string `json:"id"`
	Metadata string `json:"metadata"`
	UI       string `json:"ui"`
}

// Query filters relation documents. Each non-empty field is an any-of match set;
// fields are combined with AND.
type Query struct {
	Subject   []string
	Object    []string
	Predicate []string
	Node      []string
	From      int
	Size      int
}

type Result struct {
	Total uint64     `json:"total"`
	Hits  []Document `json:"hits"`
}

// Field names accepted by Suggest.
const (
	FieldSubject    = "subject"
	FieldObject     = "object"
	FieldPredicate  = "predicate"
	FieldNode       = "node"
	FieldProvidedBy = "provided_by"
)

// SuggestFields lists the fields that support value aggregation.
var SuggestFields = []string{FieldSubject, FieldObject, FieldPredicate, FieldNode, FieldProvidedBy}

// IsSuggestField reports whether field can be aggregated.
func IsSuggestField(field string) bool {
	for _, f := range SuggestFields {
		if f == field {
			return true
		}
	}
	return false
}

const (
	DefaultSize = 10
	MaxSize     = 1000
)

// Index stores relation documents.
type Index interface {
	// Put replaces every document of entryID with docs.
	Put(ctx context.Context, entryID string, docs []Document) error
	DeleteByEntry(ctx context.Context, entryID string) error
	Search(ctx context.Context, q Query) (*Result, error)
	// Suggest aggregates the values of field with their document counts.
	Suggest(ctx context.Context, field string, size int) (map[string]int, error)
	// EntryIDs lists the entries that currently have documents.
	EntryIDs(ctx context.Context) ([]string, error)
	Close() error
}

// Normalize clamps pagination parameters.
func (q Query) Normalize() Query {
	if q.From < 0 {
		q.From = 0
	}
	if q.Size <= 0 {
		q.Size = DefaultSize
	}
	if q.Size > MaxSize {
		q.Size = MaxSize
	}
	return q
}
