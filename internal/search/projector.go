package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/utils"
)

const (
	// kgsOperationsKey is the document extension that carries relation metadata.
	kgsOperationsKey = "x-bte-kgs-operations"
	biolinkPrefix    = "biolink:"
	descriptionLimit = 120
)

// Projector turns a validated document into relation documents.
type Projector struct {
	uiBaseURL string
}

// NewProjector builds a projector. uiBaseURL prefixes the UI link of each hit.
func NewProjector(uiBaseURL string) *Projector {
	return &Projector{uiBaseURL: strings.TrimRight(uiBaseURL, "/")}
}

// Project derives the relation documents of entry e from its parsed document and, for
// TRAPI services, from the downloaded meta knowledge graph kg (nil when there is none).
// The output is deterministic: the same entry and content always give the same documents
// in the same order. Documents without relation metadata yield nil.
func (p *Projector) Project(e *domain.Entry, doc map[string]any, kg *MetaKG) []Document {
	edges := sortEdges(append(extractEdges(doc), kg.edges()...))
	if len(edges) == 0 {
		return nil
	}

	ref := APIRef{
		Name:        e.Title,
		Description: utils.Truncate(e.Description, descriptionLimit),
		Owner:       e.Owner,
		SmartAPI: SmartAPIRef{
			ID:       e.ID,
			Metadata: e.URL,
			UI:       p.uiBaseURL + "/" + e.ID,
		},
		Tags:        tagNames(doc),
		XTranslator: xTranslator(doc),
	}

	docs := make([]Document, 0, len(edges))
	for i, ed := range edges {
		subject := strings.ToLower(ed.subject)
		object := strings.ToLower(ed.object)
		node := []string{subject}
		if object != subject {
			node = append(node, object)
		}
		api := ref
		if ed.trapi {
			api.Tags = append(append([]string(nil), ref.Tags...), TagTRAPI)
		}
		docs = append(docs, Document{
			ID:         fmt.Sprintf("%s:%d", e.ID, i),
			EntryID:    e.ID,
			Subject:    subject,
			Object:     object,
			Predicate:  strings.ToLower(ed.predicate),
			Node:       node,
			ProvidedBy: ed.source,
			Display: Display{
				Subject:   ed.subject,
				Object:    ed.object,
				Predicate: ed.predicate,
			},
			API: api,
		})
	}
	return docs
}

type edge struct {
	subject   string
	object    string
	predicate string
	source    string
	trapi     bool
}

func (e edge) key() string {
	k := strings.ToLower(e.subject) + "\x00" + strings.ToLower(e.predicate) + "\x00" +
		strings.ToLower(e.object) + "\x00" + e.source
	if e.trapi {
		k += "\x00" + TagTRAPI
	}
	return k
}

// extractEdges collects relations from components.x-bte-kgs-operations and from
// inline operations under paths.*.*.x-bte-kgs-operations. $ref items in paths point
// back into components and are already covered.
func extractEdges(doc map[string]any) []edge {
	var ops []map[string]any

	if comps, ok := doc["components"].(map[string]any); ok {
		if kgs, ok := comps[kgsOperationsKey].(map[string]any); ok {
			for _, v := range kgs {
				ops = append(ops, asOps(v)...)
			}
		}
	}

	if paths, ok := doc["paths"].(map[string]any); ok {
		for _, item := range paths {
			methods, _ := item.(map[string]any)
			for _, m := range methods {
				op, _ := m.(map[string]any)
				for _, o := range asOps(op[kgsOperationsKey]) {
					if _, isRef := o["$ref"]; isRef {
						continue
					}
					ops = append(ops, o)
				}
			}
		}
	}

	var edges []edge
	for _, op := range ops {
		predicate := stripPrefix(stringValue(op["predicate"]))
		if predicate == "" {
			continue
		}
		source := stringValue(op["source"])
		for _, in := range semantics(op["inputs"]) {
			for _, out := range semantics(op["outputs"]) {
				edges = append(edges, edge{subject: in, object: out, predicate: predicate, source: source})
			}
		}
	}
	return edges
}

// sortEdges orders edges and drops duplicates.
func sortEdges(edges []edge) []edge {
	sort.Slice(edges, func(i, j int) bool {
		ki, kj := edges[i].key(), edges[j].key()
		if ki != kj {
			return ki < kj
		}
		return edges[i].subject+edges[i].predicate+edges[i].object <
			edges[j].subject+edges[j].predicate+edges[j].object
	})

	out := edges[:0]
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		k := e.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// asOps accepts a single operation mapping or a list of them.
func asOps(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		ops := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				ops = append(ops, m)
			}
		}
		return ops
	}
	return nil
}

func semantics(v any) []string {
	var out []string
	for _, item := range asOps(v) {
		if s := stripPrefix(stringValue(item["semantic"])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripPrefix(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), biolinkPrefix)
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func tagNames(doc map[string]any) []string {
	var tags []string
	for _, t := range asOps(doc["tags"]) {
		if name := stringValue(t["name"]); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

func xTranslator(doc map[string]any) map[string]any {
	info, _ := doc["info"].(map[string]any)
	xt, _ := info["x-translator"].(map[string]any)
	return xt
}
