package search

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TagTRAPI marks relations read from a TRAPI meta_knowledge_graph endpoint.
const TagTRAPI = "bte-trapi"

const (
	metaKGPath = "/meta_knowledge_graph"
	queryPath  = "/query"
)

// MetaKG is the part of a TRAPI meta_knowledge_graph response the registry indexes.
type MetaKG struct {
	Edges []MetaKGEdge `json:"edges"`
}

type MetaKGEdge struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// MetaKGURL returns the meta_knowledge_graph endpoint of a TRAPI service. A document is
// a TRAPI service when it declares both the /meta_knowledge_graph and /query paths, names
// its Translator team and lists at least one server.
func MetaKGURL(doc map[string]any) (string, bool) {
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths[metaKGPath]; !ok {
		return "", false
	}
	if _, ok := paths[queryPath]; !ok {
		return "", false
	}
	if !hasTeam(xTranslator(doc)) {
		return "", false
	}

	servers := asOps(doc["servers"])
	if len(servers) == 0 {
		return "", false
	}
	server := strings.TrimRight(stringValue(servers[0]["url"]), "/")
	if server == "" {
		return "", false
	}
	return server + metaKGPath, true
}

// ParseMetaKG decodes a meta_knowledge_graph response body.
func ParseMetaKG(body []byte) (*MetaKG, error) {
	var kg MetaKG
	if err := json.Unmarshal(body, &kg); err != nil {
		return nil, fmt.Errorf("decode meta knowledge graph: %w", err)
	}
	return &kg, nil
}

// edges converts the response into relations. Entries missing a subject, object or
// predicate are skipped.
func (kg *MetaKG) edges() []edge {
	if kg == nil {
		return nil
	}
	out := make([]edge, 0, len(kg.Edges))
	for _, e := range kg.Edges {
		ed := edge{
			subject:   stripPrefix(e.Subject),
			object:    stripPrefix(e.Object),
			predicate: stripPrefix(e.Predicate),
			trapi:     true,
		}
		if ed.subject == "" || ed.object == "" || ed.predicate == "" {
			continue
		}
		out = append(out, ed)
	}
	return out
}

func hasTeam(xt map[string]any) bool {
	switch t := xt["team"].(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	}
	return false
}
