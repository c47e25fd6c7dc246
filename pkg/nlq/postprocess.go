package nlq

import (
	"fmt"
	"strings"
)

const (
	defaultPharmacopoeiaID   = "2998"
	defaultPharmacopoeiaName = "中华人民共和国药典2025版"

	evidenceLimit       = 6
	evidenceRefersTo    = 3
	evidenceRelated     = 2
	contentPreviewRunes = 50
)

// TrimQueryResult bounds a raw query result for transport and prompting.
// Arrays are truncated to maxRows at every level, keys starting with "__"
// are dropped, and recursion stops past maxDepth, returning the subtree
// untouched.
func TrimQueryResult(result map[string]any, maxDepth, maxRows int) map[string]any {
	trimmed, _ := trimValue(result, 0, maxDepth, maxRows).(map[string]any)
	if trimmed == nil {
		return map[string]any{}
	}
	return trimmed
}

func trimValue(value any, depth, maxDepth, maxRows int) any {
	if depth > maxDepth || value == nil {
		return value
	}

	switch v := value.(type) {
	case []any:
		limit := len(v)
		if maxRows > 0 && limit > maxRows {
			limit = maxRows
		}
		out := make([]any, 0, limit)
		for _, item := range v[:limit] {
			out = append(out, trimValue(item, depth+1, maxDepth, maxRows))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if strings.HasPrefix(key, "__") {
				continue
			}
			out[key] = trimValue(item, depth+1, maxDepth, maxRows)
		}
		return out
	default:
		return value
	}
}

// ExtractGraph walks a query result and collects the subgraph it mentions.
// Nodes are keyed by doc_id (falling back to id), first occurrence wins.
// Edges carry ids of the form source-TYPE-target and are deduped the same
// way. Absent relation fields simply yield no edges.
func ExtractGraph(result map[string]any) GraphData {
	ex := &graphExtractor{
		nodeIDs: map[string]bool{},
		edgeIDs: map[string]bool{},
		graph:   GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}},
	}
	ex.traverse(result, "")
	return ex.graph
}

type graphExtractor struct {
	nodeIDs map[string]bool
	edgeIDs map[string]bool
	graph   GraphData
}

func (ex *graphExtractor) traverse(value any, parentType string) {
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			ex.traverse(item, parentType)
		}
	case map[string]any:
		if entityID(v) != "" {
			entityType := parentType
			if entityType == "" {
				entityType = "Medicine"
			}
			ex.processEntity(v, entityType)
			return
		}
		for key, item := range v {
			switch key {
			case "medicines", "Medicine":
				ex.traverse(item, "Medicine")
			case "volumes", "Volume":
				ex.traverse(item, "Volume")
			case "categories", "Category":
				ex.traverse(item, "Category")
			default:
				ex.traverse(item, parentType)
			}
		}
	}
}

func (ex *graphExtractor) processEntity(entity map[string]any, entityType string) {
	ex.addNode(entity, entityType)
	if entityType != "Medicine" {
		return
	}

	id := entityID(entity)

	if pharm, ok := entity["pharmacopoeia"].(map[string]any); ok {
		pharmID := stringField(pharm, "id")
		if pharmID == "" {
			pharmID = defaultPharmacopoeiaID
		}
		if !ex.nodeIDs[pharmID] {
			ex.nodeIDs[pharmID] = true
			label := stringField(pharm, "name")
			if label == "" {
				label = defaultPharmacopoeiaName
			}
			ex.graph.Nodes = append(ex.graph.Nodes, GraphNode{
				ID:         pharmID,
				Label:      label,
				Type:       "Pharmacopoeia",
				Properties: pharm,
			})
		}
		if id != "" {
			ex.addEdge(id, pharmID, "BELONGS_TO", map[string]any{})
		}
	}

	if referred, ok := entity["refersTo"].([]any); ok {
		for _, item := range referred {
			ref, ok := item.(map[string]any)
			if !ok {
				continue
			}
			refID := entityID(ref)
			if refID == "" {
				continue
			}
			ex.addNode(ref, "Medicine")
			if id != "" {
				ex.addEdge(id, refID, "REFER_TO", map[string]any{"label": "引用"})
			}
		}
	}

	if related, ok := entity["relatedByCategory"].([]any); ok {
		for _, item := range related {
			rel, ok := item.(map[string]any)
			if !ok {
				continue
			}
			relID := entityID(rel)
			if relID == "" {
				continue
			}
			ex.addNode(rel, "Medicine")
			if id != "" {
				ex.addEdge(id, relID, "RELATED", map[string]any{"label": "同类别"})
			}
		}
	}
}

func (ex *graphExtractor) addNode(entity map[string]any, entityType string) {
	id := entityID(entity)
	if id == "" || ex.nodeIDs[id] {
		return
	}
	ex.nodeIDs[id] = true

	label := stringField(entity, "name")
	if label == "" {
		label = id
	}
	ex.graph.Nodes = append(ex.graph.Nodes, GraphNode{
		ID:         id,
		Label:      label,
		Type:       entityType,
		Properties: entity,
	})
}

func (ex *graphExtractor) addEdge(source, target, edgeType string, properties map[string]any) {
	id := edgeID(source, edgeType, target)
	if ex.edgeIDs[id] {
		return
	}
	ex.edgeIDs[id] = true
	ex.graph.Edges = append(ex.graph.Edges, GraphEdge{
		ID:         id,
		Source:     source,
		Target:     target,
		Type:       edgeType,
		Properties: properties,
	})
}

// TrimGraph caps graph size: nodes keep their first maxNodes entries,
// edges lose dangling endpoints first and are then capped at maxEdges.
func TrimGraph(graph GraphData, maxNodes, maxEdges int) GraphData {
	nodes := graph.Nodes
	if maxNodes > 0 && len(nodes) > maxNodes {
		nodes = nodes[:maxNodes]
	}

	kept := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		kept[n.ID] = true
	}

	edges := []GraphEdge{}
	for _, e := range graph.Edges {
		if !kept[e.Source] || !kept[e.Target] {
			continue
		}
		edges = append(edges, e)
		if maxEdges > 0 && len(edges) >= maxEdges {
			break
		}
	}

	return GraphData{Nodes: nodes, Edges: edges}
}

// GenerateEvidence builds human-readable evidence rows from the top-level
// medicines of a query result. Edge ids are derived exactly as ExtractGraph
// derives them so evidence rows can highlight graph elements.
func GenerateEvidence(result map[string]any) []EvidenceItem {
	evidence := []EvidenceItem{}

	medicines, ok := result["medicines"].([]any)
	if !ok {
		return evidence
	}

	for i, item := range medicines {
		if i >= evidenceLimit {
			break
		}
		medicine, ok := item.(map[string]any)
		if !ok {
			continue
		}
		medID := entityID(medicine)

		text := fmt.Sprintf("【%s】", stringField(medicine, "name"))
		if category := stringField(medicine, "category"); category != "" {
			text += fmt.Sprintf(" - 分类：%s", category)
		}
		if edition := stringField(medicine, "edition"); edition != "" {
			text += fmt.Sprintf(" (%s)", edition)
		}
		if content := stringField(medicine, "content"); content != "" {
			runes := []rune(content)
			if len(runes) > contentPreviewRunes {
				text += fmt.Sprintf("。%s...", string(runes[:contentPreviewRunes]))
			} else {
				text += fmt.Sprintf("。%s", content)
			}
		}

		evidence = append(evidence, EvidenceItem{
			Text:    text,
			NodeIDs: []string{medID},
			EdgeIDs: []string{},
		})

		if referred, ok := medicine["refersTo"].([]any); ok {
			for j, refItem := range referred {
				if j >= evidenceRefersTo {
					break
				}
				ref, ok := refItem.(map[string]any)
				if !ok {
					continue
				}
				refID := entityID(ref)

				refText := fmt.Sprintf("  ↳ 引用：【%s】", stringField(ref, "name"))
				if category := stringField(ref, "category"); category != "" {
					refText += fmt.Sprintf(" - %s", category)
				}
				evidence = append(evidence, EvidenceItem{
					Text:    refText,
					NodeIDs: []string{refID},
					EdgeIDs: []string{edgeID(medID, "REFER_TO", refID)},
				})
			}
		}

		if related, ok := medicine["relatedByCategory"].([]any); ok {
			for j, relItem := range related {
				if j >= evidenceRelated {
					break
				}
				rel, ok := relItem.(map[string]any)
				if !ok {
					continue
				}
				relID := entityID(rel)

				relText := fmt.Sprintf("  ↳ 同类：【%s】", stringField(rel, "name"))
				if category := stringField(rel, "category"); category != "" {
					relText += fmt.Sprintf(" - %s", category)
				}
				evidence = append(evidence, EvidenceItem{
					Text:    relText,
					NodeIDs: []string{relID},
					EdgeIDs: []string{edgeID(medID, "RELATED", relID)},
				})
			}
		}
	}

	if len(evidence) > evidenceLimit {
		evidence = evidence[:evidenceLimit]
	}
	return evidence
}

func edgeID(source, edgeType, target string) string {
	return fmt.Sprintf("%s-%s-%s", source, edgeType, target)
}

func entityID(entity map[string]any) string {
	if id := stringField(entity, "doc_id"); id != "" {
		return id
	}
	return stringField(entity, "id")
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
