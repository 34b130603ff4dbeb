// Package extract implements the structural, key-term, and acronym
// extractors that turn chunks into entities and relations for the
// knowledge graph.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inventivepotter/dotmd/internal/model"
)

var (
	wikilinkRe    = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
	inlineTagRe   = regexp.MustCompile(`(?m)(?:^|[\t \p{Zs}])#([A-Za-z_][\w/-]*)`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+\.md(?:#[^)]*)?)\)`)
	frontmatterRe = regexp.MustCompile(`(?s)\A---\n(.*?\n)---(?:\n|\z)`)
)

// StructuralExtractor recognizes wikilinks, inline tags, YAML frontmatter,
// markdown links to other .md files, and heading hierarchy, producing
// entities and relations for each.
type StructuralExtractor struct{}

// NewStructuralExtractor constructs a StructuralExtractor.
func NewStructuralExtractor() *StructuralExtractor {
	return &StructuralExtractor{}
}

// Extract scans chunks and returns the aggregated entities and relations.
// The parent of a chunk is the chunk whose heading hierarchy is the
// immediate prefix of the current chunk's hierarchy; PARENT_OF relations
// are emitted between them.
func (e *StructuralExtractor) Extract(chunks []model.Chunk) model.ExtractionResult {
	var result model.ExtractionResult

	hierarchyToChunkID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		hierarchyToChunkID[hierarchyKey(c.HeadingHierarchy)] = c.ChunkID
	}

	for _, c := range chunks {
		e.extractWikilinks(c, &result)
		e.extractInlineTags(c, &result)
		e.extractFrontmatter(c, &result)
		e.extractMarkdownLinks(c, &result)
		e.extractParentOf(c, hierarchyToChunkID, &result)
	}

	return result
}

func hierarchyKey(hierarchy []string) string {
	return strings.Join(hierarchy, "\x1f")
}

func (e *StructuralExtractor) extractWikilinks(c model.Chunk, result *model.ExtractionResult) {
	for _, m := range wikilinkRe.FindAllStringSubmatch(c.Text, -1) {
		target := strings.TrimSpace(m[1])
		result.Entities = append(result.Entities, model.Entity{
			Name:     target,
			Type:     "link",
			Source:   model.EntitySourceStructural,
			ChunkIDs: []string{c.ChunkID},
		})
		result.Relations = append(result.Relations, model.Relation{
			SourceID:     c.ChunkID,
			TargetID:     target,
			RelationType: model.RelationLinksTo,
		})
	}
}

// extractInlineTags recognizes #tags outside of heading lines: a match
// preceded by "# " (or more '#'s) at line start is a heading, not a tag.
func (e *StructuralExtractor) extractInlineTags(c model.Chunk, result *model.ExtractionResult) {
	for _, m := range inlineTagRe.FindAllStringSubmatchIndex(c.Text, -1) {
		matchStart, matchEnd := m[0], m[1]
		tagStart, tagEnd := m[2], m[3]

		lineStart := strings.LastIndexByte(c.Text[:matchStart], '\n') + 1
		line := c.Text[lineStart:matchEnd]
		trimmed := strings.TrimLeft(line, " \t")
		hashes := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		if hashes > 0 && strings.HasPrefix(trimmed[hashes:], " ") {
			continue
		}

		tag := c.Text[tagStart:tagEnd]
		result.Entities = append(result.Entities, model.Entity{
			Name:     tag,
			Type:     "tag",
			Source:   model.EntitySourceStructural,
			ChunkIDs: []string{c.ChunkID},
		})
		result.Relations = append(result.Relations, model.Relation{
			SourceID:     c.ChunkID,
			TargetID:     tag,
			RelationType: model.RelationHasTag,
		})
	}
}

func (e *StructuralExtractor) extractFrontmatter(c model.Chunk, result *model.ExtractionResult) {
	m := frontmatterRe.FindStringSubmatch(c.Text)
	if m == nil {
		return
	}

	var data map[string]any
	if err := yaml.Unmarshal([]byte(m[1]), &data); err != nil {
		return
	}

	for key, value := range data {
		values := valuesOf(value)
		for _, val := range values {
			if val == nil {
				continue
			}
			name := fmt.Sprint(val)
			result.Entities = append(result.Entities, model.Entity{
				Name:     name,
				Type:     key,
				Source:   model.EntitySourceStructural,
				ChunkIDs: []string{c.ChunkID},
			})
			result.Relations = append(result.Relations, model.Relation{
				SourceID:     c.ChunkID,
				TargetID:     name,
				RelationType: model.RelationHasFrontmatter,
				Properties:   map[string]string{"key": key},
			})
		}
	}
}

func valuesOf(value any) []any {
	if list, ok := value.([]any); ok {
		return list
	}
	return []any{value}
}

func (e *StructuralExtractor) extractMarkdownLinks(c model.Chunk, result *model.ExtractionResult) {
	for _, m := range mdLinkRe.FindAllStringSubmatch(c.Text, -1) {
		linkText := m[1]
		href := strings.SplitN(m[2], "#", 2)[0]
		result.Entities = append(result.Entities, model.Entity{
			Name:     href,
			Type:     "link",
			Source:   model.EntitySourceStructural,
			ChunkIDs: []string{c.ChunkID},
		})
		result.Relations = append(result.Relations, model.Relation{
			SourceID:     c.ChunkID,
			TargetID:     href,
			RelationType: model.RelationLinksTo,
			Properties:   map[string]string{"link_text": linkText},
		})
	}
}

func (e *StructuralExtractor) extractParentOf(c model.Chunk, hierarchyToChunkID map[string]string, result *model.ExtractionResult) {
	if len(c.HeadingHierarchy) <= 1 {
		return
	}
	parentKey := hierarchyKey(c.HeadingHierarchy[:len(c.HeadingHierarchy)-1])
	parentID, ok := hierarchyToChunkID[parentKey]
	if !ok {
		return
	}
	result.Relations = append(result.Relations, model.Relation{
		SourceID:     parentID,
		TargetID:     c.ChunkID,
		RelationType: model.RelationParentOf,
	})
}
