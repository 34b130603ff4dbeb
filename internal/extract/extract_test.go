package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventivepotter/dotmd/internal/model"
)

// Scenario 3: wikilink extraction.
func TestStructuralExtractor_Wikilink(t *testing.T) {
	chunk := model.Chunk{
		ChunkID: "c1",
		Text:    "See [[Foo Bar]] for details.",
	}

	result := NewStructuralExtractor().Extract([]model.Chunk{chunk})

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Foo Bar", result.Entities[0].Name)
	assert.Equal(t, "link", result.Entities[0].Type)
	assert.Equal(t, model.EntitySourceStructural, result.Entities[0].Source)

	require.Len(t, result.Relations, 1)
	assert.Equal(t, "c1", result.Relations[0].SourceID)
	assert.Equal(t, "Foo Bar", result.Relations[0].TargetID)
	assert.Equal(t, model.RelationLinksTo, result.Relations[0].RelationType)
}

func TestStructuralExtractor_InlineTagExcludesHeadings(t *testing.T) {
	chunk := model.Chunk{
		ChunkID: "c1",
		Text:    "# Title\n\nThis mentions #security and #compliance.",
	}

	result := NewStructuralExtractor().Extract([]model.Chunk{chunk})

	var tags []string
	for _, e := range result.Entities {
		if e.Type == "tag" {
			tags = append(tags, e.Name)
		}
	}
	assert.ElementsMatch(t, []string{"security", "compliance"}, tags)
}

func TestStructuralExtractor_Frontmatter(t *testing.T) {
	chunk := model.Chunk{
		ChunkID: "c1",
		Text:    "---\nauthor: Alice\ntags:\n  - ops\n  - security\n---\nBody text.",
	}

	result := NewStructuralExtractor().Extract([]model.Chunk{chunk})

	var found bool
	for _, r := range result.Relations {
		if r.RelationType == model.RelationHasFrontmatter && r.TargetID == "Alice" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStructuralExtractor_ParentOf(t *testing.T) {
	parent := model.Chunk{ChunkID: "p", HeadingHierarchy: []string{"One"}}
	child := model.Chunk{ChunkID: "c", HeadingHierarchy: []string{"One", "Two"}}

	result := NewStructuralExtractor().Extract([]model.Chunk{parent, child})

	require.Len(t, result.Relations, 1)
	assert.Equal(t, "p", result.Relations[0].SourceID)
	assert.Equal(t, "c", result.Relations[0].TargetID)
	assert.Equal(t, model.RelationParentOf, result.Relations[0].RelationType)
}

// Scenario 4: acronym round-trip.
func TestExtractAcronyms_SIEM(t *testing.T) {
	dict := ExtractAcronyms("Security Information and Event Management (SIEM) does X.")

	require.Contains(t, dict, "SIEM")
	assert.Contains(t, dict["SIEM"], "Security Information and Event Management")
}

func TestExtractAcronyms_ReversedForm(t *testing.T) {
	dict := ExtractAcronyms("MTTI (Mean Time To Identify) measures detection speed")

	require.Contains(t, dict, "MTTI")
	assert.Contains(t, dict["MTTI"], "Mean Time To Identify")
}

func TestIsValidAcronym_Subsequence(t *testing.T) {
	assert.True(t, isValidAcronym("CIA", "Confidentiality Integrity Availability"))
	assert.False(t, isValidAcronym("ZZZ", "Confidentiality Integrity Availability"))
}

func TestKeyTermExtractor_AcronymPhase(t *testing.T) {
	chunks := []model.Chunk{
		{ChunkID: "c1", Text: "The SIEM platform ingests logs."},
		{ChunkID: "c2", Text: "Our SIEM deployment covers all regions."},
	}

	result := NewKeyTermExtractor(DefaultKeyTermConfig()).Extract(chunks)

	var siem *model.Entity
	for i := range result.Entities {
		if result.Entities[i].Name == "SIEM" {
			siem = &result.Entities[i]
		}
	}
	require.NotNil(t, siem)
	assert.Equal(t, "acronym", siem.Type)
	assert.ElementsMatch(t, []string{"c1", "c2"}, siem.ChunkIDs)
}

func TestKeyTermExtractor_EmptyChunks(t *testing.T) {
	result := NewKeyTermExtractor(DefaultKeyTermConfig()).Extract(nil)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relations)
}
