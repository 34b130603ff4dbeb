package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/textutil"
)

// acronymRe matches 2+ uppercase letters optionally followed by digits
// (SIEM, MFA, AES256).
var acronymRe = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\b`)

// titleTermRe matches Title Case multi-word terms such as "Defense in
// Depth" or "Least Privilege", allowing small connector words mid-phrase.
var titleTermRe = regexp.MustCompile(
	`\b([A-Z][a-z]+(?:\s+(?:in|of|and|the|by|for|to|on|at|vs|or)\s+[A-Z][a-z]+|\s+[A-Z][a-z]+){1,4})\b`)

var nonAlphaRe = regexp.MustCompile(`[^A-Za-z]`)

// KeyTermConfig tunes the statistical extraction thresholds.
type KeyTermConfig struct {
	MinDF         int     // minimum chunk document-frequency to keep a term
	MaxDFRatio    float64 // terms in more than this fraction of chunks are dropped as ubiquitous
	TopKPerChunk  int     // max TF-IDF terms kept per chunk
	TopPercentile float64 // final pass: keep only this top fraction by chunk coverage
}

// DefaultKeyTermConfig mirrors the source system's defaults.
func DefaultKeyTermConfig() KeyTermConfig {
	return KeyTermConfig{MinDF: 2, MaxDFRatio: 0.6, TopKPerChunk: 8, TopPercentile: 0.10}
}

// KeyTermExtractor derives entities from corpus-level statistical and
// structural signals rather than a trained NER model: acronym patterns,
// heading vocabulary, and TF-IDF-discriminative terms.
type KeyTermExtractor struct {
	cfg KeyTermConfig
}

// NewKeyTermExtractor constructs a KeyTermExtractor with the given config.
func NewKeyTermExtractor(cfg KeyTermConfig) *KeyTermExtractor {
	return &KeyTermExtractor{cfg: cfg}
}

// Extract runs the three-phase algorithm (acronyms, heading terms, TF-IDF)
// over chunks, followed by percentile pruning and MENTIONS/CO_OCCURS
// relation construction.
func (e *KeyTermExtractor) Extract(chunks []model.Chunk) model.ExtractionResult {
	if len(chunks) == 0 {
		return model.ExtractionResult{}
	}

	var entities []model.Entity
	seen := make(map[string]int) // lowercase name -> index into entities

	e.extractAcronyms(chunks, &entities, seen)
	e.extractHeadingTerms(chunks, &entities, seen)
	e.extractTFIDFTerms(chunks, &entities, seen)

	entities = e.keepTopPercentile(entities)

	relations := buildMentionsRelations(entities)
	relations = append(relations, buildCoOccursRelations(entities)...)

	return model.ExtractionResult{Entities: entities, Relations: relations}
}

func (e *KeyTermExtractor) extractAcronyms(chunks []model.Chunk, entities *[]model.Entity, seen map[string]int) {
	chunksByAcronym := make(map[string][]string)
	order := []string{}

	for _, c := range chunks {
		for _, m := range acronymRe.FindAllStringSubmatch(c.Text, -1) {
			acr := m[1]
			if len(acr) < 2 || textutil.IsNoiseToken(acr) {
				continue
			}
			if _, ok := chunksByAcronym[acr]; !ok {
				order = append(order, acr)
			}
			chunksByAcronym[acr] = appendUnique(chunksByAcronym[acr], c.ChunkID)
		}
	}

	for _, acr := range order {
		cids := chunksByAcronym[acr]
		if len(cids) < e.cfg.MinDF {
			continue
		}
		key := strings.ToLower(acr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = len(*entities)
		*entities = append(*entities, model.Entity{
			Name: acr, Type: "acronym", Source: model.EntitySourceKeyterm, ChunkIDs: cids,
		})
	}
}

func (e *KeyTermExtractor) extractHeadingTerms(chunks []model.Chunk, entities *[]model.Entity, seen map[string]int) {
	chunksByTerm := make(map[string][]string)
	order := []string{}

	addTerm := func(term, chunkID string) {
		if _, ok := chunksByTerm[term]; !ok {
			order = append(order, term)
		}
		chunksByTerm[term] = appendUnique(chunksByTerm[term], chunkID)
	}

	for _, c := range chunks {
		for _, heading := range c.HeadingHierarchy {
			for _, m := range titleTermRe.FindAllStringSubmatch(heading, -1) {
				term := m[1]
				if len(term) > 3 {
					addTerm(term, c.ChunkID)
				}
			}
			for _, word := range strings.Fields(heading) {
				clean := nonAlphaRe.ReplaceAllString(word, "")
				if clean != "" && isUpperFirst(clean) && len(clean) > 3 && !textutil.IsNoiseToken(clean) {
					addTerm(clean, c.ChunkID)
				}
			}
		}
	}

	maxHeadingDF := int(float64(len(chunks)) * e.cfg.MaxDFRatio)
	for _, term := range order {
		cids := chunksByTerm[term]
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		if len(cids) < e.cfg.MinDF || len(cids) > maxHeadingDF {
			continue
		}
		seen[key] = len(*entities)
		*entities = append(*entities, model.Entity{
			Name: term, Type: "heading_term", Source: model.EntitySourceKeyterm, ChunkIDs: cids,
		})
	}
}

func (e *KeyTermExtractor) extractTFIDFTerms(chunks []model.Chunk, entities *[]model.Entity, seen map[string]int) {
	nChunks := len(chunks)
	df := make(map[string]int)
	chunkTFs := make([]map[string]int, nChunks)

	for i, c := range chunks {
		tokens := textutil.TFIDFTokens(c.Text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		chunkTFs[i] = tf

		seenInChunk := make(map[string]struct{}, len(tf))
		for t := range tf {
			if _, ok := seenInChunk[t]; !ok {
				seenInChunk[t] = struct{}{}
				df[t]++
			}
		}
	}

	maxDF := int(float64(nChunks) * e.cfg.MaxDFRatio)

	type scoredTerm struct {
		term  string
		score float64
	}

	for i, c := range chunks {
		tf := chunkTFs[i]
		var scored []scoredTerm
		for term, count := range tf {
			termDF := df[term]
			if termDF < e.cfg.MinDF || termDF > maxDF {
				continue
			}
			idf := math.Log(float64(nChunks) / float64(termDF))
			scored = append(scored, scoredTerm{term: term, score: float64(count) * idf})
		}

		sort.SliceStable(scored, func(a, b int) bool { return scored[a].score > scored[b].score })

		limit := e.cfg.TopKPerChunk
		if limit > len(scored) {
			limit = len(scored)
		}
		for _, st := range scored[:limit] {
			key := strings.ToLower(st.term)
			if idx, ok := seen[key]; ok {
				(*entities)[idx].ChunkIDs = appendUnique((*entities)[idx].ChunkIDs, c.ChunkID)
				continue
			}
			seen[key] = len(*entities)
			*entities = append(*entities, model.Entity{
				Name: st.term, Type: "key_term", Source: model.EntitySourceKeyterm, ChunkIDs: []string{c.ChunkID},
			})
		}
	}
}

// keepTopPercentile prunes entities to the top fraction by chunk coverage.
func (e *KeyTermExtractor) keepTopPercentile(entities []model.Entity) []model.Entity {
	if e.cfg.TopPercentile >= 1.0 || len(entities) == 0 {
		return entities
	}

	sorted := append([]model.Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].ChunkIDs) > len(sorted[j].ChunkIDs) })

	keepCount := int(float64(len(sorted)) * e.cfg.TopPercentile)
	if keepCount < 1 {
		keepCount = 1
	}
	if keepCount > len(sorted) {
		keepCount = len(sorted)
	}

	topSet := make(map[string]struct{}, keepCount)
	for _, e := range sorted[:keepCount] {
		topSet[strings.ToLower(e.Name)] = struct{}{}
	}

	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if _, ok := topSet[strings.ToLower(e.Name)]; ok {
			out = append(out, e)
		}
	}
	return out
}

func buildMentionsRelations(entities []model.Entity) []model.Relation {
	var relations []model.Relation
	for _, e := range entities {
		for _, cid := range e.ChunkIDs {
			relations = append(relations, model.Relation{
				SourceID: cid, TargetID: e.Name, RelationType: model.RelationMentions, Weight: 1.0,
			})
		}
	}
	return relations
}

// buildCoOccursRelations links entity pairs that share a chunk, each pair
// emitted once (alphabetically ordered) regardless of how many chunks
// they co-occur in.
func buildCoOccursRelations(entities []model.Entity) []model.Relation {
	chunkEntities := make(map[string][]string)
	for _, e := range entities {
		for _, cid := range e.ChunkIDs {
			chunkEntities[cid] = append(chunkEntities[cid], e.Name)
		}
	}

	var relations []model.Relation
	seenPairs := make(map[[2]string]struct{})

	for _, names := range chunkEntities {
		for i, a := range names {
			for _, b := range names[i+1:] {
				pair := orderedPair(a, b)
				if _, ok := seenPairs[pair]; ok {
					continue
				}
				seenPairs[pair] = struct{}{}
				relations = append(relations, model.Relation{
					SourceID: pair[0], TargetID: pair[1], RelationType: model.RelationCoOccurs, Weight: 1.0,
				})
			}
		}
	}
	return relations
}

func orderedPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func isUpperFirst(s string) bool {
	return len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z'
}
