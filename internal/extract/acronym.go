package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/inventivepotter/dotmd/internal/model"
)

// acronymPatterns are the five surface forms an acronym definition takes
// in prose: "Full Name (ACRONYM)", "ACRONYM (Full Name)", "ACRONYM stands
// for Full Name", "Full Name, or ACRONYM", and a two-column markdown table
// row pairing a bolded acronym with its expansion.
var acronymPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-zA-Z\s&]+?)\s*\(([A-Z]{2,})\)`),
	regexp.MustCompile(`([A-Z]{2,})\s*\(([A-Z][a-zA-Z\s&]+?)\)`),
	regexp.MustCompile(`([A-Z]{2,})\s+(?:stands for|is short for|means)\s+([A-Z][a-zA-Z\s&]+)`),
	regexp.MustCompile(`([A-Z][a-zA-Z\s]+?),\s+(?:or|abbreviated as)\s+([A-Z]{2,})`),
	regexp.MustCompile(`\|\s*\*?\*?([A-Z]{2,})\*?\*?\s*\|\s*([A-Z][a-zA-Z\s]+?)\s*\|`),
}

// AcronymDictionary maps an acronym to its sorted, deduplicated list of
// expansions, the persisted shape of the acronym sidecar.
type AcronymDictionary map[string][]string

// ExtractAcronyms scans text for acronym-definition patterns and returns a
// dictionary of validated expansions.
func ExtractAcronyms(text string) AcronymDictionary {
	found := make(map[string]map[string]struct{})

	for _, pattern := range acronymPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			part1, part2 := m[1], m[2]

			var acronym, expansion string
			switch {
			case isAllUpper(part1) && len(part1) >= 2:
				acronym, expansion = part1, strings.TrimSpace(part2)
			case isAllUpper(part2) && len(part2) >= 2:
				acronym, expansion = part2, strings.TrimSpace(part1)
			default:
				continue
			}

			if !isValidAcronym(acronym, expansion) {
				continue
			}
			if found[acronym] == nil {
				found[acronym] = make(map[string]struct{})
			}
			found[acronym][expansion] = struct{}{}
		}
	}

	return toSortedDictionary(found)
}

// ExtractAcronymsFromChunks runs ExtractAcronyms over every chunk and
// merges the results into a single dictionary.
func ExtractAcronymsFromChunks(chunks []model.Chunk) AcronymDictionary {
	combined := make(map[string]map[string]struct{})
	for _, c := range chunks {
		for acr, expansions := range ExtractAcronyms(c.Text) {
			if combined[acr] == nil {
				combined[acr] = make(map[string]struct{})
			}
			for _, exp := range expansions {
				combined[acr][exp] = struct{}{}
			}
		}
	}
	return toSortedDictionary(combined)
}

func toSortedDictionary(m map[string]map[string]struct{}) AcronymDictionary {
	out := make(AcronymDictionary, len(m))
	for acr, expansions := range m {
		list := make([]string, 0, len(expansions))
		for e := range expansions {
			list = append(list, e)
		}
		sort.Strings(list)
		out[acr] = list
	}
	return out
}

func isAllUpper(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

// isValidAcronym reports whether the letters of acronym form a subsequence
// of the word-initial letters of expansion, allowing connector words
// ("and", "of") to be skipped.
func isValidAcronym(acronym, expansion string) bool {
	var firstLetters strings.Builder
	for _, word := range strings.Fields(expansion) {
		for _, r := range word {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				firstLetters.WriteRune(toUpperRune(r))
				break
			}
		}
	}
	letters := firstLetters.String()
	acronymUpper := strings.ToUpper(acronym)

	if acronymUpper == letters {
		return true
	}

	idx := 0
	for _, ch := range acronymUpper {
		pos := strings.IndexRune(letters[idx:], ch)
		if pos < 0 {
			return false
		}
		idx += pos + 1
	}
	return true
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}
