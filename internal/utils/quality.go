package utils

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/arynyklas/HDRFilmsBot/internal/models"
)

// ExtractDigits keeps only the decimal digits of s ("Серия 12" -> "12")
func ExtractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// qualityValue assigns a numeric value to a quality label for comparison
// ("1080p Ultra" -> 1080). Labels without digits rank lowest.
func qualityValue(label string) int {
	n, err := strconv.Atoi(ExtractDigits(label))
	if err != nil {
		return 0
	}
	return n
}

// RankQualities returns the quality/URL pairs ordered best to worst.
// Equal values keep the upstream order reversed, since upstream lists worst first.
func RankQualities(urls *models.OrderedMap) []models.Pair {
	pairs := urls.Pairs()
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return qualityValue(pairs[i].Key) > qualityValue(pairs[j].Key)
	})

	return pairs
}

// FileLabel turns a quality label into a file-name safe token
func FileLabel(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "-")
}
