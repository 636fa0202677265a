package lang

import (
	"regexp"
	"strings"
)

// Word-frequency heuristics per language. Deliberately crude: the goal is
// picking a TTS voice, not NLP-grade identification, and short utterances
// about job applications are the dominant input.
var patterns = map[string]*regexp.Regexp{
	"es": regexp.MustCompile(`(?i)\b(el|la|de|que|y|en|un|es|se|no|te|lo|le|su|por|son|con|para|al|del|los|las|una|aplicación|trabajo|empresa|puesto|ingeniero|desarrollador|solicitud|agregar|actualizar|estado|nota|seguimiento)\b`),
	"fr": regexp.MustCompile(`(?i)\b(le|la|de|et|que|en|un|est|se|ne|te|du|des|sur|pour|avec|par|dans|les|une|candidature|travail|entreprise|poste|ingénieur|développeur|logiciel|ajouter|mettre|état|note|suivi)\b`),
	"de": regexp.MustCompile(`(?i)\b(der|die|das|und|oder|in|auf|mit|von|zu|für|bei|nach|über|durch|ohne|um|an|ein|eine|einen|einem|bewerbung|arbeit|unternehmen|position|ingenieur|entwickler|hinzufügen|aktualisieren|status|notiz)\b`),
	"en": regexp.MustCompile(`(?i)\b(the|and|or|in|on|at|to|for|of|with|by|from|about|what|who|which|that|this|a|an|is|are|was|were|have|has|do|does|did|will|would|should|can|my|me|show|application|job|company|position|engineer|developer|add|update|status|note|track)\b`),
}

// Preference order breaks ties in favor of the non-English languages,
// whose marker words are more distinctive than English stopwords.
var order = []string{"es", "fr", "de", "en"}

// minHits is the evidence floor: a single stray marker word ("le", "la")
// in an otherwise-English utterance must not flip the voice.
const minHits = 2

// Detect guesses the language of text among the supported set, falling
// back to fallback when nothing matches or the text is empty. A language
// needs at least minHits marker words to displace the fallback.
func Detect(text string, supported []string, fallback string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}

	allowed := make(map[string]bool, len(supported))
	for _, l := range supported {
		allowed[l] = true
	}

	best := fallback
	bestHits := minHits - 1
	for _, code := range order {
		if len(allowed) > 0 && !allowed[code] {
			continue
		}
		re, ok := patterns[code]
		if !ok {
			continue
		}
		hits := len(re.FindAllStringIndex(text, -1))
		if hits > bestHits {
			best = code
			bestHits = hits
		}
	}
	return best
}
