package query

// stopWords is the set excluded from significant-keyword extraction during relevance
// filtering: common English function words, media/release jargon, and generic words
// that recur across unrelated anime titles and would otherwise make the filter too
// permissive. There is no canonical published list for this; it was authored for this
// project against the shape described for the filter, not transcribed from a source.
var stopWords = buildStopWords()

func buildStopWords() map[string]bool {
	words := []string{
		// English function words
		"the", "and", "for", "are", "but", "not", "you", "all", "can", "her",
		"was", "one", "our", "out", "day", "get", "has", "him", "his", "how",
		"man", "new", "now", "old", "see", "two", "way", "who", "boy", "did",
		"its", "let", "put", "say", "she", "too", "use", "with", "this", "that",
		"from", "have", "more", "will", "your", "what", "when", "make", "like",
		"time", "just", "know", "take", "than", "them", "well", "were", "into",
		"only", "over", "also", "back", "after", "other", "being", "ever",
		"both", "each", "such", "some", "most", "same", "very", "then",
		"there", "these", "about", "above", "again", "against", "between",
		"during", "before", "under", "while", "where", "which", "through",
		"part", "parts",

		// release/media jargon
		"season", "seasons", "episode", "episodes", "ova", "ovas", "oad",
		"oads", "movie", "movies", "special", "specials", "series", "final",
		"complete", "uncut", "dub", "dubbed", "sub", "subbed", "subs",
		"version", "edition", "remaster", "remastered", "arc", "chapter",
		"vol", "volume", "bd", "bluray", "dvd", "web", "webrip", "batch",
		"raw", "raws", "multi", "dual", "audio", "video", "hevc", "x264",
		"x265", "flac", "aac", "ac3",

		// generic anime-title words
		"love", "world", "dragon", "sword", "magic", "hero", "heroes",
		"academy", "school", "girl", "girls", "boys", "king", "queen",
		"princess", "prince", "knight", "knights", "demon", "demons",
		"angel", "angels", "god", "gods", "story", "tale", "tales",
		"legend", "legends", "adventure", "adventures", "journey",
		"fantasy", "saga", "chronicle", "chronicles", "no", "wa", "ga",
		"ni", "wo", "to", "nan", "desu",
	}

	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
