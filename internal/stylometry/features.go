package stylometry

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// FeatureVector is the named style-feature vector of a text.
type FeatureVector struct {
	MeanSentenceLength float64 `json:"mean_sentence_length"`
	SentenceLengthSD   float64 `json:"sentence_length_sd"`
	EmojiRate          float64 `json:"emoji_rate"`
	PunctuationRate    float64 `json:"punctuation_rate"`
	AvgWordLength      float64 `json:"avg_word_length"`
	AbbreviationRate   float64 `json:"abbreviation_rate"`
	QuestionRate       float64 `json:"question_rate"`
	ExclamationRate    float64 `json:"exclamation_rate"`
	UppercaseRatio     float64 `json:"uppercase_ratio"`
}

var FeatureNames = []string{
	"mean_sentence_length",
	"sentence_length_sd",
	"emoji_rate",
	"punctuation_rate",
	"avg_word_length",
	"abbreviation_rate",
	"question_rate",
	"exclamation_rate",
	"uppercase_ratio",
}

func (f FeatureVector) Values() []float64 {
	return []float64{
		f.MeanSentenceLength,
		f.SentenceLengthSD,
		f.EmojiRate,
		f.PunctuationRate,
		f.AvgWordLength,
		f.AbbreviationRate,
		f.QuestionRate,
		f.ExclamationRate,
		f.UppercaseRatio,
	}
}

func fromValues(v []float64) FeatureVector {
	return FeatureVector{
		MeanSentenceLength: v[0],
		SentenceLengthSD:   v[1],
		EmojiRate:          v[2],
		PunctuationRate:    v[3],
		AvgWordLength:      v[4],
		AbbreviationRate:   v[5],
		QuestionRate:       v[6],
		ExclamationRate:    v[7],
		UppercaseRatio:     v[8],
	}
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

var abbreviations = map[string]struct{}{
	"lol": {}, "lmao": {}, "brb": {}, "btw": {}, "idk": {}, "imo": {}, "imho": {},
	"omg": {}, "thx": {}, "pls": {}, "plz": {}, "u": {}, "ur": {}, "tbh": {},
	"np": {}, "ty": {}, "k": {}, "kk": {}, "ok": {}, "fyi": {}, "asap": {},
	"ttyl": {}, "gtg": {}, "afaik": {}, "rn": {}, "nvm": {}, "jk": {}, "smh": {},
}

// Features extracts the style features of text. Rates are per word, per
// sentence or per character as their names suggest; empty text yields the
// zero vector.
func Features(text string) FeatureVector {
	var f FeatureVector
	words := tokenize(text)
	if len(words) == 0 {
		return f
	}

	var lengths []float64
	questions, exclamations := 0, 0
	for _, s := range sentencePattern.FindAllString(text, -1) {
		n := len(tokenize(s))
		if n == 0 {
			continue
		}
		lengths = append(lengths, float64(n))
		s = strings.TrimSpace(s)
		if strings.Contains(s, "?") {
			questions++
		} else if strings.HasSuffix(s, "!") {
			exclamations++
		}
	}
	f.MeanSentenceLength, f.SentenceLengthSD = meanStd(lengths)
	if len(lengths) > 0 {
		f.QuestionRate = float64(questions) / float64(len(lengths))
		f.ExclamationRate = float64(exclamations) / float64(len(lengths))
	}

	wordChars, abbrevs := 0, 0
	for _, w := range words {
		wordChars += len([]rune(w))
		if _, ok := abbreviations[w]; ok {
			abbrevs++
		}
	}
	f.AvgWordLength = float64(wordChars) / float64(len(words))
	f.AbbreviationRate = float64(abbrevs) / float64(len(words))

	visible, punct, emoji, letters, upper := 0, 0, 0, 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		switch {
		case isEmoji(r):
			emoji++
		case unicode.IsPunct(r):
			punct++
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if visible > 0 {
		f.EmojiRate = float64(emoji) / float64(visible)
		f.PunctuationRate = float64(punct) / float64(visible)
	}
	if letters > 0 {
		f.UppercaseRatio = float64(upper) / float64(letters)
	}
	return f
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF:
		return true
	}
	return false
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

// Centroid averages feature vectors. No vectors yields the zero vector.
func Centroid(vectors []FeatureVector) FeatureVector {
	if len(vectors) == 0 {
		return FeatureVector{}
	}
	sum := make([]float64, len(FeatureNames))
	for _, v := range vectors {
		for i, x := range v.Values() {
			sum[i] += x
		}
	}
	for i := range sum {
		sum[i] /= float64(len(vectors))
	}
	return fromValues(sum)
}

// CosineSimilarity compares two feature vectors, clamped to [-1, 1]. NaN
// when either vector has zero norm.
func CosineSimilarity(a, b FeatureVector) float64 {
	av, bv := a.Values(), b.Values()
	var dot, na, nb float64
	for i := range av {
		dot += av[i] * bv[i]
		na += av[i] * av[i]
		nb += bv[i] * bv[i]
	}
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, s))
}
