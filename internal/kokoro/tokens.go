package kokoro

import "strings"

// The model's symbol table, in vocabulary order: pad, punctuation, latin
// letters, then the IPA set. A symbol's token id is its index in this
// sequence; runes outside the table are skipped during tokenization.
const (
	symbolPad         = "$"
	symbolPunctuation = `;:,.!?¡¿—…"«»“” `
	symbolLetters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	symbolIPA         = "ɑɐɒæɓʙβɔɕçɗɖðʤəɘɚɛɜɝɞɟʄɡɠɢʛɦɧħɥʜɨɪʝɭɬɫɮʟɱɯɰŋɳɲɴøɵɸθœɶʘɹɺɾɻʀʁɽʂʃʈʧʉʊʋⱱʌɣɤʍχʎʏʑʐʒʔʡʕʢǀǁǂǃˈˌːˑʼʴʰʱʲʷˠˤ˞↓↑→↗↘'̩'ᵻ"
)

var vocabulary = buildVocabulary()

func buildVocabulary() map[rune]int64 {
	table := make(map[rune]int64)

	id := int64(0)

	for _, symbol := range strings.Join(
		[]string{symbolPad, symbolPunctuation, symbolLetters, symbolIPA}, "",
	) {
		if _, exists := table[symbol]; !exists {
			table[symbol] = id
		}

		id++
	}

	return table
}

// tokenize maps normalized text onto the model's symbol ids, dropping runes
// the table does not cover and truncating to the model context.
func tokenize(normalized string) []int64 {
	ids := make([]int64, 0, len(normalized))

	for _, symbol := range normalized {
		tokenID, known := vocabulary[symbol]
		if !known {
			continue
		}

		ids = append(ids, tokenID)

		if len(ids) == maxTokens {
			break
		}
	}

	return ids
}

// padTokens brackets the id sequence with the zero pad token the model
// expects at both ends.
func padTokens(ids []int64) []int64 {
	padded := make([]int64, 0, len(ids)+2)
	padded = append(padded, 0)
	padded = append(padded, ids...)
	padded = append(padded, 0)

	return padded
}
