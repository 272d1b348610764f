// Package voices holds the Kokoro-82M voice catalog grouped by language.
//
// Voice identifiers follow the model's convention: the first letter encodes
// the language group, the second the gender (f/m).
package voices

import (
	"errors"
	"fmt"
)

// Static errors.
var (
	ErrUnknownVoice     = errors.New("unknown voice")
	ErrLanguageMismatch = errors.New("voice does not belong to language")
)

// Language groups the voices available for one language, keyed by the
// engine-facing language code.
type Language struct {
	Name   string   `json:"name"`
	Code   string   `json:"code"`
	Voices []string `json:"voices"`
}

var catalog = []Language{
	{
		Name: "English (US)",
		Code: "en-us",
		Voices: []string{
			"af_heart", "af_alloy", "af_aoede", "af_bella", "af_jessica", "af_kore",
			"af_nicole", "af_nova", "af_river", "af_sarah", "af_sky",
			"am_adam", "am_echo", "am_eric", "am_fenrir", "am_liam", "am_michael",
			"am_onyx", "am_puck", "am_santa",
		},
	},
	{
		Name: "English (UK)",
		Code: "en-gb",
		Voices: []string{
			"bf_alice", "bf_emma", "bf_isabella", "bf_lily",
			"bm_daniel", "bm_fable", "bm_george", "bm_lewis",
		},
	},
	{
		Name: "Japanese",
		Code: "ja",
		Voices: []string{
			"jf_alpha", "jf_gongitsune", "jf_nezumi", "jf_tebukuro", "jm_kumo",
		},
	},
	{
		Name: "Chinese (Mandarin)",
		Code: "zh",
		Voices: []string{
			"zf_xiaobei", "zf_xiaoni", "zf_xiaoxiao", "zf_xiaoyi",
			"zm_yunjian", "zm_yunxi", "zm_yunxia", "zm_yunyang",
		},
	},
	{
		Name:   "Spanish",
		Code:   "es",
		Voices: []string{"ef_dora", "em_alex", "em_santa"},
	},
	{
		Name:   "French",
		Code:   "fr",
		Voices: []string{"ff_siwis"},
	},
	{
		Name:   "Hindi",
		Code:   "hi",
		Voices: []string{"hf_alpha", "hf_beta", "hm_omega", "hm_psi"},
	},
	{
		Name:   "Italian",
		Code:   "it",
		Voices: []string{"if_sara", "im_nicola"},
	},
	{
		Name:   "Portuguese (BR)",
		Code:   "pt",
		Voices: []string{"pf_dora", "pm_alex", "pm_santa"},
	},
}

// Catalog returns the full language/voice listing in display order.
func Catalog() []Language {
	listing := make([]Language, len(catalog))
	copy(listing, catalog)

	return listing
}

// Find returns the language a voice belongs to.
func Find(voice string) (Language, bool) {
	for _, language := range catalog {
		for _, candidate := range language.Voices {
			if candidate == voice {
				return language, true
			}
		}
	}

	return Language{}, false
}

// Validate checks that the voice exists and belongs to the requested
// language code.
func Validate(voice, languageCode string) error {
	language, found := Find(voice)
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownVoice, voice)
	}

	if language.Code != languageCode {
		return fmt.Errorf("%w: %q is a %s voice, got language %q",
			ErrLanguageMismatch, voice, language.Code, languageCode)
	}

	return nil
}
