package normalize

import "fmt"

// Rules configures the normalization pipeline. The zero value is not
// useful; construct with DefaultRules and override fields as needed.
// Rules are plain data: the normalizer never mutates them.
type Rules struct {
	RemoveDiacritics    bool              `json:"remove_diacritics"`
	LowercaseConversion bool              `json:"lowercase_conversion"`
	CleanSpecialChars   bool              `json:"clean_special_chars"`
	NormalizeWhitespace bool              `json:"normalize_whitespace"`
	PreserveExtensions  bool              `json:"preserve_extensions"`
	SkipReadonlyFiles   bool              `json:"skip_readonly_files"`
	SkipHiddenFiles     bool              `json:"skip_hidden_files"`
	ConfirmOverwrite    bool              `json:"confirm_overwrite"`
	MaxFilenameLength   int               `json:"max_filename_length"`
	MinFilenameLength   int               `json:"min_filename_length"`
	CustomReplacements  map[string]string `json:"custom_replacements,omitempty"`
}

// DefaultRules returns the stock Vietnamese normalization configuration.
func DefaultRules() Rules {
	return Rules{
		RemoveDiacritics:    true,
		LowercaseConversion: true,
		CleanSpecialChars:   true,
		NormalizeWhitespace: true,
		PreserveExtensions:  true,
		SkipReadonlyFiles:   true,
		MaxFilenameLength:   255,
		MinFilenameLength:   1,
	}
}

// Validate checks the rule configuration for contradictions.
func (r Rules) Validate() error {
	if r.MinFilenameLength < 1 {
		return fmt.Errorf("min filename length must be at least 1, got %d", r.MinFilenameLength)
	}
	if r.MaxFilenameLength < r.MinFilenameLength {
		return fmt.Errorf("max filename length %d is below min %d", r.MaxFilenameLength, r.MinFilenameLength)
	}
	return nil
}

// replacements merges the custom replacement table over the safe
// defaults. Custom entries win.
func (r Rules) replacements() map[string]string {
	if len(r.CustomReplacements) == 0 {
		return safeCharReplacements
	}
	merged := make(map[string]string, len(safeCharReplacements)+len(r.CustomReplacements))
	for k, v := range safeCharReplacements {
		merged[k] = v
	}
	for k, v := range r.CustomReplacements {
		merged[k] = v
	}
	return merged
}

// safeCharReplacements maps characters that are unsafe or noisy in
// filenames to neutral replacements.
var safeCharReplacements = map[string]string{
	"!": "", "@": " at ", "#": " hash ", "$": " dollar ", "%": " percent ",
	"^": "", "&": " and ", "*": "", "(": "", ")": "",
	"[": "", "]": "", "{": "", "}": "", "|": " ",
	"\\": " ", "/": "-", "?": "", "<": "", ">": "",
	"\"": "", "'": "", "`": "", "~": "",
	"+": " plus ", "=": " equals ", ";": "", ":": "", ",": "",
	"-": "", "_": " ",
}
