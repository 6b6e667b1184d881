package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Language is one entry of the provider's supported-language list
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// LanguageIndex resolves human language names to provider language codes
type LanguageIndex struct {
	byName map[string]string
	codes  map[string]struct{}
}

// LoadLanguages reads the supported-language list from disk
func LoadLanguages(path string) (*LanguageIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language list: %w", err)
	}
	var langs []Language
	if err := json.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("failed to parse language list: %w", err)
	}
	return NewLanguageIndex(langs), nil
}

func NewLanguageIndex(langs []Language) *LanguageIndex {
	idx := &LanguageIndex{
		byName: make(map[string]string, len(langs)),
		codes:  make(map[string]struct{}, len(langs)),
	}
	for _, l := range langs {
		idx.byName[strings.ToLower(l.Name)] = l.Code
		idx.codes[strings.ToLower(l.Code)] = struct{}{}
	}
	return idx
}

// Code resolves a language name to its code. Inputs that already are a known
// code pass through unchanged.
func (i *LanguageIndex) Code(nameOrCode string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(nameOrCode))
	if key == "" {
		return "", false
	}
	if _, ok := i.codes[key]; ok {
		return key, true
	}
	if code, ok := i.byName[key]; ok {
		return code, true
	}
	return "", false
}
