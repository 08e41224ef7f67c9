package models

import "strings"

// Language is one of the languages a user can pick from the menu
type Language struct {
	Code   string
	Name   string
	Region string
}

// Languages is the fixed menu, in display order.
var Languages = []Language{
	{Code: "en", Name: "English", Region: "US"},
	{Code: "hi", Name: "Hindi", Region: "IN"},
	{Code: "ta", Name: "Tamil", Region: "IN"},
	{Code: "te", Name: "Telugu", Region: "IN"},
	{Code: "ml", Name: "Malayalam", Region: "IN"},
	{Code: "kn", Name: "Kannada", Region: "IN"},
	{Code: "fr", Name: "French", Region: "FR"},
	{Code: "es", Name: "Spanish", Region: "ES"},
	{Code: "de", Name: "German", Region: "DE"},
	{Code: "ja", Name: "Japanese", Region: "JP"},
	{Code: "ko", Name: "Korean", Region: "KR"},
}

// LookupLanguage returns the menu language for a two-letter code.
func LookupLanguage(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}
