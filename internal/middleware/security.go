package middleware

import (
	"strings"
)

// securityKeywords route a question to the safety provider regardless
// of the user's stored model preference.
var securityKeywords = []string{"هاكر", "اختراق", "أمن", "ثغرة", "حماية", "سايبر"}

// searchKeywords mark informational-intent questions that warrant
// web-search shortcut buttons.
var searchKeywords = []string{"معلومات عن", "ما هو", "من هو", "تعريف", "بحث عن", "أين", "متى", "كيف"}

// personalKeywords suppress search shortcuts for private requests.
var personalKeywords = []string{"أنا", "لي", "عندي", "خاص", "رسالة", "طلب"}

// IsSecuritySensitive reports whether a question touches cyber-security
// topics. Case-insensitive substring match, deterministic and total.
func IsSecuritySensitive(text string) bool {
	return containsAny(text, securityKeywords)
}

// ShouldOfferSearch reports whether search shortcut buttons should
// accompany the answer: an informational keyword must be present and no
// personal keyword may appear.
func ShouldOfferSearch(text string) bool {
	return containsAny(text, searchKeywords) && !containsAny(text, personalKeywords)
}

func containsAny(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
