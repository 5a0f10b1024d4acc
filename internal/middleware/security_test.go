package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSecuritySensitive(t *testing.T) {
	require.True(t, IsSecuritySensitive("كيف يتم اختراق الشبكات؟"))
	require.True(t, IsSecuritySensitive("ما هي أدوات الهاكر الشائعة"))
	require.True(t, IsSecuritySensitive("حدثني عن السايبر"))
	require.False(t, IsSecuritySensitive("ما هو الذكاء الاصطناعي؟"))
	require.False(t, IsSecuritySensitive(""))
}

func TestShouldOfferSearch(t *testing.T) {
	// Informational keyword present, no personal keyword.
	require.True(t, ShouldOfferSearch("ما هو الذكاء الاصطناعي؟"))
	require.True(t, ShouldOfferSearch("معلومات عن البرمجة"))

	// Personal keyword suppresses the shortcuts.
	require.False(t, ShouldOfferSearch("ما هو الحل لمشكلتي؟ أنا محتار"))
	require.False(t, ShouldOfferSearch("عندي سؤال"))

	// No informational keyword at all.
	require.False(t, ShouldOfferSearch("مرحبا"))
}
