package tafqit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{0, "صفر"},
		{1, "واحد"},
		{2, "اثنان"},
		{10, "عشرة"},
		{11, "أحد عشر"},
		{12, "اثنا عشر"},
		{19, "تسعة عشر"},
		{20, "عشرون"},
		{25, "خمسة وعشرون"},
		{100, "مائة"},
		{200, "مائتان"},
		{175, "مائة وخمسة وسبعون"},
		{999, "تسعمائة وتسعة وتسعون"},
		{1000, "ألف"},
		{2000, "ألفان"},
		{3000, "ثلاثة آلاف"},
		{10000, "عشرة آلاف"},
		{11000, "أحد عشر ألف"},
		{250000, "مائتان وخمسون ألف"},
		{5175, "خمسة آلاف ومائة وخمسة وسبعون"},
		{1000000, "مليون"},
		{2000000, "مليونان"},
		{4000000, "أربعة ملايين"},
		{1234567, "مليون ومائتان وأربعة وثلاثون ألف وخمسمائة وسبعة وستون"},
		{1000001, "مليون وواحد"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Words(tc.n), "n=%d", tc.n)
	}
}

func TestWordsDualAgreement(t *testing.T) {
	// 1 and 2 of each magnitude class use the bare singular and dual forms,
	// never a spelled-out count.
	require.Equal(t, "ألف", Words(1000))
	require.Equal(t, "ألفان", Words(2000))
	require.Equal(t, "مليون", Words(1000000))
	require.Equal(t, "مليونان", Words(2000000))
	require.Equal(t, "مليار", Words(1000000000))
	require.Equal(t, "ملياران", Words(2000000000))
}

func TestAmountInWords(t *testing.T) {
	require.Equal(t, "فقط خمسة آلاف ومائة وخمسة وسبعون ريال لا غير", AmountInWords(5175))
	require.Equal(t, "فقط صفر ريال لا غير", AmountInWords(0))
	require.Equal(t, "فقط مائة ريال وخمسون هللة لا غير", AmountInWords(100.50))
}

func TestWordsSevenDigits(t *testing.T) {
	require.Equal(t, "تسعة ملايين وتسعمائة وتسعة وتسعون ألف وتسعمائة وتسعة وتسعون", Words(9999999))
}
