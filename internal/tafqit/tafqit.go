// Package tafqit converts integer amounts to Arabic words for printed
// disbursement documents.
package tafqit

import (
	"math"
	"strings"
)

var ones = [10]string{"", "واحد", "اثنان", "ثلاثة", "أربعة", "خمسة", "ستة", "سبعة", "ثمانية", "تسعة"}

// teens[0] is ten itself.
var teens = [10]string{"عشرة", "أحد عشر", "اثنا عشر", "ثلاثة عشر", "أربعة عشر", "خمسة عشر", "ستة عشر", "سبعة عشر", "ثمانية عشر", "تسعة عشر"}

var tens = [10]string{"", "", "عشرون", "ثلاثون", "أربعون", "خمسون", "ستون", "سبعون", "ثمانون", "تسعون"}

var hundreds = [10]string{"", "مائة", "مائتان", "ثلاثمائة", "أربعمائة", "خمسمائة", "ستمائة", "سبعمائة", "ثمانمائة", "تسعمائة"}

// magnitude classes, largest first. Singular for 1, dual for 2, plural for
// 3..10, singular again after a spelled-out count for 11 and above.
var magnitudes = []struct {
	value    int64
	singular string
	dual     string
	plural   string
}{
	{1_000_000_000, "مليار", "ملياران", "مليارات"},
	{1_000_000, "مليون", "مليونان", "ملايين"},
	{1_000, "ألف", "ألفان", "آلاف"},
}

// Words renders n as an Arabic cardinal with correct dual and plural
// agreement for each magnitude class.
func Words(n int64) string {
	if n == 0 {
		return "صفر"
	}
	if n < 0 {
		return "سالب " + Words(-n)
	}
	var parts []string
	for _, m := range magnitudes {
		count := n / m.value
		if count == 0 {
			continue
		}
		n %= m.value
		switch {
		case count == 1:
			parts = append(parts, m.singular)
		case count == 2:
			parts = append(parts, m.dual)
		case count <= 10:
			parts = append(parts, belowThousand(int(count))+" "+m.plural)
		default:
			parts = append(parts, Words(count)+" "+m.singular)
		}
	}
	if n > 0 {
		parts = append(parts, belowThousand(int(n)))
	}
	return strings.Join(parts, " و")
}

func belowThousand(n int) string {
	var parts []string
	if h := n / 100; h > 0 {
		parts = append(parts, hundreds[h])
	}
	switch r := n % 100; {
	case r == 0:
	case r < 10:
		parts = append(parts, ones[r])
	case r < 20:
		parts = append(parts, teens[r-10])
	default:
		if u := r % 10; u > 0 {
			parts = append(parts, ones[u]+" و"+tens[r/10])
		} else {
			parts = append(parts, tens[r/10])
		}
	}
	return strings.Join(parts, " و")
}

// AmountInWords renders a monetary amount in the printed-document
// convention: the "فقط" prefix, riyals, halalas when present, and the
// closing "لا غير".
func AmountInWords(amount float64) string {
	cents := int64(math.Round(amount * 100))
	riyals := cents / 100
	halalas := cents % 100

	var b strings.Builder
	b.WriteString("فقط ")
	b.WriteString(Words(riyals))
	b.WriteString(" ريال")
	if halalas > 0 {
		b.WriteString(" و")
		b.WriteString(Words(halalas))
		b.WriteString(" هللة")
	}
	b.WriteString(" لا غير")
	return b.String()
}
