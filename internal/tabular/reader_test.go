package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowsSkipsHeaderAndBOM(t *testing.T) {
	input := "\uFEFFName\tQty\tPrice\r\nCement\t10\t55.5\r\n\r\nSand\t3\t20\r\n"
	rows, err := Rows(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Cement", "10", "55.5"}, rows[0])
	require.Equal(t, []string{"Sand", "3", "20"}, rows[1])
}

func TestRowsCommaFallback(t *testing.T) {
	input := "Name,Qty\nCement, 10\n"
	rows, err := Rows(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Cement", "10"}}, rows)
}

func TestSanitizeNumber(t *testing.T) {
	require.Equal(t, "1250.00", SanitizeNumber("1,250.00 SAR"))
	require.Equal(t, "55", SanitizeNumber(" 55 ريال"))
	require.Equal(t, "", SanitizeNumber("n/a"))
}

func TestCell(t *testing.T) {
	row := []string{"a", "b"}
	require.Equal(t, "b", Cell(row, 1))
	require.Equal(t, "", Cell(row, 5))
}
