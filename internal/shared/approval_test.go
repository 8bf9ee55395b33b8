package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAtSubstitutesNow(t *testing.T) {
	stamped := NormalizeAt(time.Time{})
	require.False(t, stamped.IsZero())
	require.WithinDuration(t, time.Now().UTC(), stamped, time.Minute)
}

func TestNormalizeAtKeepsExplicitTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.Equal(t, at, NormalizeAt(at))
}

func TestRefForIsStable(t *testing.T) {
	require.Equal(t, RefFor("DISB_ORDER", 7), RefFor("DISB_ORDER", 7))
	require.NotEqual(t, RefFor("DISB_ORDER", 7), RefFor("QUOTATION", 7))
}
