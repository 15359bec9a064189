package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func TestTOTPCodeShape(t *testing.T) {
	code, err := TOTPCode(testSecret, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^\d{6}$`, code)
}

func TestTOTPStableWithinWindow(t *testing.T) {
	base := time.Unix(1700000010, 0).Truncate(30 * time.Second)
	want, err := TOTPCode(testSecret, base)
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Second, 15 * time.Second, 29 * time.Second} {
		got, err := TOTPCode(testSecret, base.Add(offset))
		require.NoError(t, err)
		assert.Equal(t, want, got, "offset %s", offset)
	}

	next, err := TOTPCode(testSecret, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, want, next, "adjacent windows must differ")
}

func TestTOTPNormalizesSecret(t *testing.T) {
	want, err := TOTPCode(testSecret, time.Unix(1700000000, 0))
	require.NoError(t, err)
	got, err := TOTPCode(" jbsw y3dp ehpk 3pxp ", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTOTPRejectsGarbageSecret(t *testing.T) {
	_, err := TOTPCode("not-base32!!", time.Now())
	assert.Error(t, err)
}
