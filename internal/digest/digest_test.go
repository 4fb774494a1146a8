package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncrementalMatchesOneShot(t *testing.T) {
	for _, algo := range []Algorithm{MD5, SHA1, SHA224, SHA256, SHA384, SHA512} {
		d, err := Init(algo)
		require.NoError(t, err)
		d.Update([]byte("hello, "))
		d.Update([]byte("world"))
		incremental := d.Final()

		oneShot, err := Sum(algo, []byte("hello, world"))
		require.NoError(t, err)

		require.Equal(t, oneShot, incremental, algo.String())
		require.Len(t, incremental, algo.Size())
	}
}

func TestDeterministic(t *testing.T) {
	a, err := Sum(SHA256, []byte("/usr/local/bin"))
	require.NoError(t, err)
	b, err := Sum(SHA256, []byte("/usr/local/bin"))
	require.NoError(t, err)
	require.Equal(t, a, b)
}
