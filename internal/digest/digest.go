// Package digest implements the Hash Digest component (C6): fixed-size
// content digests usable as B-tree keys, computed incrementally over the
// MD5/SHA family.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// Algorithm identifies one of the supported fixed-size digest algorithms.
type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA224
	SHA256
	SHA384
	SHA512
)

// Size returns the digest's output size in bytes for the given algorithm.
func (a Algorithm) Size() int {
	switch a {
	case MD5:
		return md5.Size
	case SHA1:
		return sha1.Size
	case SHA224:
		return sha256.Size224
	case SHA256:
		return sha256.Size
	case SHA384:
		return sha512.Size384
	case SHA512:
		return sha512.Size
	default:
		return 0
	}
}

func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA224:
		return "sha224"
	case SHA256:
		return "sha256"
	case SHA384:
		return "sha384"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// Digester computes a fixed-size digest incrementally: Init, then any
// number of Update calls, then Final.
type Digester struct {
	algo Algorithm
	h    hash.Hash
}

// Init starts a new digest computation for algo.
func Init(algo Algorithm) (*Digester, error) {
	var h hash.Hash
	switch algo {
	case MD5:
		h = md5.New()
	case SHA1:
		h = sha1.New()
	case SHA224:
		h = sha256.New224()
	case SHA256:
		h = sha256.New()
	case SHA384:
		h = sha512.New384()
	case SHA512:
		h = sha512.New()
	default:
		return nil, fmt.Errorf("digest: unknown algorithm %d", algo)
	}
	return &Digester{algo: algo, h: h}, nil
}

// Update feeds more bytes into the digest computation.
func (d *Digester) Update(b []byte) {
	d.h.Write(b)
}

// Final returns the completed digest. The Digester must not be reused
// afterward.
func (d *Digester) Final() []byte {
	return d.h.Sum(nil)
}

// Sum is a convenience one-shot helper equivalent to Init/Update/Final.
func Sum(algo Algorithm, data []byte) ([]byte, error) {
	d, err := Init(algo)
	if err != nil {
		return nil, err
	}
	d.Update(data)
	return d.Final(), nil
}
