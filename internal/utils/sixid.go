package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixIDHookFunc defines the signature for the NewSixID test hook.
// It returns a SixID and a boolean indicating whether to override the default generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is a package-level variable that tests can set to override NewSixID behavior.
var NewSixIDHook SixIDHookFunc

// sixIDSubtype is the BSON binary subtype used to store SixIDs.
const sixIDSubtype byte = 0x80

// SixID is a 6-byte identifier used for negotiations, offers, parties and
// every other document in the service. It is stored as BSON BinData with
// custom subtype 0x80 and rendered as Crockford Base32 in JSON.
type SixID [6]byte

// NewSixID creates a new random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		return SixID{}
	}
	return id
}

// IsZero reports whether the id is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Ptr returns a pointer to a copy of the id. Nullable party references in
// documents are *SixID.
func (u SixID) Ptr() *SixID {
	return &u
}

// Equal compares two nullable ids; two nil pointers are equal.
func Equal(a, b *SixID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap = buildCrockfordDecodeMap()

func buildCrockfordDecodeMap() map[byte]byte {
	m := make(map[byte]byte, 40)
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		m[c] = byte(i)
		if c >= 'A' && c <= 'Z' {
			m[c+('a'-'A')] = byte(i)
		}
	}
	// Ambiguous characters accepted on input.
	m['O'], m['o'] = 0, 0
	m['I'], m['i'] = 1, 1
	m['L'], m['l'] = 1, 1
	return m
}

// String returns the 10 character Crockford Base32 form.
func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var bits uint
	var offset uint
	for _, b := range u {
		bits |= uint(b) << offset
		offset += 8
		for offset >= 5 {
			out = append(out, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		out = append(out, crockfordAlphabet[bits&0x1F])
	}
	return string(out)
}

// ParseSixID parses the Crockford Base32 form produced by String.
// Hyphens and spaces are ignored. The empty string parses to the zero id.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}

	var id SixID
	var bits uint64
	var offset uint
	n := 0
	for i := 0; i < len(s); i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, fmt.Errorf("invalid character %q in SixID", s[i])
		}
		bits |= uint64(val) << offset
		offset += 5
		for offset >= 8 && n < len(id) {
			id[n] = byte(bits & 0xFF)
			n++
			bits >>= 8
			offset -= 8
		}
	}
	if n != len(id) {
		return SixID{}, errors.New("invalid SixID: could not decode 6 bytes")
	}
	return id, nil
}

// MarshalText implements encoding.TextMarshaler, which also covers JSON.
func (u SixID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *SixID) UnmarshalText(data []byte) error {
	parsed, err := ParseSixID(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalBSONValue stores the id as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: sixIDSubtype, Data: u[:]})
}

// UnmarshalBSONValue reads an id written by MarshalBSONValue. BSON null
// decodes to the zero id.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*u = SixID{}
		return nil
	}
	var bin primitive.Binary
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&bin); err != nil {
		return fmt.Errorf("invalid BSON value for SixID: %w", err)
	}
	if bin.Subtype != sixIDSubtype || len(bin.Data) != len(u) {
		return errors.New("invalid BSON binary for SixID: incorrect subtype or length")
	}
	copy(u[:], bin.Data)
	return nil
}
