// Package graphqlapi binds query.Engine and subscription.Engine to the
// GraphQL wire contract via graph-gophers/graphql-go. Custom scalars follow
// the Marshaler/Unmarshaler pattern that library documents for anything
// that isn't one of its five built-in scalar types.
package graphqlapi

import (
	"fmt"
	"math/big"

	"midnight-indexer/internal/domain"
)

// hashScalar renders a domain.Hash as lower-hex on the wire.
type hashScalar domain.Hash

func (hashScalar) ImplementsGraphQLType(name string) bool { return name == "Hash" }

func (h hashScalar) MarshalJSON() ([]byte, error) {
	return []byte(`"` + domain.Hash(h).String() + `"`), nil
}

func (h *hashScalar) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("Hash must be a string")
	}
	parsed, err := domain.ParseHash(s)
	if err != nil {
		return err
	}
	*h = hashScalar(parsed)
	return nil
}

// addressScalar renders a domain.Address as lower-hex on the wire.
type addressScalar domain.Address

func (addressScalar) ImplementsGraphQLType(name string) bool { return name == "Address" }

func (a addressScalar) MarshalJSON() ([]byte, error) {
	return []byte(`"` + domain.Address(a).String() + `"`), nil
}

func (a *addressScalar) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("Address must be a string")
	}
	parsed, err := domain.ParseAddress(s)
	if err != nil {
		return err
	}
	*a = addressScalar(parsed)
	return nil
}

// bigIntScalar renders a *big.Int as a decimal string; NIGHT/DUST
// quantities may exceed 2^63 and must not be carried as a GraphQL Int.
type bigIntScalar struct{ v *big.Int }

func (bigIntScalar) ImplementsGraphQLType(name string) bool { return name == "BigInt" }

func (b bigIntScalar) MarshalJSON() ([]byte, error) {
	if b.v == nil {
		return []byte(`"0"`), nil
	}
	return []byte(`"` + b.v.String() + `"`), nil
}

func (b *bigIntScalar) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("BigInt must be a decimal string")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("BigInt: invalid decimal string %q", s)
	}
	b.v = v
	return nil
}

func newBigIntFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// bytesScalar renders an arbitrary byte slice as lower-hex.
type bytesScalar []byte

func (bytesScalar) ImplementsGraphQLType(name string) bool { return name == "Bytes" }

func (b bytesScalar) MarshalJSON() ([]byte, error) {
	return []byte(`"` + domain.Address(b).String() + `"`), nil
}

func (b *bytesScalar) UnmarshalGraphQL(input any) error {
	s, ok := input.(string)
	if !ok {
		return fmt.Errorf("Bytes must be a string")
	}
	parsed, err := domain.ParseAddress(s)
	if err != nil {
		return err
	}
	*b = bytesScalar(parsed)
	return nil
}
