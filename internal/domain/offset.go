package domain

// BlockOffset selects a block by hash or by height. The zero value selects
// "no offset" (latest, or "from genesis" depending on the caller).
type BlockOffset struct {
	Hash   *Hash
	Height *uint32
}

// IsEmpty reports whether neither field is set.
func (o BlockOffset) IsEmpty() bool { return o.Hash == nil && o.Height == nil }

// Validate enforces the oneof rule shared by block queries and block
// subscriptions: at most one of Hash/Height may be set.
func (o BlockOffset) Validate() error {
	if o.Hash != nil && o.Height != nil {
		return NewError(KindInputMalformed, "requires exactly one field")
	}
	return nil
}

// BlockPosition orders contract actions and is compared lexicographically:
// (Height, IndexInBlock).
type BlockPosition struct {
	Height       uint32
	IndexInBlock uint32
}

// Less reports whether p sorts strictly before other.
func (p BlockPosition) Less(other BlockPosition) bool {
	if p.Height != other.Height {
		return p.Height < other.Height
	}
	return p.IndexInBlock < other.IndexInBlock
}

// Compare returns -1, 0, 1 like bytes.Compare/strings.Compare.
func (p BlockPosition) Compare(other BlockPosition) int {
	switch {
	case p.Less(other):
		return -1
	case other.Less(p):
		return 1
	default:
		return 0
	}
}
