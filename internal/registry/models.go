package registry

// ContentID identifies a registered piece of content. IDs are assigned
// starting at 1, strictly increase, and are never reused.
type ContentID uint64

// Principal is an opaque, comparable caller identity supplied by the
// transport layer with every call. The registry never inspects it beyond
// equality checks.
type Principal string

// Fingerprint is a content-derived identifier, typically a content-addressed
// hash such as an IPFS CID. It is the deduplication key: one fingerprint maps
// to exactly one ContentID for the lifetime of the registry.
type Fingerprint string

// ContentRecord is what the registry stores per ContentID. Fingerprint is
// immutable once created; Owner changes only through an ownership transfer
// authorized by the current owner.
type ContentRecord struct {
	Fingerprint Fingerprint
	Owner       Principal
}
