package object

import "encoding/json"

// RecordType is the catalog row's lifecycle marker (§3).
type RecordType string

const (
	RecordCreate         RecordType = "CREATE"
	RecordUpdateMetadata RecordType = "UPDATE_METADATA"
	RecordDelete         RecordType = "DELETE"
)

// OpenMode selects WriteStream behavior (§4.5).
type OpenMode string

const (
	ModeWrite          OpenMode = "w"  // create or overwrite
	ModeWriteExclusive OpenMode = "wx" // create only, fail if exists
	ModeAppend         OpenMode = "a"  // create-or-append
	ModeAppendExcl     OpenMode = "ax" // create only, semantically append-from-empty
)

// Valid reports whether m is one of the four recognized open modes.
func (m OpenMode) Valid() bool {
	switch m {
	case ModeWrite, ModeWriteExclusive, ModeAppend, ModeAppendExcl:
		return true
	default:
		return false
	}
}

// Tags is an ordered, unique set of short labels on an object.
type Tags []string

// UserMetadata is an arbitrary JSON-encodable value attached to an object.
type UserMetadata = json.RawMessage

// Object is the logical, user-visible entity described by §3.
type Object struct {
	BucketName      string
	ObjectPath      string
	Size            int64
	MimeType        string
	Checksum        string // lowercase hex MD5
	NumParts        int
	PartSize        int64
	CreatedAt       int64 // millisecond unix
	LastModifiedAt  int64
	RecordType      RecordType
	ObjectTags      Tags
	Description     string
	UserMetadata    UserMetadata
	ObjectID        string // UUIDv7 of the logical object
	EntityID        string // UUIDv7 of the bound physical entity
	MD5State        []byte // opaque MD5 resume state
}

// Live reports whether the row represents a currently reachable object.
func (o *Object) Live() bool {
	return o.RecordType != RecordDelete
}

// TailSize returns the byte length of the final, possibly-short part.
func (o *Object) TailSize() int64 {
	if o.NumParts == 0 {
		return 0
	}
	tail := o.Size - int64(o.NumParts-1)*o.PartSize
	return tail
}
