package proto

// DatumType identifies the kind of a datum value.
type DatumType int

const (
	DatumNull   DatumType = 1
	DatumBool   DatumType = 2
	DatumNum    DatumType = 3
	DatumStr    DatumType = 4
	DatumArray  DatumType = 5
	DatumObject DatumType = 6
)

// String returns the name the server uses for the datum type.
func (d DatumType) String() string {
	switch d {
	case DatumNull:
		return "NULL"
	case DatumBool:
		return "BOOL"
	case DatumNum:
		return "NUMBER"
	case DatumStr:
		return "STRING"
	case DatumArray:
		return "ARRAY"
	case DatumObject:
		return "OBJECT"
	default:
		return "UNKNOWN"
	}
}

// QueryType identifies the kind of query envelope sent to the server.
type QueryType int

const (
	QueryStart       QueryType = 1
	QueryContinue    QueryType = 2
	QueryStop        QueryType = 3
	QueryNoreplyWait QueryType = 4
	QueryServerInfo  QueryType = 5
)

// Version is the handshake magic number, sent as 4 little-endian bytes.
type Version uint32

// V1_0 is the only version spoken by this client (SCRAM-SHA-256 auth).
const V1_0 Version = 0x34c2bdc3

// MaxFrameSize is the largest payload accepted in a single wire frame (64MB).
const MaxFrameSize uint32 = 64 * 1024 * 1024
