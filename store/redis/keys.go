package redis

// Key prefixes for primary entity storage.
const (
	prefixRegistration = "vercel:reg:"
	prefixEvent        = "vercel:evt:"
	prefixOutput       = "vercel:out:" // + run ID, hash of task key -> output
	prefixDLQ          = "vercel:dlq:"
	prefixEventClaim   = "vercel:evt:claim:" // + event ID, held while dispatching
)

// Key prefixes for unique indexes.
const (
	uniqueRegistrationKey = "vercel:u:reg:key:"
)

// Key prefixes for sorted set indexes.
const (
	zRegistrationAll = "vercel:z:reg:all"
	zEventAll        = "vercel:z:evt:all"
	zEventType       = "vercel:z:evt:type:" // + event type
	zDLQAll          = "vercel:z:dlq:all"
	zDLQRegistration = "vercel:z:dlq:reg:" // + registration ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
