package schema

var (
	// kvdb buckets
	AuthRecordBucket   = "auth-record-bucket"   // key: delegate hex, val: json(AuthorizationRecord)
	ProxyRecordBucket  = "proxy-record-bucket"  // key: owner hex, val: json(ProxyRecord)
	RegistryMetaBucket = "registry-meta-bucket" // key: "initial-grant", val: delegate hex
)

// KvBuckets lists every bucket a registry store must create.
var KvBuckets = []string{
	AuthRecordBucket,
	ProxyRecordBucket,
	RegistryMetaBucket,
}
