package cacher

// Profile selects which cache tiers a load may use
type Profile struct {
	Name          string `json:"name"`
	CacheInMemory bool   `json:"cache_in_memory"`
	CacheOnDisk   bool   `json:"cache_on_disk"`
}

var (
	// ProfileWithDiskCache is used while external media is usable
	ProfileWithDiskCache = Profile{Name: "disk", CacheInMemory: true, CacheOnDisk: true}

	// ProfileMemoryOnly is used when external media is missing or read-only
	ProfileMemoryOnly = Profile{Name: "memory", CacheInMemory: true}
)
