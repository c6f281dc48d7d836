package config

// // NOTE: ONLY PUT STRUCT DEFINITIONS IN THIS FILE

// Agent is the pickaxe agent config
type Agent struct {
	Store   Store
	Deals   Deals
	Worker  Worker
	API     API
	Journal Journal
	Logging Logging
}

// Store configures the shared deal request collection
type Store struct {
	// Backend is either "leveldb" or "memory". The memory backend forgets
	// every request on restart and is meant for trying things out.
	Backend string
	// Path of the leveldb database. Ignored by the memory backend.
	Path string
	// Collection names the set of deal requests inside the store.
	Collection string
}

// Deals configures how the agent drives deal requests
type Deals struct {
	// SettleDelay is how long a newly claimed request stays in ack.
	SettleDelay Duration
	// StageTimeout bounds every wait for a worker event. A driver that times
	// out stops and leaves the request in its last recorded stage.
	// 0 waits forever.
	StageTimeout Duration
}

// Worker configures the local proposal worker
type Worker struct {
	// Concurrency is the number of proposals made in parallel.
	Concurrency int
	// QueueSize is the number of proposals that can wait for a free slot.
	// Requests queued beyond that fail to queue.
	QueueSize int
	// ProposeDelay is how long the dry-run proposer takes per proposal.
	ProposeDelay Duration
}

// API contains configs for API endpoint
type API struct {
	// ListenAddress is the host:port the agent API and metrics are served on.
	// Empty disables the API.
	ListenAddress string
	Timeout       Duration
}

// Journal configures the event journal
type Journal struct {
	Disabled bool
	// Path is the directory the journal directory is created in.
	Path string
	// DisabledEvents is a comma separated list of system:event journal
	// entries to skip, eg. "deals:stage".
	DisabledEvents string
}

// Logging is the logging system config
type Logging struct {
	// SubsystemLevels specify per-subsystem log levels
	SubsystemLevels map[string]string
}
