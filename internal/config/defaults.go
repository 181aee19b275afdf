package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultStore = Store{
	Driver:      StoreDriverPostgres,
	AutoMigrate: true,
}

var defaultKafka = Kafka{
	GroupID:           "courier-dispatch",
	CourierEventTopic: "courier-events",
	NotifyTopic:       "delivery-transitions",
	PublishAttempts:   4,
	PublishBaseDelay:  150 * time.Millisecond,
	PublishMaxDelay:   time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       20,
	Burst:      40,
	TTL:        10 * time.Minute,
	MaxBuckets: 10000,
}

var defaultPprof = Pprof{
	Addr: "127.0.0.1:6060",
}

var defaultDispatch = Dispatch{
	OperationTimeout:  3 * time.Second,
	ETAAfterPickup:    15 * time.Minute,
	TrackPollInterval: 2 * time.Second,
}

var defaultLog = Log{
	Level:   "info",
	Backend: LogBackendZap,
}

// DefaultPort returns the default port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultStore returns the default store settings.
func DefaultStore() Store { return defaultStore }

// DefaultKafka returns the default Kafka settings. No brokers are configured.
func DefaultKafka() Kafka { return defaultKafka }

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }

// DefaultPprof returns the default pprof settings.
func DefaultPprof() Pprof { return defaultPprof }

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch { return defaultDispatch }

// DefaultLog returns the default logging settings.
func DefaultLog() Log { return defaultLog }
