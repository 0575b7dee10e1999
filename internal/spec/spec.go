package spec

type notifyKafkaSection struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
}

type notifyStdoutSection struct {
	Verbose bool `yaml:"verbose"`
}

type notifySection struct {
	Kind   string              `yaml:"kind"` // "kafka", "stdout", "" = off
	Kafka  notifyKafkaSection  `yaml:"kafka"`
	Stdout notifyStdoutSection `yaml:"stdout"`
}

// File is the engine.yml schema.
type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Storage struct {
		Kind   string `yaml:"kind"`   // "s3", "fs"
		Config string `yaml:"config"` // path to the driver config, resolved relative to this file
	} `yaml:"storage"`

	Notify notifySection `yaml:"notify"`

	// RegisterKey locates the transfer register used for step-1 dedup and
	// finalization bookkeeping.
	RegisterKey    string `yaml:"register_key"`
	BundleMaxItems int    `yaml:"bundle_max_items"`

	ListenPort  int `yaml:"listen_port"`
	MetricsPort int `yaml:"metrics_port"`
}
