package model

// Config holds everything the CLI can be told, from flags or a YAML file.
type Config struct {
	ProxyType           string  `yaml:"type"`
	InputFile           string  `yaml:"input"`
	OutputFile          string  `yaml:"output"` // country-sorted export
	ReportFile          string  `yaml:"report"`
	ReportFormat        string  `yaml:"format"` // json or csv
	Concurrency         int     `yaml:"concurrency"`
	TimeoutSeconds      int     `yaml:"timeout"`
	BatchTimeoutSeconds int     `yaml:"batch_timeout"` // 0 disables the batch deadline
	GeoTimeoutSeconds   int     `yaml:"geo_timeout"`
	Retries             int     `yaml:"retries"` // extra attempts per proxy
	ProbeURL            string  `yaml:"probe_url"`
	ProbeAddr           string  `yaml:"probe_addr"`
	GeoURL              string  `yaml:"geo_url"`
	GeoIPDB             string  `yaml:"geoip_db"`
	Database            string  `yaml:"db"`
	Discover            bool    `yaml:"discover"`
	SearchURL           string  `yaml:"search_url"`
	DiscoverRate        float64 `yaml:"discover_rate"` // link fetches per second, 0 = unlimited
	Verbose             bool    `yaml:"verbose"`
	LogFile             string  `yaml:"log_file"`
}
