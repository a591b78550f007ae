package config

// MarkovConfig represents the configuration of the language models
type MarkovConfig struct {
	Order int
}

// CorpusConfig represents where training emails come from
type CorpusConfig struct {
	Source        string
	LegitimateDir string
	PhishingDir   string
}

// DetectionConfig represents the configuration of the detection service
type DetectionConfig struct {
	MaxBodySize        int
	WhitelistedDomains []string
}

// HistoryConfig represents the configuration of the detection history store
type HistoryConfig struct {
	Enabled    bool
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// ServerConfig represents the configuration of the SMTP content filter
type ServerConfig struct {
	FilterType       string
	ListenAddress    string
	BlockPhishing    bool
	StatusHeader     string
	ConfidenceHeader string
	FeaturesHeader   string
	PostfixAddress   string
	PostfixPort      int
	PostfixEnabled   bool
	SubjectPrefix    string
	ModifySubject    bool
}

// GetMarkov returns the model configuration
func (c *Config) GetMarkov() MarkovConfig {
	return MarkovConfig{
		Order: c.GetInt("markov.order"),
	}
}

// GetCorpus returns the corpus configuration
func (c *Config) GetCorpus() CorpusConfig {
	return CorpusConfig{
		Source:        c.GetString("corpus.source"),
		LegitimateDir: c.GetString("corpus.legitimate_dir"),
		PhishingDir:   c.GetString("corpus.phishing_dir"),
	}
}

// GetDetection returns the detection configuration
func (c *Config) GetDetection() DetectionConfig {
	return DetectionConfig{
		MaxBodySize:        c.GetInt("detection.max_body_size"),
		WhitelistedDomains: c.GetStringSlice("detection.whitelisted_domains"),
	}
}

// GetHistory returns the history store configuration
func (c *Config) GetHistory() HistoryConfig {
	return HistoryConfig{
		Enabled:    c.GetBool("history.enabled"),
		Type:       c.GetString("history.type"),
		SQLitePath: c.GetString("history.sqlite_path"),
		MySQLDSN:   c.GetString("history.mysql_dsn"),
	}
}

// GetServer returns the SMTP filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:       c.GetString("server.filter_type"),
		ListenAddress:    c.GetString("server.listen_address"),
		BlockPhishing:    c.GetBool("server.block_phishing"),
		StatusHeader:     c.GetString("server.headers.status"),
		ConfidenceHeader: c.GetString("server.headers.confidence"),
		FeaturesHeader:   c.GetString("server.headers.features"),
		PostfixAddress:   c.GetString("server.postfix.address"),
		PostfixPort:      c.GetInt("server.postfix.port"),
		PostfixEnabled:   c.GetBool("server.postfix.enabled"),
		SubjectPrefix:    c.GetString("server.subject_prefix"),
		ModifySubject:    c.GetBool("server.modify_subject"),
	}
}
