package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config    string `long:"config" description:"Path to config file (default ./configs/config.yaml)"`
	LogLevel  string `long:"log-level" description:"Override log level: debug | info | warn | error"`
	LogFormat string `long:"log-format" description:"Override log format: text | json"`
	Version   bool   `long:"version" description:"Show version and exit"`
}

// CollectCommand gathers candidate images by keyword search or from a URL list.
type CollectCommand struct {
	Search bool   `long:"search" description:"Search every configured keyword"`
	URLs   string `long:"urls" description:"Path to a file with one image URL per line" value-name:"PATH"`
	Append bool   `long:"append" description:"Append to the existing manifest (always on, kept for compatibility)"`

	globals *GlobalFlags
	version string
}

// AnalyzeCommand classifies collected images with the vision model.
type AnalyzeCommand struct {
	Limit     int  `long:"limit" description:"Maximum images to analyze (0 for all)" default:"0"`
	Reanalyze bool `long:"reanalyze" description:"Analyze every manifest entry again"`

	globals *GlobalFlags
	version string
}

// PublishCommand builds the public meme dataset.
type PublishCommand struct {
	Rebuild bool `long:"rebuild" description:"Rebuild the dataset from scratch, renumbering ids from 1"`
	DryRun  bool `long:"dry-run" description:"Show what would be published without writing files"`

	globals *GlobalFlags
	version string
}
