package cli

import "flag"

const versionString = "1.0.0"
const defaultConfigPath = "./chisel.toml"

type cliOptions struct {
	configPath   string
	index        bool
	resolve      string
	refs         string
	file         string
	kind         string
	patchSymbol  string
	patchSpan    string
	replacement  string
	plan         string
	watch        bool
	mcp          bool
	ui           bool
	includeTests bool
	verbose      bool
	version      bool
	args         []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("chisel", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.index, "index", false, "Index the workspace and exit")
	fs.StringVar(&opts.resolve, "resolve", "", "Resolve a symbol name to its defining byte span")
	fs.StringVar(&opts.refs, "refs", "", "List references to a symbol name")
	fs.StringVar(&opts.file, "file", "", "Restrict -resolve/-refs/-patch to this file")
	fs.StringVar(&opts.kind, "kind", "", "Restrict -resolve/-refs/-patch to this symbol kind")
	fs.StringVar(&opts.patchSymbol, "patch", "", "Replace this symbol's span with -replacement")
	fs.StringVar(&opts.patchSpan, "patch-span", "", "Replace an explicit span (file:start:end) with -replacement")
	fs.StringVar(&opts.replacement, "replacement", "", "Replacement text for -patch/-patch-span")
	fs.StringVar(&opts.plan, "plan", "", "Apply an ordered patch plan from a TOML file")
	fs.BoolVar(&opts.watch, "watch", false, "Watch the workspace and keep the graph current")
	fs.BoolVar(&opts.mcp, "mcp", false, "Serve the MCP stdio interface")
	fs.BoolVar(&opts.ui, "ui", false, "Resolve ambiguity interactively with a candidate picker")
	fs.BoolVar(&opts.includeTests, "include-tests", false, "Include test files in indexing (Go: _test.go, Python: test_*.py)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
