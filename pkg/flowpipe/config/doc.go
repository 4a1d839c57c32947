/*
Package config provides hierarchical configuration for pipeline processes.

A Config maps keys to scalar values (usually strings) or to nested blocks.
Processes read their own block and hand sub-blocks to embedded algorithms:

	threshold := cfg.Float("threshold", 0.5)
	detector := cfg.Nested("detector")

Blocks may be written as nested maps or as flat "block:key" names; Nested
merges both forms.

# Declared Keys

Processes describe the settings they understand with Key values. Apply
fills defaults and reports missing required keys before the process sees
the configuration:

	cfg, err := cfg.Apply([]config.Key{
	    {Name: "port", Default: "5550", Description: "port number to listen on"},
	    {Name: "host", Required: true, Description: "remote host"},
	})

# Schemas

ValidateSchema checks a Config against a JSON schema document and returns
a *SchemaError listing every violation.

# Variables

Expand substitutes ${name} references in string values, so one document
can serve several deployments:

	cfg, err = cfg.Expand(map[string]any{"host": "feed01", "limit": 100})

# Loading

FromFile, FromYAML and FromJSON build a Config from serialized data.
Decoding failures are reported as *ParseError, which names the format
and, for files, the path.
*/
package config
