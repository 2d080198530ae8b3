// Package defaults provides embedded default assets (config and task catalogue).
package defaults

import _ "embed"

//go:embed default_config.toml
var DefaultConfigTOML string

//go:embed default_tasks.toml
var DefaultTasksTOML string
