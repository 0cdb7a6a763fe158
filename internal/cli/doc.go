// Package cli implements the sgdeploy command-line interface.
//
// The root command runs a deployment of the current directory; the
// subcommands support it:
//
//	sgdeploy            - Archive, upload, and run the remote chain
//	sgdeploy doctor     - Check the config, key, tools, and host
//	sgdeploy init       - Create .sgdeploy.yaml
//	sgdeploy script     - Print the remote command chain
//	sgdeploy version    - Print build information
//
// # Flag Handling
//
// Global flags (--config, --verbose, --quiet, --no-color) are defined on
// the root command and available to all subcommands. --transport and
// --connect-timeout override the loaded config for one run; DeployFlags
// and AddDeployFlags register them.
//
// # Exit Codes
//
// Execute maps the returned error to the process status: 0 on success,
// 130 when interrupted by SIGINT or SIGTERM, 1 otherwise. Errors are
// printed once, at the top level, unless the deployment banner already
// reported them.
package cli
