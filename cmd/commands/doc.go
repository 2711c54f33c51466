// Package commands defines the portal shell CLI.
//
// Commands
//
//   - serve          Run the shell HTTP server
//   - routes list    Print the route table
//   - routes warm    Load feature modules ahead of the first navigation
//   - session show   Print the persisted session
//   - session clear  Log out and persist the empty session
//
// The root command loads .env and config.yml and sets up the logger before
// any subcommand runs. Subcommands build their own dependency container.
package commands
