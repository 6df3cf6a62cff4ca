// Package config resolves canister-run settings from flags, environment
// variables and an optional config file.
//
// Precedence, highest first: command-line flags, CANISTER_RUN_* environment
// variables, the file named by --config, flag defaults. Environment keys
// use underscores in place of dashes, so --ledger-limit becomes
// CANISTER_RUN_LEDGER_LIMIT.
package config
