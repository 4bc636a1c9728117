// Package config loads and merges buildlens configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (BUILDLENS_*, GITHUB_TOKEN, GITLAB_TOKEN,
//     ANDROID_HOME), including those from a .env file in the working
//     directory; the process environment wins over the .env file
//  3. Config file ($XDG_CONFIG_HOME/buildlens/config.yml)
//  4. Built-in defaults
//
// A Config is a value: [Config.Merge] and [SetField] return new configs
// and never modify their inputs. Use [Load] to obtain a merged [Config] and
// [Save] to write one. Per-repository settings live in .buildlens.yml at the
// root of the source directory, see [LoadLocal].
package config
