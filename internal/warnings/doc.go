// Package warnings checks that an Xcode project builds with the warnings a
// repository requires.
//
// A [Catalog] describes the build settings that control clang warnings: each
// setting has a default (or inherits the default of another setting) and maps
// its symbolic values (YES, NO, YES_ERROR, YES_AGGRESSIVE) to compiler flags.
// The embedded catalog covers the standard Xcode settings.
//
// The [Resolver] computes the effective flags of every target and build
// configuration, resolves them to a per-warning state the way clang does
// (flag groups, -Werror, -Wno-error=, -w) and reports an error issue with a
// concrete fix for every warning that differs from the requirement.
package warnings
