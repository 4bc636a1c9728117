// Buildlens builds a pull request and reports the build issues it introduces.
//
// It runs the build manifest of a repository (Xcode, CocoaPods and Android
// steps), collects every compiler, linker, test and static analysis issue,
// and keeps the ones near the lines the change touched. Results are written
// as text, JSON, Markdown or SARIF and posted as review comments.
//
// Usage:
//
//	buildlens review acme/app 42 --source ./app    # review GitHub PR #42
//	buildlens review group/app 7 --gitlab          # review GitLab MR !7
//	buildlens check --base origin/main             # check local changes
//	buildlens parse-log build.log --diff pr.diff   # filter a saved build log
//	buildlens warnings App.xcodeproj --require GCC_WARN_UNUSED_VARIABLE
//
// Exit codes: 0 success, 1 the change breaks the build, 2 usage or
// configuration error, 3 authentication error, 4 runtime error.
package main
