// Package xcodeproj loads the read-only build configuration model of an
// Xcode project: project-level configurations, targets and their
// configurations, and the configurations a shared scheme builds with.
package xcodeproj
