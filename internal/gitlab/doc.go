// Package gitlab posts correlated build issues on GitLab merge requests.
//
// GitLab has no equivalent of the GitHub diff position, so every issue goes
// into a single merge request note. A note whose body is already present is
// not posted again.
package gitlab
