// Package github is a small GitHub REST API client for reviewing pull
// requests.
//
// [Client] reads pull request metadata and existing comments and creates
// review and issue comments. [Poster] turns correlated build issues into
// comments: an issue whose line appears in the diff becomes an inline review
// comment, every other issue is folded into a single summary comment.
// Comments that already exist are not posted again, so a pull request can be
// reviewed repeatedly.
package github
