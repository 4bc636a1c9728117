// Package gitctx reads diffs and commit metadata from a git checkout.
//
// [MergeBaseDiff] produces the diff a pull request is reviewed against: the
// change between the merge base of the base ref and HEAD, with rename
// detection. [Checkout] brings a working copy to the head of a pull request
// the way a build machine does, cloning when needed. Paths can be excluded
// from the diff with glob patterns.
package gitctx
