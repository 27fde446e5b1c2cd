// Package reconcile decides whether a freshly identified record should be
// added to the collection, skipped as a duplicate, or replace an existing
// entry of noticeably different quality.
package reconcile
