// Package resolve turns raw video files into library records by parsing the
// filename and querying the metadata catalog. A file the catalog does not
// know is a normal outcome, reported as a nil record without an error.
package resolve
