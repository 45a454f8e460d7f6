// Package blobstore stores area image files.
//
// Three backends share the Store interface: a local directory (the default),
// AWS S3 or any S3-compatible service, and MinIO. Keys are flat file names
// such as "42_img.png"; path separators are rejected so no backend can be
// coaxed outside its root or bucket.
package blobstore
