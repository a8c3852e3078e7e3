// Package publish stores rendered output under a name.
//
// A Store keeps named objects such as rendered pages or tree snapshots.
// Two stores are provided:
//
//   - DiskStore writes each object to a directory with a JSON sidecar
//     holding its metadata.
//   - S3Store writes objects to an S3 bucket under a key prefix.
//
// Open picks a store from a destination string:
//
//	store, err := publish.Open("s3://my-bucket/pages/", 0)
//	obj, err := store.Put(ctx, "index.html", publish.ContentTypeHTML, body)
//
// Destinations without the s3:// scheme are directories.
package publish
