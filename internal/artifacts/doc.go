// Package artifacts provides durable object storage for pipeline outputs.
//
// BucketStore keeps objects in a flat bucket directory and issues HMAC-signed
// download URLs that the API gateway serves back out. Uploads land via temp
// file and rename so a concurrent download never sees a partial object.
package artifacts
