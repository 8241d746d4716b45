// Package packager assembles the deliverable bundle for a finished task.
//
// The bundle is a zip holding the original download under a 00_Original_
// prefix, every stem under Stems/, and a metadata.json carrying the analysis
// results. Finished bundles are uploaded to the artifact bucket for signed
// URL delivery.
package packager
