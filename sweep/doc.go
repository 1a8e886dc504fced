// Package sweep provides the configuration algebra used to enumerate numerical
// experiments for the external finite-volume solver.
//
// # Reading Guide
//
// Start with these files:
//   - fragment.go: Fragment, an immutable named slice of a configuration document
//   - document.go: Document, the merge of several fragments keyed by subsection name
//   - params.go: LaunchParams and its product / union / pointwise combination
//   - scheme.go: Scheme, a merged document plus accessors and its folder name
//
// # Architecture
//
// The sweep package owns the data model; everything that acts on a Scheme lives
// in sub-packages:
//   - sweep/estimate/: extrapolates runtime and memory from a reference run
//   - sweep/hosts/: per-host resource profiles and MPI task heuristics
//   - sweep/queue/: resource requests and batch-system backends (local, SLURM, LSF)
//   - sweep/launch/: run directories, resource planning and sweep dispatch
//   - sweep/grid/: grid metadata (cell counts) and grid file naming
//   - sweep/sweepfile/: YAML sweep definitions
//
// Folder names are built from the short ids of a fixed, ordered subset of
// fragments (see FolderFragments). Short ids are computed by an Identities
// registry keyed by fragment kind, so formatting rules stay out of the
// fragment type itself.
package sweep
