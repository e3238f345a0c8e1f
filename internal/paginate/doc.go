// Package paginate walks offset-paginated REST listings to exhaustion.
//
// All(ctx, fetch, opts) calls fetch with page 0, 1, 2, ... and merges the
// returned items. A page's StartAt is Page*PageSize, where PageSize starts
// at Options.PageSize and is replaced by any size the server echoes back in
// maxResults.
//
// Completion is signalled one of two ways, depending on the upstream API:
//
//   - an explicit isLast flag (agile board/sprint listings): stop when true,
//     regardless of counts
//   - a total count only (issue listings): stop once the accumulated item
//     count reaches total
//
// Options.MaxPages bounds the walk; a server that never completes produces
// ErrPageLimit. ParsePage decodes the JSON shape shared by both APIs.
package paginate
