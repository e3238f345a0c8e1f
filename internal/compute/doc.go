// Package compute derives sprint velocity reports from issue-tracker data.
//
// sprints.go provides the Resolver: ListSprints keeps only sprints with a
// name and both planned dates; FindActiveSprints and FindLastClosedSprint
// classify them by state.
//
// velocity.go provides the Aggregator. ComputeBoardVelocity joins the
// velocity chart entries to the listed sprints by id, derives
// diff = completed - estimated and attainment = completed/estimated*100
// (100 when nothing was committed), averages attainment over sprints with a
// positive commitment, and sums story points over the issues of each active
// sprint. Velocity entries with no matching sprint are kept with a nil
// Sprint and sort last.
//
// report.go provides the Assembler, which wraps each board's velocity in a
// BoardReport stamped with a run id. Boards can be computed concurrently;
// results are always returned in input order.
//
// Everything reads through the Tracker interface, so tests drive it with an
// in-memory fake.
package compute
