// Package scheduler runs named periodic tasks on independent tickers.
//
// Each timer fires immediately on start and then at its interval. A task
// still running when its next tick arrives causes that tick to be
// dropped rather than queued, so a slow cloud round trip never builds a
// backlog of overlapping runs. Stop is cooperative: it cancels the shared
// context and waits for in-flight tasks to return.
package scheduler
